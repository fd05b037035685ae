// Package urlstate keeps navigator state in a page URL's query string.
//
// The URL is shared, globally visible state: every write is a history
// replace, never a new navigation entry.
package urlstate

import (
	"math"
	"net/url"
	"strconv"
	"sync"

	"github.com/kailas-cloud/circare/internal/domain/search"
	"github.com/kailas-cloud/circare/internal/domain/weights"
)

// Query parameters owned by the navigator.
const (
	ParamVisual  = "wv"
	ParamSpatial = "ws"
	ParamAttr    = "wa"
	ParamPhase   = "phase"
)

// Location is the page URL the navigator reads and rewrites.
type Location interface {
	// Query returns a copy of the current query parameters.
	Query() url.Values
	// Replace swaps the query string without adding a history entry.
	Replace(q url.Values)
}

// ReadWeights parses wv/ws/wa. It reports false unless all three are present,
// parse as finite floats and each lies in [0,1].
func ReadWeights(loc Location) (weights.Weights, bool) {
	q := loc.Query()
	v, ok1 := parseFraction(q.Get(ParamVisual))
	s, ok2 := parseFraction(q.Get(ParamSpatial))
	a, ok3 := parseFraction(q.Get(ParamAttr))
	if !ok1 || !ok2 || !ok3 {
		return weights.Weights{}, false
	}
	return weights.Weights{Visual: v, Spatial: s, Attr: a}, true
}

func parseFraction(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f < 0 || f > 1 {
		return 0, false
	}
	return f, true
}

// WriteWeights stores the committed weights, leaving other parameters untouched.
func WriteWeights(loc Location, w weights.Weights) {
	q := loc.Query()
	q.Set(ParamVisual, formatFraction(w.Visual))
	q.Set(ParamSpatial, formatFraction(w.Spatial))
	q.Set(ParamAttr, formatFraction(w.Attr))
	loc.Replace(q)
}

// shortest representation that parses back to the same float64
func formatFraction(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ClearWeights removes wv/ws/wa.
func ClearWeights(loc Location) {
	q := loc.Query()
	q.Del(ParamVisual)
	q.Del(ParamSpatial)
	q.Del(ParamAttr)
	loc.Replace(q)
}

// ReadPhase returns the study phase. Absent or unknown values read as none.
func ReadPhase(loc Location) search.Phase {
	return search.ParsePhase(loc.Query().Get(ParamPhase))
}

// WritePhase sets the phase parameter. PhaseNone removes it.
func WritePhase(loc Location, p search.Phase) {
	q := loc.Query()
	if p == search.PhaseNone || p == "" {
		q.Del(ParamPhase)
	} else {
		q.Set(ParamPhase, string(p))
	}
	loc.Replace(q)
}

// Memory is an in-process Location. Sessions served over HTTP and tests use it.
type Memory struct {
	mu       sync.Mutex
	query    url.Values
	replaces int
}

// NewMemory parses rawQuery (with or without a leading '?').
// An unparsable query starts empty.
func NewMemory(rawQuery string) *Memory {
	if len(rawQuery) > 0 && rawQuery[0] == '?' {
		rawQuery = rawQuery[1:]
	}
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		q = url.Values{}
	}
	return &Memory{query: q}
}

// Query implements Location.
func (m *Memory) Query() url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.query)
}

// Replace implements Location.
func (m *Memory) Replace(q url.Values) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.query = clone(q)
	m.replaces++
}

// Encode returns the current query string.
func (m *Memory) Encode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.query.Encode()
}

// Replaces counts history replacements so far.
func (m *Memory) Replaces() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaces
}

func clone(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}
