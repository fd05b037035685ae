package weightstate

import (
	"fmt"
	"sync"

	"github.com/kailas-cloud/circare/internal/domain"
	"github.com/kailas-cloud/circare/internal/domain/weights"
	"github.com/kailas-cloud/circare/internal/urlstate"
)

// State owns the tri-factor weights: integer slider positions plus the
// normalised committed triple that is sent to the search API and the URL.
type State struct {
	mu        sync.Mutex
	loc       urlstate.Location
	committed weights.Weights
	raw       weights.Raw
	urlRead   bool
	listeners map[int]Listener
	nextID    int
}

// New creates a State committed to initial. A zero or invalid initial value
// falls back to visual-only.
func New(loc urlstate.Location, initial weights.Weights) *State {
	if initial.Validate() != nil || initial.Sum() == 0 {
		initial = weights.Default()
	}
	return &State{
		loc:       loc,
		committed: initial,
		raw:       weights.RawFrom(initial),
		listeners: make(map[int]Listener),
	}
}

// Weights returns the committed weights.
func (s *State) Weights() weights.Weights {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

// Raw returns the slider positions.
func (s *State) Raw() weights.Raw {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw
}

// Percent returns the display percentages of the committed weights.
func (s *State) Percent() weights.Percent {
	return s.Weights().Percent()
}

// SetRaw moves one slider. The value is clamped to [0,100] and the committed
// weights become raw/sum.
func (s *State) SetRaw(axis weights.Axis, value int) (weights.Weights, error) {
	if !axis.IsValid() {
		return weights.Weights{}, fmt.Errorf("set raw: %w: unknown axis %q", domain.ErrInvalidRequest, axis)
	}
	s.mu.Lock()
	s.raw = s.raw.With(axis, value)
	s.committed = s.raw.Normalize()
	w := s.committed
	s.mu.Unlock()

	s.changed(w, true)
	return w, nil
}

// SetAll replaces all three slider positions at once.
func (s *State) SetAll(r weights.Raw) weights.Weights {
	s.mu.Lock()
	s.raw = weights.Raw{V: weights.ClampRaw(r.V), S: weights.ClampRaw(r.S), A: weights.ClampRaw(r.A)}
	s.committed = s.raw.Normalize()
	w := s.committed
	s.mu.Unlock()

	s.changed(w, true)
	return w
}

// ApplyPreset commits a named preset and moves the sliders to match.
func (s *State) ApplyPreset(name string) (weights.Weights, error) {
	w, err := weights.Lookup(name)
	if err != nil {
		return weights.Weights{}, err
	}
	s.commit(w)
	return w, nil
}

// ApplyEffective replaces the committed weights with the value the server
// reports it actually used, resynchronising the sliders proportionally.
func (s *State) ApplyEffective(w weights.Weights) (weights.Weights, error) {
	if err := w.Validate(); err != nil {
		return weights.Weights{}, fmt.Errorf("apply effective: %w", err)
	}
	w = normalizeLoose(w)
	s.commit(w)
	return w, nil
}

// LoadFromURL reads the weights from the URL and commits them. It runs at
// most once per State: later calls report absent, so the State's own URL
// writes never feed back into it.
func (s *State) LoadFromURL() (weights.Weights, bool) {
	s.mu.Lock()
	if s.urlRead || s.loc == nil {
		s.mu.Unlock()
		return weights.Weights{}, false
	}
	s.urlRead = true
	s.mu.Unlock()

	w, ok := urlstate.ReadWeights(s.loc)
	if !ok {
		return weights.Weights{}, false
	}
	w = normalizeLoose(w)

	s.mu.Lock()
	s.committed = w
	s.raw = weights.RawFrom(w)
	s.mu.Unlock()

	// the URL already holds these values
	s.changed(w, false)
	return w, true
}

// SyncToURL writes w into the URL with a history replace.
func (s *State) SyncToURL(w weights.Weights) {
	if s.loc == nil {
		return
	}
	urlstate.WriteWeights(s.loc, w)
}

// Reset returns to visual-only weights and removes them from the URL.
func (s *State) Reset() weights.Weights {
	w := weights.Default()
	s.mu.Lock()
	s.committed = w
	s.raw = weights.RawFrom(w)
	s.mu.Unlock()

	if s.loc != nil {
		urlstate.ClearWeights(s.loc)
	}
	s.notify(w)
	return w
}

// Subscribe registers l and returns a function that removes it.
func (s *State) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *State) commit(w weights.Weights) {
	s.mu.Lock()
	s.committed = w
	s.raw = weights.RawFrom(w)
	s.mu.Unlock()

	s.changed(w, true)
}

func (s *State) changed(w weights.Weights, sync bool) {
	s.notify(w)
	if sync {
		s.SyncToURL(w)
	}
}

// notify runs listeners outside the lock so they may call back into State.
func (s *State) notify(w weights.Weights) {
	s.mu.Lock()
	ls := make([]Listener, 0, len(s.listeners))
	for i := 0; i < s.nextID; i++ {
		if l, ok := s.listeners[i]; ok {
			ls = append(ls, l)
		}
	}
	s.mu.Unlock()

	for _, l := range ls {
		l(w)
	}
}

// normalizeLoose keeps a triple that already sums to one untouched and
// rescales anything else.
func normalizeLoose(w weights.Weights) weights.Weights {
	if d := w.Sum() - 1; d <= weights.Epsilon && d >= -weights.Epsilon {
		return w
	}
	return weights.Normalize(w.Visual, w.Spatial, w.Attr)
}
