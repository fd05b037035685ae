// Package weights holds the tri-factor search weight triple and its normalisation rules.
package weights

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/circare/internal/domain"
)

// Slider bounds for raw positions.
const (
	RawMin = 0
	RawMax = 100

	// minSum replaces a zero raw sum so normalisation never divides by zero.
	minSum = 1e-6

	// Epsilon is the tolerance used when comparing committed weights.
	Epsilon = 1e-9
)

// Axis names one of the three weight channels.
type Axis string

// Axis constants.
const (
	Visual  Axis = "visual"
	Spatial Axis = "spatial"
	Attr    Axis = "attr"
)

// Axes lists the channels in display order.
var Axes = []Axis{Visual, Spatial, Attr}

// IsValid reports whether the axis is one of the three channels.
func (a Axis) IsValid() bool {
	return a == Visual || a == Spatial || a == Attr
}

// ParseAxis parses an axis name, accepting the short slider keys v, s and a.
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "visual", "v":
		return Visual, nil
	case "spatial", "s":
		return Spatial, nil
	case "attr", "a", "attribute":
		return Attr, nil
	}
	return "", fmt.Errorf("%w: unknown axis %q", domain.ErrInvalidRequest, s)
}

// Weights is a committed weight triple.
type Weights struct {
	Visual  float64 `json:"visual"`
	Spatial float64 `json:"spatial"`
	Attr    float64 `json:"attr"`
}

// Default returns visual-only weights.
func Default() Weights {
	return Weights{Visual: 1}
}

// New validates a triple: every component must be finite and within [0,1].
func New(visual, spatial, attr float64) (Weights, error) {
	w := Weights{Visual: visual, Spatial: spatial, Attr: attr}
	if err := w.Validate(); err != nil {
		return Weights{}, err
	}
	return w, nil
}

// Validate checks that each component is a finite fraction.
func (w Weights) Validate() error {
	for _, a := range Axes {
		v := w.Get(a)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", domain.ErrInvalidWeights, a)
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s=%g outside [0,1]", domain.ErrInvalidWeights, a, v)
		}
	}
	return nil
}

// Get returns the component for an axis. Unknown axes read as zero.
func (w Weights) Get(a Axis) float64 {
	switch a {
	case Visual:
		return w.Visual
	case Spatial:
		return w.Spatial
	case Attr:
		return w.Attr
	}
	return 0
}

// Sum returns visual+spatial+attr.
func (w Weights) Sum() float64 {
	return w.Visual + w.Spatial + w.Attr
}

// Equal compares two triples within tol.
func (w Weights) Equal(o Weights, tol float64) bool {
	return math.Abs(w.Visual-o.Visual) <= tol &&
		math.Abs(w.Spatial-o.Spatial) <= tol &&
		math.Abs(w.Attr-o.Attr) <= tol
}

// Percent is the integer-percent presentation of a triple.
type Percent struct {
	Visual  int `json:"visual"`
	Spatial int `json:"spatial"`
	Attr    int `json:"attr"`
}

// Percent rounds each component to the nearest integer percent.
// Display only: the fractional values keep full precision for the API.
func (w Weights) Percent() Percent {
	return Percent{
		Visual:  int(math.Round(w.Visual * 100)),
		Spatial: int(math.Round(w.Spatial * 100)),
		Attr:    int(math.Round(w.Attr * 100)),
	}
}

// String renders the triple as "V70% S20% A10%".
func (w Weights) String() string {
	p := w.Percent()
	return fmt.Sprintf("V%d%% S%d%% A%d%%", p.Visual, p.Spatial, p.Attr)
}

// Raw holds integer slider positions in [RawMin, RawMax].
type Raw struct {
	V int `json:"v"`
	S int `json:"s"`
	A int `json:"a"`
}

// ClampRaw bounds a slider value to [RawMin, RawMax].
func ClampRaw(v int) int {
	if v < RawMin {
		return RawMin
	}
	if v > RawMax {
		return RawMax
	}
	return v
}

// With returns a copy with one axis set to the clamped value.
func (r Raw) With(a Axis, value int) Raw {
	value = ClampRaw(value)
	switch a {
	case Visual:
		r.V = value
	case Spatial:
		r.S = value
	case Attr:
		r.A = value
	}
	return r
}

// Normalize scales the raw positions so they sum to one.
func (r Raw) Normalize() Weights {
	return Normalize(float64(r.V), float64(r.S), float64(r.A))
}

// Normalize divides each value by the sum, flooring the sum at 1e-6.
// An all-zero triple has nothing to scale and falls back to Default, so the
// result is always finite and sums to one for integer slider input.
func Normalize(v, s, a float64) Weights {
	v, s, a = math.Max(0, v), math.Max(0, s), math.Max(0, a)
	if v+s+a == 0 {
		return Default()
	}
	sum := math.Max(minSum, v+s+a)
	return Weights{Visual: v / sum, Spatial: s / sum, Attr: a / sum}
}

// RawFrom converts committed weights back into slider positions.
func RawFrom(w Weights) Raw {
	p := w.Percent()
	return Raw{V: ClampRaw(p.Visual), S: ClampRaw(p.Spatial), A: ClampRaw(p.Attr)}
}
