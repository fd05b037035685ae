package weights

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/circare/internal/domain"
)

// Preset is a named, already-normalised weight configuration.
type Preset string

// Preset names.
const (
	PresetVisual       Preset = "visual"
	PresetBalanced     Preset = "balanced"
	PresetContextHeavy Preset = "context-heavy"
)

var presets = map[Preset]Weights{
	PresetVisual:       {Visual: 1},
	PresetBalanced:     {Visual: 1.0 / 3, Spatial: 1.0 / 3, Attr: 1.0 / 3},
	PresetContextHeavy: {Visual: 0.2, Spatial: 0.4, Attr: 0.4},
}

// Lookup returns the weights for a preset name.
// "visual-only" and "contextHeavy" are accepted as aliases.
func Lookup(name string) (Weights, error) {
	switch name {
	case "visual-only":
		name = string(PresetVisual)
	case "contextHeavy", "context_heavy":
		name = string(PresetContextHeavy)
	}
	w, ok := presets[Preset(name)]
	if !ok {
		return Weights{}, fmt.Errorf("%w: %q", domain.ErrUnknownPreset, name)
	}
	return w, nil
}

// Presets lists the preset names in a stable order.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
