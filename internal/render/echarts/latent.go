// Package echarts renders the latent map as a standalone interactive HTML page.
package echarts

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kailas-cloud/circare/internal/domain/latent"
)

// Series names of the overlay layers.
const (
	SeriesHalo = "Selected project"
	SeriesLens = "Lens"
)

// MapConfig holds page settings of the latent map.
type MapConfig struct {
	Title  string
	Width  string // e.g. "900px"
	Height string
	Theme  string
}

// DefaultMapConfig returns a 900x560 light chart.
func DefaultMapConfig() MapConfig {
	return MapConfig{
		Title:  "Latent map",
		Width:  "900px",
		Height: "560px",
		Theme:  "light",
	}
}

// MapData is what gets drawn: every point, the highlighted project and the lens.
type MapData struct {
	Points      latent.PointSet
	Highlighted []string
	Lens        latent.Lens
}

// NewLatentMap builds the scatter chart. One series per typology carries the
// palette colour; overlays are drawn after the base series so they stay on top.
func NewLatentMap(d MapData, cfg MapConfig) *charts.Scatter {
	sc := charts.NewScatter()
	sc.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: cfg.Title,
			Width:     cfg.Width,
			Height:    cfg.Height,
			Theme:     cfg.Theme,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    cfg.Title,
			Subtitle: fmt.Sprintf("%d images, %d in lens", d.Points.Len(), d.Lens.Len()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "item",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
			Top:  "bottom",
		}),
		charts.WithXAxisOpts(opts.XAxis{Min: -1, Max: 1, Show: opts.Bool(false)}),
		charts.WithYAxisOpts(opts.YAxis{Min: -1, Max: 1, Show: opts.Bool(false)}),
	)

	byTypology := make(map[string][]opts.ScatterData)
	var order []string
	highlighted := make(map[string]struct{}, len(d.Highlighted))
	for _, id := range d.Highlighted {
		highlighted[id] = struct{}{}
	}
	var halo, lensMarks []opts.ScatterData

	for i := 0; i < d.Points.Len(); i++ {
		p := d.Points.At(i)
		key := p.Typology
		if _, known := latent.Palette[key]; !known {
			key = ""
		}
		if _, seen := byTypology[key]; !seen {
			order = append(order, key)
		}
		byTypology[key] = append(byTypology[key], scatterPoint(p, latent.BaseRadius))

		if _, ok := highlighted[p.ImageID]; ok {
			halo = append(halo, scatterPoint(p, latent.HaloRadius))
		}
		if d.Lens.Contains(p.ImageID) {
			lensMarks = append(lensMarks, scatterPoint(p, latent.LensRadius))
		}
	}

	sort.Strings(order)
	for _, key := range order {
		name, color := key, latent.ColorFor(key)
		if name == "" {
			name = "other"
		}
		sc.AddSeries(name, byTypology[key], charts.WithItemStyleOpts(opts.ItemStyle{Color: color}))
	}
	if len(halo) > 0 {
		sc.AddSeries(SeriesHalo, halo, charts.WithItemStyleOpts(opts.ItemStyle{Color: latent.HaloColor}))
	}
	if len(lensMarks) > 0 {
		sc.AddSeries(SeriesLens, lensMarks, charts.WithItemStyleOpts(opts.ItemStyle{Color: latent.LensColor}))
	}
	return sc
}

// RenderLatentMap writes the chart page to w.
func RenderLatentMap(w io.Writer, d MapData, cfg MapConfig) error {
	if err := NewLatentMap(d, cfg).Render(w); err != nil {
		return fmt.Errorf("failed to render latent map: %w", err)
	}
	return nil
}

// scatterPoint sizes a mark by its canvas radius; echarts symbol sizes are diameters.
func scatterPoint(p latent.Point, radius int) opts.ScatterData {
	return opts.ScatterData{
		Name:       p.Label(),
		Value:      []float64{p.X, p.Y},
		SymbolSize: 2 * radius,
	}
}
