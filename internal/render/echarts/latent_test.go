package echarts

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kailas-cloud/circare/internal/domain/latent"
)

func samplePoints() latent.PointSet {
	return latent.NewPointSet([]latent.Point{
		{ImageID: "a", ProjectID: "p1", X: -0.5, Y: 0.5, Typology: "education", Title: "School A"},
		{ImageID: "b", ProjectID: "p1", X: -0.4, Y: 0.4, Typology: "education"},
		{ImageID: "c", ProjectID: "p2", X: 0.5, Y: -0.5, Typology: "cultural"},
		{ImageID: "d", ProjectID: "p3", X: 0.9, Y: 0.9, Typology: "warehouse"},
		{ImageID: "e", ProjectID: "p3", X: 0, Y: 0},
	})
}

func seriesNames(d MapData) []string {
	sc := NewLatentMap(d, DefaultMapConfig())
	names := make([]string, len(sc.MultiSeries))
	for i, s := range sc.MultiSeries {
		names[i] = s.Name
	}
	return names
}

func TestNewLatentMap_SeriesOrder(t *testing.T) {
	names := seriesNames(MapData{
		Points:      samplePoints(),
		Highlighted: []string{"a", "b"},
		Lens:        latent.NewLens(latent.SourceBrush, []string{"c"}),
	})
	want := []string{"other", "cultural", "education", SeriesHalo, SeriesLens}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("series = %v, want %v", names, want)
	}
}

func TestNewLatentMap_NoOverlays(t *testing.T) {
	names := seriesNames(MapData{Points: samplePoints()})
	for _, n := range names {
		if n == SeriesHalo || n == SeriesLens {
			t.Errorf("unexpected overlay series %q", n)
		}
	}
}

func TestRenderLatentMap(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultMapConfig()
	cfg.Title = "Circare latent map"
	err := RenderLatentMap(&buf, MapData{
		Points: samplePoints(),
		Lens:   latent.NewLens(latent.SourceBrush, []string{"a", "c"}),
	}, cfg)
	if err != nil {
		t.Fatalf("RenderLatentMap: %v", err)
	}
	html := buf.String()
	for _, want := range []string{"Circare latent map", latent.LensColor, latent.ColorFor("education"), "School A", "2 in lens"} {
		if !strings.Contains(html, want) {
			t.Errorf("output missing %q", want)
		}
	}
}
