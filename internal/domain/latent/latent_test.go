package latent

import (
	"math"
	"reflect"
	"testing"
)

const tol = 1e-9

func fixturePoints() PointSet {
	return NewPointSet([]Point{
		{ImageID: "a", ProjectID: "p1", X: -0.5, Y: 0.5, Typology: "education"},
		{ImageID: "b", ProjectID: "p1", X: -0.4, Y: 0.4, Typology: "cultural"},
		{ImageID: "c", ProjectID: "p2", X: 0.5, Y: -0.5, Typology: "mixed_use"},
		{ImageID: "d", ProjectID: "p3", X: 0.9, Y: 0.9},
		{ImageID: "e", ProjectID: "p3", X: 0, Y: 0, Typology: "religious"},
	})
}

func TestViewport_ToCanvas(t *testing.T) {
	v := DefaultViewport()

	tests := []struct {
		x, y float64
		want Pixel
	}{
		{-1, 1, Pixel{20, 20}},
		{1, -1, Pixel{380, 280}},
		{0, 0, Pixel{200, 150}},
	}
	for _, tc := range tests {
		got := v.ToCanvas(tc.x, tc.y)
		if math.Abs(got.X-tc.want.X) > tol || math.Abs(got.Y-tc.want.Y) > tol {
			t.Errorf("ToCanvas(%g,%g) = %+v, want %+v", tc.x, tc.y, got, tc.want)
		}
	}
}

func TestViewport_RoundTrip(t *testing.T) {
	sizes := [][3]float64{{400, 300, 20}, {800, 800, 0}, {123, 457, 11}, {41, 41, 20}}
	coords := []float64{-1, -0.73, -0.5, 0, 0.01, 0.5, 0.999, 1}

	for _, sz := range sizes {
		v, err := NewViewport(sz[0], sz[1], sz[2])
		if err != nil {
			t.Fatalf("NewViewport(%v): %v", sz, err)
		}
		for _, x := range coords {
			for _, y := range coords {
				px := v.ToCanvas(x, y)
				c := v.ToCoord(px.X, px.Y)
				if math.Abs(c.X-x) > tol || math.Abs(c.Y-y) > tol {
					t.Errorf("size %v: round trip (%g,%g) -> %+v", sz, x, y, c)
				}
			}
		}
	}
}

func TestNewViewport_RejectsDegenerate(t *testing.T) {
	if _, err := NewViewport(40, 300, 20); err == nil {
		t.Error("expected error for zero drawable width")
	}
	if _, err := NewViewport(400, 300, -1); err == nil {
		t.Error("expected error for negative margin")
	}
}

func TestViewport_Select_TwoOfFive(t *testing.T) {
	v := DefaultViewport()
	pts := fixturePoints()

	// a -> (110, 85), b -> (128, 98); the rectangle covers both and nothing else.
	r := RectFrom(Pixel{140, 100}, Pixel{100, 70})
	got := v.Select(pts, r)
	want := []string{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Select() = %v, want %v", got, want)
	}
}

func TestViewport_Select_BoundaryInclusive(t *testing.T) {
	v := DefaultViewport()
	pts := fixturePoints()

	// e sits exactly on (200,150).
	got := v.Select(pts, Rect{MinX: 200, MinY: 150, MaxX: 210, MaxY: 160})
	if !reflect.DeepEqual(got, []string{"e"}) {
		t.Errorf("Select() = %v, want [e]", got)
	}
}

func TestViewport_Select_EmptyInputs(t *testing.T) {
	v := DefaultViewport()
	if got := v.Select(NewPointSet(nil), Rect{0, 0, 400, 300}); len(got) != 0 {
		t.Errorf("empty point set selected %v", got)
	}
	// zero-area brush away from any point
	if got := v.Select(fixturePoints(), RectFrom(Pixel{5, 5}, Pixel{5, 5})); len(got) != 0 {
		t.Errorf("zero-area brush selected %v", got)
	}
}

func TestViewport_HitTest_FirstMatchWins(t *testing.T) {
	v := DefaultViewport()
	pts := NewPointSet([]Point{
		{ImageID: "first", X: 0.01, Y: 0},
		{ImageID: "second", X: 0, Y: 0},
	})

	p, ok := v.HitTest(pts, v.ToCanvas(0, 0), DefaultHitRadius)
	if !ok {
		t.Fatal("expected a hit")
	}
	if p.ImageID != "first" {
		t.Errorf("hit = %q, want first (point order decides ties)", p.ImageID)
	}

	if _, ok := v.HitTest(pts, v.ToCanvas(0.5, 0.5), DefaultHitRadius); ok {
		t.Error("expected no hit far from points")
	}
	if _, ok := v.HitTest(NewPointSet(nil), Pixel{200, 150}, DefaultHitRadius); ok {
		t.Error("expected no hit on empty set")
	}
}

func TestBrush_Lifecycle(t *testing.T) {
	b := NewBrush()
	if b.State() != BrushIdle {
		t.Fatalf("initial state = %s", b.State())
	}

	if out := b.Move(Pixel{1, 1}); out.State != BrushIdle {
		t.Errorf("move while idle = %s", out.State)
	}

	b.Down(Pixel{100, 100})
	out := b.Move(Pixel{50, 20})
	if out.State != BrushBrushing {
		t.Fatalf("state = %s", out.State)
	}
	if out.Rect != (Rect{MinX: 50, MinY: 20, MaxX: 100, MaxY: 100}) {
		t.Errorf("live rect = %+v", out.Rect)
	}
	if live, ok := b.Live(); !ok || live != out.Rect {
		t.Errorf("Live() = %+v, %v", live, ok)
	}

	out = b.Up(Pixel{10, 150})
	if out.State != BrushCommitted {
		t.Fatalf("up state = %s", out.State)
	}
	if out.Rect != (Rect{MinX: 10, MinY: 100, MaxX: 100, MaxY: 150}) {
		t.Errorf("committed rect = %+v", out.Rect)
	}
	if b.State() != BrushIdle {
		t.Errorf("state after commit = %s, want idle", b.State())
	}
}

func TestBrush_LeaveCancels(t *testing.T) {
	b := NewBrush()
	b.Down(Pixel{10, 10})
	if out := b.Leave(); out.State != BrushCancelled {
		t.Errorf("leave = %s, want cancelled", out.State)
	}
	if b.State() != BrushIdle {
		t.Errorf("state = %s", b.State())
	}
	if out := b.Up(Pixel{20, 20}); out.State != BrushIdle {
		t.Errorf("up after cancel = %s, want idle", out.State)
	}
	if _, ok := b.Live(); ok {
		t.Error("expected no live rect after cancel")
	}
}

func TestLens(t *testing.T) {
	l := NewLens(SourceBrush, []string{"b", "a", "", "b", " c "})
	if got := l.ImageIDs(); !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Errorf("ImageIDs() = %v", got)
	}
	if !l.Contains("c") || l.Contains("z") {
		t.Error("Contains mismatch")
	}
	if !l.Equal(NewLens(SourceProject, []string{"a", "c", "b"})) {
		t.Error("Equal should ignore order and source")
	}
	if !NewLens(SourceBrush, nil).IsEmpty() {
		t.Error("lens of nothing should be empty")
	}

	pl := NewProjectLens("p9", nil)
	if pl.IsEmpty() || pl.ProjectID() != "p9" || pl.Source() != SourceProject {
		t.Errorf("project lens = %+v", pl)
	}
}

func TestPointSet_ProjectImageIDs(t *testing.T) {
	got := fixturePoints().ProjectImageIDs("p3")
	if !reflect.DeepEqual(got, []string{"d", "e"}) {
		t.Errorf("ProjectImageIDs(p3) = %v", got)
	}
	if ids := fixturePoints().ProjectImageIDs(""); ids != nil {
		t.Errorf("empty project = %v", ids)
	}
}

func TestNewPoint_Validation(t *testing.T) {
	if _, err := NewPoint("", "p", 0, 0, "", "", ""); err == nil {
		t.Error("expected error for missing image id")
	}
	if _, err := NewPoint("i", "p", 1.5, 0, "", "", ""); err == nil {
		t.Error("expected error for x outside unit square")
	}
	if _, err := NewPoint("i", "p", 0, math.NaN(), "", "", ""); err == nil {
		t.Error("expected error for NaN")
	}
	p, err := NewPoint("i", "p", -1, 1, "cultural", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Label() != "i" {
		t.Errorf("Label() = %q", p.Label())
	}
}

func TestBuildScene_DrawOrder(t *testing.T) {
	v := DefaultViewport()
	pts := NewPointSet([]Point{
		{ImageID: "x", ProjectID: "p", X: 0, Y: 0, Typology: "education"},
		{ImageID: "y", ProjectID: "q", X: 0.5, Y: 0.5, Typology: "unknown_kind"},
	})
	sel := Selection{
		Highlighted: map[string]struct{}{"x": {}},
		Lens:        NewLens(SourceBrush, []string{"x", "y"}),
	}

	s := BuildScene(v, pts, sel)

	var layers []Layer
	for _, m := range s.Marks {
		if m.ImageID == "x" {
			layers = append(layers, m.Layer)
		}
	}
	if !reflect.DeepEqual(layers, []Layer{LayerBase, LayerHalo, LayerLens}) {
		t.Errorf("x layers = %v, want base, halo, lens", layers)
	}
	if len(s.Marks) != 5 {
		t.Errorf("marks = %d, want 5", len(s.Marks))
	}
	if s.Marks[0].Color != Palette["education"] {
		t.Errorf("base colour = %s", s.Marks[0].Color)
	}
	if ColorFor("unknown_kind") != DefaultColor {
		t.Error("unknown typology should use the default colour")
	}
}
