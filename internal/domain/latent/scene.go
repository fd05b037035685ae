package latent

// Overlay colours and radii of the latent map.
const (
	HaloColor  = "#FFD700"
	LensColor  = "#FF4500"
	BrushColor = "#FF4500"

	BaseRadius = 3
	HaloRadius = 8
	LensRadius = 6
)

// DefaultColor is used for missing or unknown typologies.
const DefaultColor = "#DDA0DD"

// Palette maps typologies to colours.
var Palette = map[string]string{
	"midrise_housing": "#FF6B6B",
	"mixed_use":       "#4ECDC4",
	"education":       "#45B7D1",
	"cultural":        "#96CEB4",
	"religious":       "#FFEAA7",
}

// ColorFor returns the palette colour of a typology.
func ColorFor(typology string) string {
	if c, ok := Palette[typology]; ok {
		return c
	}
	return DefaultColor
}

// Layer is the draw order of a mark. Higher layers are drawn later.
type Layer int

// Layers, in draw order.
const (
	LayerBase Layer = iota
	LayerHalo
	LayerLens
)

func (l Layer) String() string {
	switch l {
	case LayerBase:
		return "base"
	case LayerHalo:
		return "halo"
	case LayerLens:
		return "lens"
	}
	return "unknown"
}

// MarshalText encodes the layer by name.
func (l Layer) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Mark is one filled circle on the canvas.
type Mark struct {
	ImageID string  `json:"image_id"`
	Layer   Layer   `json:"layer"`
	Center  Pixel   `json:"center"`
	Radius  float64 `json:"radius"`
	Color   string  `json:"color"`
}

// Scene is the full draw list of the map.
type Scene struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Marks  []Mark  `json:"marks"`
	Brush  *Rect   `json:"brush,omitempty"`
}

// Selection describes the overlays to draw on top of the base points.
type Selection struct {
	Highlighted map[string]struct{}
	Lens        Lens
	Brush       *Rect
}

// BuildScene lays out every point with its overlays. For each point the base
// mark comes first, then the selection halo, then the lens marker, so the lens
// marker is always topmost for that point.
func BuildScene(v Viewport, points PointSet, sel Selection) Scene {
	s := Scene{
		Width:  v.width,
		Height: v.height,
		Marks:  make([]Mark, 0, points.Len()),
		Brush:  sel.Brush,
	}
	for _, p := range points.points {
		c := v.ToCanvas(p.X, p.Y)
		s.Marks = append(s.Marks, Mark{
			ImageID: p.ImageID, Layer: LayerBase, Center: c, Radius: BaseRadius, Color: ColorFor(p.Typology),
		})
		if _, ok := sel.Highlighted[p.ImageID]; ok {
			s.Marks = append(s.Marks, Mark{
				ImageID: p.ImageID, Layer: LayerHalo, Center: c, Radius: HaloRadius, Color: HaloColor,
			})
		}
		if sel.Lens.Contains(p.ImageID) {
			s.Marks = append(s.Marks, Mark{
				ImageID: p.ImageID, Layer: LayerLens, Center: c, Radius: LensRadius, Color: LensColor,
			})
		}
	}
	return s
}
