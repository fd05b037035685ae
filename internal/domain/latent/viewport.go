package latent

import (
	"fmt"
	"math"
)

// Canvas defaults of the latent map.
const (
	DefaultWidth     = 400
	DefaultHeight    = 300
	DefaultMargin    = 20
	DefaultHitRadius = 0.05
)

// Pixel is a position in canvas space (origin top-left, Y grows downward).
type Pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Coord is a position in domain space (Y grows upward).
type Coord struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport maps the unit square onto a canvas with a fixed margin.
type Viewport struct {
	width  float64
	height float64
	margin float64
}

// NewViewport validates the canvas size: the drawable area must be positive on both axes.
func NewViewport(width, height, margin float64) (Viewport, error) {
	if margin < 0 {
		return Viewport{}, fmt.Errorf("margin must be non-negative, got %g", margin)
	}
	if width-2*margin <= 0 || height-2*margin <= 0 {
		return Viewport{}, fmt.Errorf("canvas %gx%g too small for margin %g", width, height, margin)
	}
	return Viewport{width: width, height: height, margin: margin}, nil
}

// DefaultViewport is the 400x300 canvas with a 20px margin.
func DefaultViewport() Viewport {
	return Viewport{width: DefaultWidth, height: DefaultHeight, margin: DefaultMargin}
}

// Width returns the canvas width in pixels.
func (v Viewport) Width() float64 { return v.width }

// Height returns the canvas height in pixels.
func (v Viewport) Height() float64 { return v.height }

// Margin returns the canvas margin in pixels.
func (v Viewport) Margin() float64 { return v.margin }

func (v Viewport) scaleX() float64 { return (v.width - 2*v.margin) / 2 }
func (v Viewport) scaleY() float64 { return (v.height - 2*v.margin) / 2 }

// ToCanvas maps a domain coordinate to canvas pixels, inverting the Y axis.
func (v Viewport) ToCanvas(x, y float64) Pixel {
	return Pixel{
		X: v.margin + (x+1)*v.scaleX(),
		Y: v.margin + (1-y)*v.scaleY(),
	}
}

// ToCoord is the exact inverse of ToCanvas.
func (v Viewport) ToCoord(px, py float64) Coord {
	return Coord{
		X: (px-v.margin)/v.scaleX() - 1,
		Y: 1 - (py-v.margin)/v.scaleY(),
	}
}

// Contains reports whether a pixel lies on the canvas.
func (v Viewport) Contains(p Pixel) bool {
	return p.X >= 0 && p.Y >= 0 && p.X <= v.width && p.Y <= v.height
}

// Rect is an axis-aligned rectangle in canvas space with ordered bounds.
type Rect struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// RectFrom orders two corners so min <= max regardless of drag direction.
func RectFrom(a, b Pixel) Rect {
	return Rect{
		MinX: math.Min(a.X, b.X),
		MinY: math.Min(a.Y, b.Y),
		MaxX: math.Max(a.X, b.X),
		MaxY: math.Max(a.Y, b.Y),
	}
}

// Contains is an inclusive containment test.
func (r Rect) Contains(p Pixel) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

// Empty reports a zero-area rectangle.
func (r Rect) Empty() bool {
	return r.MaxX-r.MinX == 0 || r.MaxY-r.MinY == 0
}

// Select returns the image ids of the points whose projection falls inside r, in point order.
func (v Viewport) Select(points PointSet, r Rect) []string {
	var ids []string
	for _, p := range points.points {
		if r.Contains(v.ToCanvas(p.X, p.Y)) {
			ids = append(ids, p.ImageID)
		}
	}
	return ids
}

// HitTest returns the first point, in point-set order, whose domain distance to the
// pixel is strictly below radius. Overlapping points resolve to the earliest one.
func (v Viewport) HitTest(points PointSet, px Pixel, radius float64) (Point, bool) {
	c := v.ToCoord(px.X, px.Y)
	for _, p := range points.points {
		if math.Hypot(p.X-c.X, p.Y-c.Y) < radius {
			return p, true
		}
	}
	return Point{}, false
}
