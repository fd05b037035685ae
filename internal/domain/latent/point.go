// Package latent models the 2-D projection of the image index and the geometry used to select from it.
package latent

import (
	"fmt"
	"math"
)

// Point is one indexed image projected into [-1,1]x[-1,1].
type Point struct {
	ImageID   string  `json:"image_id"`
	ProjectID string  `json:"project_id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Typology  string  `json:"typology"`
	Title     string  `json:"title,omitempty"`
	Country   string  `json:"country,omitempty"`
}

// NewPoint validates a point: image id required, finite coordinates within the unit square.
func NewPoint(imageID, projectID string, x, y float64, typology, title, country string) (Point, error) {
	p := Point{
		ImageID:   imageID,
		ProjectID: projectID,
		X:         x,
		Y:         y,
		Typology:  typology,
		Title:     title,
		Country:   country,
	}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// Validate checks the point invariants.
func (p Point) Validate() error {
	if p.ImageID == "" {
		return fmt.Errorf("image_id is required")
	}
	if !inUnit(p.X) || !inUnit(p.Y) {
		return fmt.Errorf("point %s: coordinates (%g,%g) outside [-1,1]", p.ImageID, p.X, p.Y)
	}
	return nil
}

// Label is the tooltip title: the project title when known, the image id otherwise.
func (p Point) Label() string {
	if p.Title != "" {
		return p.Title
	}
	return p.ImageID
}

func inUnit(v float64) bool {
	return !math.IsNaN(v) && v >= -1 && v <= 1
}

// PointSet is an immutable, ordered set of points.
type PointSet struct {
	points []Point
}

// NewPointSet copies the given points. Order is preserved: it decides hit-test ties.
func NewPointSet(points []Point) PointSet {
	cp := make([]Point, len(points))
	copy(cp, points)
	return PointSet{points: cp}
}

// Len returns the number of points.
func (s PointSet) Len() int { return len(s.points) }

// At returns the i-th point.
func (s PointSet) At(i int) Point { return s.points[i] }

// All returns a copy of the points.
func (s PointSet) All() []Point {
	cp := make([]Point, len(s.points))
	copy(cp, s.points)
	return cp
}

// ProjectImageIDs returns the image ids of a project in point order.
func (s PointSet) ProjectImageIDs(projectID string) []string {
	if projectID == "" {
		return nil
	}
	var ids []string
	for _, p := range s.points {
		if p.ProjectID == projectID {
			ids = append(ids, p.ImageID)
		}
	}
	return ids
}
