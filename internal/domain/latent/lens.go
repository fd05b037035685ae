package latent

import (
	"sort"
	"strings"
)

// LensSource records how a lens was created.
type LensSource string

// Lens sources.
const (
	SourceNone    LensSource = ""
	SourceBrush   LensSource = "brush"
	SourceProject LensSource = "project"
)

// Lens is a set of image ids that scopes subsequent searches.
// Insertion order is kept for display; equality ignores it.
type Lens struct {
	ids       []string
	index     map[string]struct{}
	projectID string
	source    LensSource
}

// NewLens builds a lens from image ids, dropping blanks and duplicates.
func NewLens(source LensSource, ids []string) Lens {
	l := Lens{source: source, index: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := l.index[id]; dup {
			continue
		}
		l.index[id] = struct{}{}
		l.ids = append(l.ids, id)
	}
	if len(l.ids) == 0 {
		return Lens{}
	}
	return l
}

// NewProjectLens builds a lens from a project's image ids, remembering the project.
func NewProjectLens(projectID string, ids []string) Lens {
	l := NewLens(SourceProject, ids)
	if l.IsEmpty() && projectID == "" {
		return Lens{}
	}
	l.projectID = projectID
	l.source = SourceProject
	return l
}

// IsEmpty reports whether the lens selects nothing.
func (l Lens) IsEmpty() bool { return len(l.ids) == 0 && l.projectID == "" }

// Len returns the number of image ids.
func (l Lens) Len() int { return len(l.ids) }

// ImageIDs returns a copy of the ids in insertion order.
func (l Lens) ImageIDs() []string {
	out := make([]string, len(l.ids))
	copy(out, l.ids)
	return out
}

// ProjectID returns the project the lens was built from, if any.
func (l Lens) ProjectID() string { return l.projectID }

// Source returns how the lens was created.
func (l Lens) Source() LensSource { return l.source }

// Contains reports membership of an image id.
func (l Lens) Contains(imageID string) bool {
	_, ok := l.index[imageID]
	return ok
}

// Equal compares the id sets and project, ignoring order and source.
func (l Lens) Equal(o Lens) bool {
	if len(l.ids) != len(o.ids) || l.projectID != o.projectID {
		return false
	}
	for _, id := range l.ids {
		if !o.Contains(id) {
			return false
		}
	}
	return true
}

// Sorted returns the ids in lexical order.
func (l Lens) Sorted() []string {
	out := l.ImageIDs()
	sort.Strings(out)
	return out
}
