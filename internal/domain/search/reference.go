package search

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/kailas-cloud/circare/internal/domain"
)

// MaxUploadBytes caps the size of an uploaded reference image.
const MaxUploadBytes = 10 << 20

// ReferenceKind identifies what a search is anchored on.
type ReferenceKind string

// Reference kinds.
const (
	RefNone    ReferenceKind = ""
	RefFile    ReferenceKind = "file"
	RefURL     ReferenceKind = "url"
	RefImageID ReferenceKind = "image_id"
)

// Reference is the query anchor of a search: uploaded bytes, a remote image
// URL, or the id of an image already in the corpus.
type Reference struct {
	kind     ReferenceKind
	filename string
	data     []byte
	url      string
	imageID  string
}

// FileReference wraps uploaded image bytes.
func FileReference(filename string, data []byte) (Reference, error) {
	filename = path.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == "/" {
		return Reference{}, fmt.Errorf("%w: filename is required", domain.ErrInvalidRequest)
	}
	if len(data) == 0 {
		return Reference{}, fmt.Errorf("%w: empty upload", domain.ErrInvalidRequest)
	}
	if len(data) > MaxUploadBytes {
		return Reference{}, fmt.Errorf("%w: upload exceeds %d bytes", domain.ErrInvalidRequest, MaxUploadBytes)
	}
	return Reference{kind: RefFile, filename: filename, data: data}, nil
}

// URLReference wraps a public http(s) image URL.
func URLReference(raw string) (Reference, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Reference{}, fmt.Errorf("%w: image url must be absolute http(s)", domain.ErrInvalidRequest)
	}
	return Reference{kind: RefURL, url: raw}, nil
}

// ImageIDReference anchors the search on an indexed image.
func ImageIDReference(imageID string) (Reference, error) {
	imageID = strings.TrimSpace(imageID)
	if imageID == "" {
		return Reference{}, fmt.Errorf("%w: image id is required", domain.ErrInvalidRequest)
	}
	return Reference{kind: RefImageID, imageID: imageID}, nil
}

// Kind returns the reference kind.
func (r Reference) Kind() ReferenceKind { return r.kind }

// IsZero reports whether no reference is set.
func (r Reference) IsZero() bool { return r.kind == RefNone }

// Filename returns the upload filename.
func (r Reference) Filename() string { return r.filename }

// Data returns the uploaded bytes.
func (r Reference) Data() []byte { return r.data }

// URL returns the remote image URL.
func (r Reference) URL() string { return r.url }

// ImageID returns the corpus image id.
func (r Reference) ImageID() string { return r.imageID }

// ContentType guesses the upload MIME type from the filename extension.
func (r Reference) ContentType() string {
	switch strings.ToLower(path.Ext(r.filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	}
	return "application/octet-stream"
}

// AcceptedBy reports whether the upload endpoint accepts this file type.
// The study endpoints are stricter than /search/file.
func (r Reference) AcceptedBy(e Endpoint) bool {
	ct := r.ContentType()
	switch e {
	case EndpointQueryImage:
		return ct == "image/jpeg" || ct == "image/png"
	case EndpointExplore:
		return ct == "image/jpeg" || ct == "image/png" || ct == "application/pdf"
	}
	return true
}
