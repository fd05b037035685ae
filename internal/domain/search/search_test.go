package search

import (
	"errors"
	"math"
	"testing"

	"github.com/kailas-cloud/circare/internal/domain"
	"github.com/kailas-cloud/circare/internal/domain/latent"
	"github.com/kailas-cloud/circare/internal/domain/weights"
)

func mustFile(t *testing.T, name string) Reference {
	t.Helper()
	ref, err := FileReference(name, []byte{0xff, 0xd8})
	if err != nil {
		t.Fatalf("FileReference(%q): %v", name, err)
	}
	return ref
}

func TestParsePhase(t *testing.T) {
	tests := []struct {
		in       string
		want     Phase
		upload   bool
		endpoint Endpoint
	}{
		{"", PhaseNone, true, EndpointSearchFile},
		{"bogus", PhaseNone, true, EndpointSearchFile},
		{"scored", PhaseScored, false, EndpointSearchFile},
		{"scored-upload", PhaseScoredUpload, true, EndpointQueryImage},
		{"explore", PhaseExplore, true, EndpointExplore},
	}
	for _, tc := range tests {
		p := ParsePhase(tc.in)
		if p != tc.want {
			t.Errorf("ParsePhase(%q) = %q, want %q", tc.in, p, tc.want)
		}
		if p.AllowsUpload() != tc.upload {
			t.Errorf("%q AllowsUpload() = %v", p, p.AllowsUpload())
		}
		if p.UploadEndpoint() != tc.endpoint {
			t.Errorf("%q UploadEndpoint() = %q", p, p.UploadEndpoint())
		}
	}
}

func TestFileReference_Validation(t *testing.T) {
	if _, err := FileReference("", []byte{1}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for empty name, got %v", err)
	}
	if _, err := FileReference("a.jpg", nil); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for empty data, got %v", err)
	}
	ref := mustFile(t, "../../etc/plan.PNG")
	if ref.Filename() != "plan.PNG" {
		t.Errorf("Filename() = %q", ref.Filename())
	}
	if ref.ContentType() != "image/png" {
		t.Errorf("ContentType() = %q", ref.ContentType())
	}
}

func TestURLReference_Validation(t *testing.T) {
	for _, bad := range []string{"", "ftp://x/y.jpg", "/relative.jpg", "http://"} {
		if _, err := URLReference(bad); err == nil {
			t.Errorf("URLReference(%q) should fail", bad)
		}
	}
	ref, err := URLReference(" https://example.org/a.jpg ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.URL() != "https://example.org/a.jpg" || ref.Kind() != RefURL {
		t.Errorf("ref = %+v", ref)
	}
}

func TestNewRequest_Defaults(t *testing.T) {
	req, err := NewRequest(Params{
		Reference: mustFile(t, "a.jpg"),
		Weights:   weights.Default(),
		Filters:   Filters{Typology: " education "},
		Rerank:    Rerank{Enabled: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.TopK() != DefaultTopK {
		t.Errorf("TopK() = %d, want %d", req.TopK(), DefaultTopK)
	}
	if req.Rerank().ReTopK != DefaultReTopK {
		t.Errorf("ReTopK = %d, want %d", req.Rerank().ReTopK, DefaultReTopK)
	}
	if req.Filters().Typology != "education" {
		t.Errorf("Typology = %q", req.Filters().Typology)
	}
	if req.Endpoint() != EndpointSearchFile {
		t.Errorf("Endpoint() = %q", req.Endpoint())
	}
	if !req.Lens().IsEmpty() {
		t.Error("expected empty lens")
	}
}

func TestNewRequest_Errors(t *testing.T) {
	if _, err := NewRequest(Params{Weights: weights.Default()}); !errors.Is(err, domain.ErrNoReference) {
		t.Errorf("expected ErrNoReference, got %v", err)
	}

	_, err := NewRequest(Params{Reference: mustFile(t, "a.jpg"), Weights: weights.Weights{Visual: math.NaN()}})
	if !errors.Is(err, domain.ErrInvalidWeights) {
		t.Errorf("expected ErrInvalidWeights, got %v", err)
	}

	_, err = NewRequest(Params{
		Reference: mustFile(t, "sheet.pdf"),
		Weights:   weights.Default(),
		Endpoint:  EndpointQueryImage,
	})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("query-image should reject pdf, got %v", err)
	}
}

func TestNewRequest_EndpointByReference(t *testing.T) {
	u, _ := URLReference("https://example.org/a.jpg")
	id, _ := ImageIDReference("i_p1_001")

	tests := []struct {
		ref  Reference
		ask  Endpoint
		want Endpoint
	}{
		{u, EndpointExplore, EndpointSearchURL},
		{id, "", EndpointSearchID},
		{mustFile(t, "sheet.pdf"), EndpointExplore, EndpointExplore},
		{mustFile(t, "a.png"), EndpointQueryImage, EndpointQueryImage},
	}
	for _, tc := range tests {
		req, err := NewRequest(Params{
			Reference: tc.ref,
			Weights:   weights.Default(),
			Endpoint:  tc.ask,
			Lens:      latent.NewLens(latent.SourceBrush, []string{"x"}),
		})
		if err != nil {
			t.Fatalf("NewRequest(%s): %v", tc.ref.Kind(), err)
		}
		if req.Endpoint() != tc.want {
			t.Errorf("%s: Endpoint() = %q, want %q", tc.ref.Kind(), req.Endpoint(), tc.want)
		}
	}
}

func TestNewResponse_Validation(t *testing.T) {
	items := []Item{{Rank: 1, ImageID: "a"}, {Rank: 2, ImageID: "b"}}
	if _, err := NewResponse("", 1, weights.Default(), nil, Filters{}, items); !errors.Is(err, domain.ErrInvalidResponse) {
		t.Errorf("expected ErrInvalidResponse for missing query id, got %v", err)
	}
	dup := []Item{{ImageID: "a"}, {ImageID: "a"}}
	if _, err := NewResponse("q", 1, weights.Default(), nil, Filters{}, dup); !errors.Is(err, domain.ErrInvalidResponse) {
		t.Errorf("expected ErrInvalidResponse for duplicate ids, got %v", err)
	}

	eff := weights.Weights{Visual: 0.5000001, Spatial: 0.25, Attr: 0.25}
	resp, err := NewResponse("q", 3, weights.Default(), &eff, Filters{}, items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(resp.Effective.Sum()-1) > weights.Epsilon {
		t.Errorf("effective sum = %v", resp.Effective.Sum())
	}
	if !resp.Has("b") || resp.Has("z") {
		t.Error("Has mismatch")
	}
	if got := resp.ImageIDs(); len(got) != 2 || got[0] != "a" {
		t.Errorf("ImageIDs() = %v", got)
	}
}
