package navigator

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/circare/internal/domain"
	domfb "github.com/kailas-cloud/circare/internal/domain/feedback"
	"github.com/kailas-cloud/circare/internal/domain/search"
	"github.com/kailas-cloud/circare/internal/domain/weights"
)

func TestManager_CreateIsIdempotentPerID(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	a, err := f.mgr.Create(ctx, "client-1", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, err := f.mgr.Create(ctx, "client-1", "wv=0&ws=1&wa=0")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a != b {
		t.Error("expected the live session to be returned")
	}
	if _, ok := f.repo.snaps["client-1"]; !ok {
		t.Error("new session was not persisted")
	}
}

func TestManager_CreateRejectsMalformedID(t *testing.T) {
	f := newFixture(t, Config{})
	if _, err := f.mgr.Create(context.Background(), "a b", ""); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestManager_GetUnknown(t *testing.T) {
	f := newFixture(t, Config{})
	if _, err := f.mgr.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestManager_CloseAndRestore(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	s := f.session(t, "wv=0.7&ws=0.2&wa=0.1")
	id := s.ID()

	s.SetFilters(search.Filters{ClimateBin: "temperate"})
	if _, err := s.SearchURL(ctx, "https://example.org/a.jpg"); err != nil {
		t.Fatalf("SearchURL: %v", err)
	}
	if _, err := s.Lens().SelectProject(ctx, "p1"); err != nil {
		t.Fatalf("SelectProject: %v", err)
	}
	if err := s.Vote("r2", domfb.VoteDisliked); err != nil {
		t.Fatalf("Vote: %v", err)
	}
	queryID := s.Feedback().QueryID()

	if err := f.mgr.Close(ctx, id); err != nil {
		t.Fatalf("Close: %v", err)
	}
	searches := len(f.searcher.requests())

	r, err := f.mgr.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if r == s {
		t.Fatal("expected a rebuilt session")
	}
	if got := r.Weights().Weights(); !got.Equal(weights.Weights{Visual: 0.7, Spatial: 0.2, Attr: 0.1}, 1e-9) {
		t.Errorf("weights = %+v", got)
	}
	if r.Reference().URL() != "https://example.org/a.jpg" {
		t.Errorf("reference = %+v", r.Reference())
	}
	if got := r.Lens().Lens().Sorted(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("lens = %v", got)
	}
	if r.Lens().SelectedProject() != "p1" {
		t.Errorf("project = %q", r.Lens().SelectedProject())
	}
	if r.Feedback().QueryID() != queryID || r.Feedback().Votes()["r2"] != domfb.VoteDisliked {
		t.Errorf("feedback = %q %v", r.Feedback().QueryID(), r.Feedback().Votes())
	}
	if r.View().Filters.ClimateBin != "temperate" {
		t.Errorf("filters = %+v", r.View().Filters)
	}
	if n := len(f.searcher.requests()); n != searches {
		t.Errorf("restore ran %d searches", n-searches)
	}
}

func TestManager_SharesPointFetch(t *testing.T) {
	f := newFixture(t, Config{})
	f.session(t, "")
	f.session(t, "")
	if f.points.calls != 1 {
		t.Errorf("point fetches = %d, want 1", f.points.calls)
	}
}

func TestManager_PointFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, Config{})
	f.points.err = errors.New("unreachable")
	s := f.session(t, "")

	if _, err := s.SearchURL(context.Background(), "https://example.org/a.jpg"); err != nil {
		t.Fatalf("search with broken map: %v", err)
	}
	if _, err := s.Lens().Scene(); !errors.Is(err, domain.ErrPointsUnavailable) {
		t.Errorf("scene err = %v", err)
	}

	// a later session retries the fetch
	f.points.err = nil
	s2 := f.session(t, "")
	if _, err := s2.Lens().Scene(); err != nil {
		t.Errorf("second session scene: %v", err)
	}
}

func TestManager_DeleteAndList(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	a := f.session(t, "")
	b := f.session(t, "")

	ids, err := f.mgr.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("ids = %v", ids)
	}

	if err := f.mgr.Delete(ctx, a.ID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.mgr.Get(ctx, a.ID()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("get deleted err = %v", err)
	}

	if err := f.mgr.CloseAll(ctx); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	if _, ok := f.repo.snaps[b.ID()]; !ok {
		t.Error("CloseAll did not persist the live session")
	}
}
