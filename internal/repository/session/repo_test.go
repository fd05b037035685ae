package session

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kailas-cloud/circare/internal/db"
	"github.com/kailas-cloud/circare/internal/db/memory"
	"github.com/kailas-cloud/circare/internal/domain"
	domfb "github.com/kailas-cloud/circare/internal/domain/feedback"
	"github.com/kailas-cloud/circare/internal/domain/latent"
	"github.com/kailas-cloud/circare/internal/domain/search"
	domsess "github.com/kailas-cloud/circare/internal/domain/session"
)

func sampleSnapshot() domsess.Snapshot {
	votes := domfb.Votes{}
	votes.Set("img-1", domfb.VoteLiked)
	votes.Set("img-2", domfb.VoteDisliked)
	return domsess.Snapshot{
		ID:        "s-1",
		Query:     "wv=0.7&ws=0.2&wa=0.1",
		Filters:   search.Filters{Typology: "education", Strict: true},
		Rerank:    search.Rerank{Enabled: true, ReTopK: 48},
		TopK:      24,
		Lens:      latent.NewLens(latent.SourceBrush, []string{"a", "b"}),
		RefURL:    "https://example.org/a.jpg",
		QueryID:   "q-9",
		Votes:     votes,
		CreatedAt: time.UnixMilli(1_700_000_000_000),
		UpdatedAt: time.UnixMilli(1_700_000_100_000),
	}
}

func TestRepo_SaveLoadRoundTrip(t *testing.T) {
	repo := New(memory.NewStore(), time.Hour)
	ctx := context.Background()
	in := sampleSnapshot()

	if err := repo.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err := repo.Load(ctx, "s-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if out.Query != in.Query || out.Filters != in.Filters || out.Rerank != in.Rerank || out.TopK != 24 {
		t.Errorf("scalar fields differ: %+v", out)
	}
	if !out.Lens.Equal(in.Lens) || out.Lens.Source() != latent.SourceBrush {
		t.Errorf("lens = %v (%s)", out.Lens.ImageIDs(), out.Lens.Source())
	}
	if !reflect.DeepEqual(out.Votes, in.Votes) {
		t.Errorf("votes = %v, want %v", out.Votes, in.Votes)
	}
	if !out.UpdatedAt.Equal(in.UpdatedAt) {
		t.Errorf("updated at = %v", out.UpdatedAt)
	}
}

func TestRepo_ProjectLensRoundTrip(t *testing.T) {
	repo := New(memory.NewStore(), 0)
	ctx := context.Background()
	in := sampleSnapshot()
	in.Lens = latent.NewProjectLens("p7", []string{"x", "y"})
	in.Project = "p7"

	if err := repo.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err := repo.Load(ctx, in.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Lens.ProjectID() != "p7" || out.Lens.Len() != 2 || out.Project != "p7" {
		t.Errorf("lens = %+v, project = %q", out.Lens.ImageIDs(), out.Project)
	}
}

func TestRepo_Load_NotFound(t *testing.T) {
	repo := New(&mockStore{
		getFn: func(context.Context, string) ([]byte, error) { return nil, db.ErrKeyNotFound },
	}, time.Hour)

	_, err := repo.Load(context.Background(), "missing")
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestRepo_Load_StoreError(t *testing.T) {
	boom := errors.New("boom")
	repo := New(&mockStore{
		getFn: func(context.Context, string) ([]byte, error) { return nil, boom },
	}, time.Hour)

	_, err := repo.Load(context.Background(), "s-1")
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
}

func TestRepo_Save_UsesPrefixAndTTL(t *testing.T) {
	var gotKey string
	var gotTTL time.Duration
	repo := New(&mockStore{
		setWithTTLFn: func(_ context.Context, key string, _ []byte, ttl time.Duration) error {
			gotKey, gotTTL = key, ttl
			return nil
		},
	}, 2*time.Hour)

	if err := repo.Save(context.Background(), sampleSnapshot()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if gotKey != "circare:session:s-1" {
		t.Errorf("key = %q", gotKey)
	}
	if gotTTL != 2*time.Hour {
		t.Errorf("ttl = %v", gotTTL)
	}
}

func TestRepo_Save_RejectsBadID(t *testing.T) {
	repo := New(&mockStore{}, time.Hour)
	s := sampleSnapshot()
	s.ID = "bad*id"
	if err := repo.Save(context.Background(), s); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestRepo_List(t *testing.T) {
	repo := New(&mockStore{
		scanFn: func(_ context.Context, pattern string) ([]string, error) {
			if pattern != "circare:session:*" {
				t.Errorf("pattern = %q", pattern)
			}
			return []string{"circare:session:a", "circare:session:b"}, nil
		},
	}, time.Hour)

	ids, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"a", "b"}) {
		t.Errorf("ids = %v", ids)
	}
}

func TestIdentity_CreatesOnceAndReuses(t *testing.T) {
	store := memory.NewStore()
	id := NewIdentity(store)
	n := 0
	id.newID = func() string {
		n++
		return "generated-" + string(rune('0'+n))
	}
	ctx := context.Background()

	first, err := id.ID(ctx)
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	second, err := id.ID(ctx)
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	if first != "generated-1" || second != first {
		t.Errorf("ids = %q, %q; want a single generated id", first, second)
	}

	rotated, err := id.Rotate(ctx)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if rotated == first {
		t.Error("Rotate kept the old id")
	}
	if got, _ := id.ID(ctx); got != rotated {
		t.Errorf("ID after rotate = %q, want %q", got, rotated)
	}
}

func TestIdentity_StoreError(t *testing.T) {
	boom := errors.New("boom")
	id := NewIdentity(&mockStore{
		getFn: func(context.Context, string) ([]byte, error) { return nil, boom },
	})
	if _, err := id.ID(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}
