package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kailas-cloud/circare/internal/db"
)

func TestStore_PersistsAcrossOpen(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "state.json")
	ctx := context.Background()

	s, err := Open(p)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Set(ctx, "arch-circare.session_id", []byte("abc")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.Close()

	s2, err := Open(p)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := s2.Get(ctx, "arch-circare.session_id")
	if err != nil || string(got) != "abc" {
		t.Errorf("Get() = %q, %v", got, err)
	}
}

func TestStore_DelAndMissing(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "s.json"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_ = s.Set(ctx, "a", []byte("1"))
	if err := s.Del(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "a"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
	if err := s.Del(ctx, "never"); err != nil {
		t.Errorf("deleting a missing key: %v", err)
	}
}

func TestStore_TTLAndScan(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "s.json"))
	if err != nil {
		t.Fatal(err)
	}
	now := time.Unix(2000, 0)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_ = s.SetWithTTL(ctx, "circare:session:x", []byte("{}"), time.Minute)
	_ = s.Set(ctx, "circare:session:y", []byte("{}"))

	keys, _ := s.Scan(ctx, "circare:session:*")
	if len(keys) != 2 {
		t.Fatalf("Scan() = %v", keys)
	}
	now = now.Add(time.Minute)
	keys, _ = s.Scan(ctx, "circare:session:*")
	if len(keys) != 1 || keys[0] != "circare:session:y" {
		t.Errorf("Scan() after expiry = %v", keys)
	}
}

func TestOpen_CorruptFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(p, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := Open(p)
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpLoad {
		t.Errorf("expected load error, got %v", err)
	}
}
