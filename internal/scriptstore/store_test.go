package scriptstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"orbyte.systems/orbyte/schema"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), ".js", nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestListFiltersAndSorts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, name := range []string{"zeta.js", "alpha.js", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(s.Root(), name), []byte("x"), 0o644); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(s.Root(), "sub.js"), 0o755); err != nil {
		t.Fatalf("seed dir: %v", err)
	}
	refs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 scripts, got %d: %+v", len(refs), refs)
	}
	if refs[0].Name != "alpha.js" || refs[1].Name != "zeta.js" {
		t.Fatalf("unexpected order: %+v", refs)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, "demo.js", "console.log(1);"); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load(ctx, "demo.js")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != "console.log(1);" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestLoadMissingScript(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Load(context.Background(), "nope.js"); !errors.Is(err, schema.ErrScriptNotFound) {
		t.Fatalf("expected ErrScriptNotFound, got %v", err)
	}
}

func TestRenameMovesFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, "a.js", "x"); err != nil {
		t.Fatalf("save: %v", err)
	}
	ref, err := s.Rename(ctx, "a.js", "b.js")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if ref.Name != "b.js" {
		t.Fatalf("unexpected ref: %+v", ref)
	}
	if s.Exists("a.js") || !s.Exists("b.js") {
		t.Fatalf("rename did not move the file")
	}
}

func TestRenameRefusesExistingTarget(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, "a.js", "x"); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := s.Save(ctx, "b.js", "y"); err != nil {
		t.Fatalf("save b: %v", err)
	}
	if _, err := s.Rename(ctx, "a.js", "b.js"); !errors.Is(err, schema.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestDeleteRemovesFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, "a.js", "x"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Delete(ctx, "a.js"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Exists("a.js") {
		t.Fatalf("file still present after delete")
	}
	if err := s.Delete(ctx, "a.js"); !errors.Is(err, schema.ErrScriptNotFound) {
		t.Fatalf("expected ErrScriptNotFound, got %v", err)
	}
}
