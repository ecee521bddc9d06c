package credstore

import (
	"context"
	"path/filepath"
	"testing"
)

var samplePair = Pair{AccessToken: "access-1", RefreshToken: "refresh-1"}

func TestMemory_RoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	pair, err := m.Read(ctx)
	if err != nil || pair != nil {
		t.Fatalf("empty read = %v, %v", pair, err)
	}

	if err := m.Save(ctx, samplePair); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	pair, err = m.Read(ctx)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if pair == nil || *pair != samplePair {
		t.Fatalf("read = %+v", pair)
	}

	if err := m.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if err := m.Clear(ctx); err != nil {
		t.Fatalf("second clear should be a no-op: %v", err)
	}
	pair, _ = m.Read(ctx)
	if pair != nil {
		t.Fatal("pair survived clear")
	}
}

func TestMemory_LostOnReinstantiation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.Save(ctx, samplePair); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Simulated restart: a fresh store instance holds nothing.
	reloaded := NewMemory()
	pair, err := reloaded.Read(ctx)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if pair != nil {
		t.Fatalf("non-persisted session survived reload: %+v", pair)
	}
}

func TestFile_SurvivesReinstantiation(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")

	f, err := NewFile(path)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if err := f.Save(ctx, samplePair); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	reloaded, err := NewFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	pair, err := reloaded.Read(ctx)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if pair == nil || *pair != samplePair {
		t.Fatalf("read after reload = %+v", pair)
	}
}

func TestFile_ClearIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")

	f, err := NewFile(path)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	// Clearing before anything was ever saved must not fail.
	if err := f.Clear(ctx); err != nil {
		t.Fatalf("clear on missing file: %v", err)
	}

	if err := f.Save(ctx, samplePair); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := f.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if err := f.Clear(ctx); err != nil {
		t.Fatalf("second clear failed: %v", err)
	}

	pair, err := f.Read(ctx)
	if err != nil || pair != nil {
		t.Fatalf("read after clear = %v, %v", pair, err)
	}
}

func TestNewFile_RequiresPath(t *testing.T) {
	if _, err := NewFile(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
