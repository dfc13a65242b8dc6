package database

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestFileBackend_MissingFile(t *testing.T) {
	b := NewFileBackend(filepath.Join(t.TempDir(), "embeddings.gob"))

	_, err := b.Load(context.Background())
	if !errors.Is(err, ErrStoreNotFound) {
		t.Errorf("expected ErrStoreNotFound, got %v", err)
	}
}

func TestFileBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sub", "embeddings.gob")
	b := NewFileBackend(path)

	entries := []Entry{
		{Embedding: []float32{0.1, -0.2, float32(math.Pi)}, Label: "Rick"},
		{Embedding: []float32{float32(math.Copysign(0, -1)), math.MaxFloat32, math.SmallestNonzeroFloat32}, Label: "Ana"},
		{Embedding: []float32{1e-7, 3.3333333, -42}, Label: "Rick"},
		{Embedding: []float32{0, 0, 0}, Label: ""},
	}

	if err := b.Save(ctx, entries); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if len(loaded) != len(entries) {
		t.Fatalf("expected %d entries, got %d", len(entries), len(loaded))
	}
	for i := range entries {
		if loaded[i].Label != entries[i].Label {
			t.Errorf("entry %d: expected label %q, got %q", i, entries[i].Label, loaded[i].Label)
		}
		for j := range entries[i].Embedding {
			want := math.Float32bits(entries[i].Embedding[j])
			got := math.Float32bits(loaded[i].Embedding[j])
			if want != got {
				t.Errorf("entry %d value %d: expected bits %08x, got %08x", i, j, want, got)
			}
		}
	}
}

func TestFileBackend_SaveEmpty(t *testing.T) {
	ctx := context.Background()
	b := NewFileBackend(filepath.Join(t.TempDir(), "embeddings.gob"))

	if err := b.Save(ctx, nil); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected no entries, got %d", len(loaded))
	}
}

func TestFileBackend_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.gob")
	if err := os.WriteFile(path, []byte("definitely not gob"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := NewFileBackend(path).Load(context.Background())
	if err == nil {
		t.Fatal("expected error for corrupt file")
	}
	if errors.Is(err, ErrStoreNotFound) {
		t.Error("corrupt file must not be reported as missing")
	}
}

func TestFileBackend_OverwriteLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := NewFileBackend(filepath.Join(dir, "embeddings.gob"))

	for i := range 3 {
		if err := b.Save(ctx, []Entry{{Embedding: []float32{float32(i), 1}, Label: "A"}}); err != nil {
			t.Fatalf("save %d failed: %v", i, err)
		}
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Errorf("expected only the store file, got %d files", len(files))
	}

	loaded, _ := b.Load(ctx)
	if len(loaded) != 1 || loaded[0].Embedding[0] != 2 {
		t.Errorf("expected last save to win, got %+v", loaded)
	}
}
