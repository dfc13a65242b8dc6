package database

import (
	"context"
	"errors"
	"fmt"
)

// Entry is one enrolled embedding and the subject it belongs to.
// Embedding slices are shared between snapshots and must never be mutated.
type Entry struct {
	Embedding []float32
	Label     string
}

// LabelCount is the number of entries enrolled under one label.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// ErrStoreNotFound is returned by backends when nothing has been persisted yet.
// EmbeddingStore.Load treats it as an empty store.
var ErrStoreNotFound = errors.New("embedding store not found")

// ErrDimensionMismatch matches every DimensionMismatchError under errors.Is.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// DimensionMismatchError rejects a write whose vector length differs from the
// store's established length.
type DimensionMismatchError struct {
	Label    string
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch for %q: expected %d, got %d", e.Label, e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrDimensionMismatch) work.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// StoreIOError is a load or save failure at the persistence boundary.
type StoreIOError struct {
	Op       string // "load" or "save"
	Location string
	Err      error
}

func (e *StoreIOError) Error() string {
	return fmt.Sprintf("embedding store %s %s: %v", e.Op, e.Location, e.Err)
}

func (e *StoreIOError) Unwrap() error {
	return e.Err
}

// Backend persists the ordered entry list. Save replaces everything previously
// persisted; Load returns entries in the order they were saved.
type Backend interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, entries []Entry) error
	Location() string
}

// checkDims verifies every entry has length dim, or establishes dim from the first
// entry when dim is 0. It returns the resulting dimension.
func checkDims(dim int, entries []Entry) (int, error) {
	for _, e := range entries {
		if dim == 0 {
			dim = len(e.Embedding)
		}
		if len(e.Embedding) == 0 || len(e.Embedding) != dim {
			return dim, &DimensionMismatchError{Label: e.Label, Expected: dim, Actual: len(e.Embedding)}
		}
	}
	return dim, nil
}
