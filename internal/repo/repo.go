// Package repo provides typed collection repositories over either storage
// strategy.
//
// Every entity collection is exposed through the same Repository contract.
// Blob keeps the whole collection as one JSON array under a storage key;
// SQL maps it onto a table of the embedded database. Callers never learn
// which one they hold.
package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/smartm-app/smartm/internal/model"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("record not found")

	// ErrMalformedRecord is returned by Load when the stored collection
	// could not be decoded at all.
	ErrMalformedRecord = errors.New("malformed collection")

	// ErrDuplicateID is returned by SaveAll when two records share an id.
	ErrDuplicateID = errors.New("duplicate record id")
)

// Repository is the CRUD contract for one entity collection.
//
// Load and the mutating methods return errors so callers can tell an empty
// collection from a failed read. GetAll is the lenient form: any failure
// is logged and reported as an empty collection.
type Repository[T model.Entity[T]] interface {
	// Name is the logical collection name (the storage key or table).
	Name() string

	// Load returns every record in id order of storage.
	Load(ctx context.Context) ([]T, error)

	// GetAll returns every record, or an empty slice on any failure.
	GetAll(ctx context.Context) []T

	// SaveAll replaces the whole collection in one write. Every record is
	// validated and ids must be unique; on error nothing is written.
	SaveAll(ctx context.Context, items []T) error

	// Add assigns the next id to item, stores it and returns the stored copy.
	Add(ctx context.Context, item T) (T, error)

	// Find returns the record with id, or ErrNotFound.
	Find(ctx context.Context, id int) (T, error)

	// Update applies patch to the record with id and stores it. The id
	// cannot be changed by patch. Returns ErrNotFound for unknown ids.
	Update(ctx context.Context, id int, patch func(*T)) error

	// Remove deletes the record with id. Unknown ids are ignored.
	Remove(ctx context.Context, id int) error

	// RemoveWhere deletes every record matching pred and returns the
	// removed records.
	RemoveWhere(ctx context.Context, pred func(T) bool) ([]T, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}

// idAllocator hands out ids as max(existing, highest seen) + 1, so an id
// freed by a delete is not reissued for the lifetime of the repository.
type idAllocator struct {
	mu   sync.Mutex
	high int
}

// observe records ids seen in storage.
func (a *idAllocator) observe(ids ...int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range ids {
		if id > a.high {
			a.high = id
		}
	}
}

// next returns the id for a new record given the current stored maximum.
func (a *idAllocator) next(maxExisting int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if maxExisting > a.high {
		a.high = maxExisting
	}
	a.high++
	return a.high
}

func maxID[T model.Entity[T]](items []T) int {
	m := 0
	for _, it := range items {
		if id := it.GetID(); id > m {
			m = id
		}
	}
	return m
}

func ids[T model.Entity[T]](items []T) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.GetID()
	}
	return out
}

// prepare normalizes and validates a record about to be written.
func prepare[T model.Entity[T]](item T) (T, error) {
	if n, ok := any(&item).(model.Normalizer); ok {
		n.Normalize()
	}
	if err := model.Validate(item); err != nil {
		return item, err
	}
	return item, nil
}

// prepareAll runs prepare over a whole collection and rejects repeated ids.
func prepareAll[T model.Entity[T]](items []T) ([]T, error) {
	out := make([]T, len(items))
	seen := make(map[int]struct{}, len(items))
	for i, it := range items {
		id := it.GetID()
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateID, id)
		}
		seen[id] = struct{}{}

		prepared, err := prepare(it)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", id, err)
		}
		out[i] = prepared
	}
	return out, nil
}

// patchRecord applies patch to a copy of item and pins the id.
func patchRecord[T model.Entity[T]](item T, patch func(*T)) (T, error) {
	id := item.GetID()
	patch(&item)
	item = item.WithID(id)
	return prepare(item)
}
