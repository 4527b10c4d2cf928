package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/smartm-app/smartm/internal/logging"
	"github.com/smartm-app/smartm/internal/model"
	"github.com/smartm-app/smartm/internal/storage"
)

// QuarantineSuffix is appended to a collection key to name the key holding
// records that failed to decode.
const QuarantineSuffix = "_quarantine"

// QuarantinedRecord is a stored value set aside because it could not be
// decoded or validated.
type QuarantinedRecord struct {
	Raw    string `json:"raw"`
	Reason string `json:"reason"`
	At     string `json:"at"`
}

// Blob stores a collection as a JSON array under one storage key.
//
// Decoding happens per element: an element that does not unmarshal or
// validate is moved to the quarantine key and the rest of the collection
// loads normally. A value that is not a JSON array is moved to quarantine
// whole and Load reports ErrMalformedRecord.
type Blob[T model.Entity[T]] struct {
	key    string
	store  *storage.Store
	logger *zap.Logger
	now    func() time.Time

	// mu makes each read-modify-write a single step for this process.
	mu    sync.Mutex
	alloc idAllocator
}

// NewBlob returns a repository for the collection stored under key.
func NewBlob[T model.Entity[T]](store *storage.Store, key string, logger *zap.Logger) *Blob[T] {
	return &Blob[T]{
		key:    key,
		store:  store,
		logger: logging.OrNop(logger).Named("repo").With(zap.String("collection", key)),
		now:    time.Now,
	}
}

func (r *Blob[T]) Name() string { return r.key }

func (r *Blob[T]) Load(ctx context.Context) ([]T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

func (r *Blob[T]) GetAll(ctx context.Context) []T {
	items, err := r.Load(ctx)
	if err != nil {
		r.logger.Warn("returning empty collection", zap.Error(err))
		return []T{}
	}
	return items
}

func (r *Blob[T]) SaveAll(ctx context.Context, items []T) error {
	items, err := prepareAll(items)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(ctx, items)
}

func (r *Blob[T]) Add(ctx context.Context, item T) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.loadForWrite(ctx)
	if err != nil {
		return item, err
	}
	item, err = prepare(item.WithID(r.alloc.next(maxID(items))))
	if err != nil {
		return item, err
	}
	if err := r.save(ctx, append(items, item)); err != nil {
		return item, err
	}
	return item, nil
}

func (r *Blob[T]) Find(ctx context.Context, id int) (T, error) {
	var zero T
	items, err := r.Load(ctx)
	if err != nil {
		return zero, err
	}
	for _, it := range items {
		if it.GetID() == id {
			return it, nil
		}
	}
	return zero, fmt.Errorf("%s %d: %w", r.key, id, ErrNotFound)
}

func (r *Blob[T]) Update(ctx context.Context, id int, patch func(*T)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.loadForWrite(ctx)
	if err != nil {
		return err
	}
	for i, it := range items {
		if it.GetID() != id {
			continue
		}
		updated, err := patchRecord(it, patch)
		if err != nil {
			return err
		}
		items[i] = updated
		return r.save(ctx, items)
	}
	return fmt.Errorf("%s %d: %w", r.key, id, ErrNotFound)
}

func (r *Blob[T]) Remove(ctx context.Context, id int) error {
	_, err := r.RemoveWhere(ctx, func(it T) bool { return it.GetID() == id })
	return err
}

func (r *Blob[T]) RemoveWhere(ctx context.Context, pred func(T) bool) ([]T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.loadForWrite(ctx)
	if err != nil {
		return nil, err
	}
	var kept, removed []T
	for _, it := range items {
		if pred(it) {
			removed = append(removed, it)
		} else {
			kept = append(kept, it)
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}
	if err := r.save(ctx, kept); err != nil {
		return nil, err
	}
	return removed, nil
}

func (r *Blob[T]) Count(ctx context.Context) (int, error) {
	items, err := r.Load(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Quarantined returns the records set aside for this collection.
func (r *Blob[T]) Quarantined(ctx context.Context) ([]QuarantinedRecord, error) {
	var out []QuarantinedRecord
	err := r.store.LookupJSON(ctx, r.key+QuarantineSuffix, &out)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return out, err
}

// loadForWrite is load for mutations: a malformed collection has already
// been quarantined, so the write proceeds from empty.
func (r *Blob[T]) loadForWrite(ctx context.Context) ([]T, error) {
	items, err := r.load(ctx)
	if errors.Is(err, ErrMalformedRecord) {
		return []T{}, nil
	}
	return items, err
}

func (r *Blob[T]) load(ctx context.Context) ([]T, error) {
	raw, err := r.store.Lookup(ctx, r.key)
	if errors.Is(err, storage.ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		r.logger.Warn("collection is not a JSON array, quarantining", zap.Error(err))
		if qerr := r.quarantine(ctx, []QuarantinedRecord{r.record(raw, err)}); qerr == nil {
			if derr := r.store.Delete(ctx, r.key); derr != nil {
				r.logger.Warn("failed to clear malformed collection", zap.Error(derr))
			}
		}
		return nil, fmt.Errorf("%s: %w: %v", r.key, ErrMalformedRecord, err)
	}

	items := make([]T, 0, len(elems))
	var rejected []QuarantinedRecord
	for _, elem := range elems {
		item, err := decode[T](elem)
		if err != nil {
			rejected = append(rejected, r.record(string(elem), err))
			continue
		}
		items = append(items, item)
	}
	r.alloc.observe(ids(items)...)

	if len(rejected) > 0 {
		r.logger.Warn("quarantining invalid records", zap.Int("count", len(rejected)))
		if err := r.quarantine(ctx, rejected); err != nil {
			r.logger.Warn("failed to quarantine records", zap.Error(err))
		} else if err := r.save(ctx, items); err != nil {
			r.logger.Warn("failed to rewrite collection after quarantine", zap.Error(err))
		}
	}
	return items, nil
}

func decode[T model.Entity[T]](elem json.RawMessage) (T, error) {
	var item T
	if err := json.Unmarshal(elem, &item); err != nil {
		return item, err
	}
	return prepare(item)
}

func (r *Blob[T]) save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	r.alloc.observe(ids(items)...)
	return r.store.PutJSON(ctx, r.key, items)
}

func (r *Blob[T]) record(raw string, reason error) QuarantinedRecord {
	return QuarantinedRecord{Raw: raw, Reason: reason.Error(), At: r.now().Format(time.RFC3339)}
}

func (r *Blob[T]) quarantine(ctx context.Context, recs []QuarantinedRecord) error {
	key := r.key + QuarantineSuffix
	var existing []QuarantinedRecord
	if err := r.store.LookupJSON(ctx, key, &existing); err != nil && !errors.Is(err, storage.ErrNotFound) {
		// An unreadable quarantine is replaced rather than blocking new entries.
		existing = nil
	}
	return r.store.PutJSON(ctx, key, append(existing, recs...))
}
