// Package storage provides the key/value string store every SmartM
// collection is persisted through.
//
// A Driver is the backend strategy (files on disk or a SQLite table). It is
// picked once at startup and wrapped in a Store, which namespaces keys and
// applies the storage failure policy: the GetItem/SetItem family never
// fails and logs instead, while Lookup/Put/Delete return errors for callers
// that need to tell "absent" from "broken".
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/smartm-app/smartm/internal/logging"
)

var (
	// ErrNotFound is returned when a key has no value.
	ErrNotFound = errors.New("storage: key not found")

	// ErrUnavailable wraps any backend failure.
	ErrUnavailable = errors.New("storage: backend unavailable")
)

// Driver is a raw key/value backend.
type Driver interface {
	// Name identifies the backend in logs.
	Name() string

	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Keys lists every stored key.
	Keys(ctx context.Context) ([]string, error)
}

// Store namespaces keys under a prefix and applies the failure policy.
type Store struct {
	driver Driver
	prefix string
	logger *zap.Logger
}

// NewStore wraps driver. Every key passed to the Store is stored as
// prefix+key.
func NewStore(driver Driver, prefix string, logger *zap.Logger) *Store {
	return &Store{
		driver: driver,
		prefix: prefix,
		logger: logging.OrNop(logger).Named("storage").With(zap.String("driver", driver.Name())),
	}
}

// Driver returns the wrapped backend.
func (s *Store) Driver() Driver {
	return s.driver
}

// Key returns the physical key for a logical key.
func (s *Store) Key(key string) string {
	return s.prefix + key
}

// LogicalKey reverses Key. ok is false when raw does not carry the prefix.
func (s *Store) LogicalKey(raw string) (key string, ok bool) {
	if !strings.HasPrefix(raw, s.prefix) {
		return "", false
	}
	return strings.TrimPrefix(raw, s.prefix), true
}

// Lookup returns the value for key, ErrNotFound, or an error wrapping
// ErrUnavailable.
func (s *Store) Lookup(ctx context.Context, key string) (string, error) {
	v, err := s.driver.Get(ctx, s.Key(key))
	if errors.Is(err, ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}
	return v, nil
}

// Put stores value under key.
func (s *Store) Put(ctx context.Context, key, value string) error {
	if err := s.driver.Set(ctx, s.Key(key), value); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.driver.Remove(ctx, s.Key(key)); err != nil {
		return fmt.Errorf("%w: remove %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// GetItem returns the value for key. ok is false when the key is absent or
// the backend failed; failures are logged.
func (s *Store) GetItem(ctx context.Context, key string) (value string, ok bool) {
	v, err := s.Lookup(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("get failed", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	return v, true
}

// SetItem stores value under key, logging on failure.
func (s *Store) SetItem(ctx context.Context, key, value string) {
	if err := s.Put(ctx, key, value); err != nil {
		s.logger.Warn("set failed", zap.String("key", key), zap.Error(err))
	}
}

// RemoveItem deletes key, logging on failure.
func (s *Store) RemoveItem(ctx context.Context, key string) {
	if err := s.Delete(ctx, key); err != nil {
		s.logger.Warn("remove failed", zap.String("key", key), zap.Error(err))
	}
}

// Clear removes every key under the store prefix, logging on failure.
// Keys outside the prefix are left alone.
func (s *Store) Clear(ctx context.Context) {
	keys, err := s.driver.Keys(ctx)
	if err != nil {
		s.logger.Warn("clear failed", zap.Error(err))
		return
	}
	for _, raw := range keys {
		if key, ok := s.LogicalKey(raw); ok {
			s.RemoveItem(ctx, key)
		}
	}
}

// LookupJSON decodes the JSON value under key into v.
func (s *Store) LookupJSON(ctx context.Context, key string, v any) error {
	raw, err := s.Lookup(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// PutJSON encodes v and stores it under key.
func (s *Store) PutJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Put(ctx, key, string(data))
}
