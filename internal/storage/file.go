package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	fileExt = ".json"
	tmpExt  = ".tmp"
)

// FileDriver stores each key in its own file under a directory.
//
// Writes go to a temp file first and are renamed into place, so a reader
// never observes a half-written value.
type FileDriver struct {
	dir string
	mu  sync.Mutex
}

// NewFileDriver returns a driver rooted at dir, creating it if needed.
func NewFileDriver(dir string) (*FileDriver, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileDriver{dir: dir}, nil
}

// Dir returns the storage directory.
func (d *FileDriver) Dir() string {
	return d.dir
}

func (d *FileDriver) Name() string { return "file" }

func (d *FileDriver) path(key string) string {
	return filepath.Join(d.dir, url.PathEscape(key)+fileExt)
}

// keyFromPath maps a file path back to its key.
func keyFromPath(path string) (string, bool) {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, fileExt) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(name, fileExt))
	if err != nil {
		return "", false
	}
	return key, true
}

func (d *FileDriver) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(d.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return string(data), nil
}

func (d *FileDriver) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	target := d.path(key)
	tmpPath := target + tmpExt
	if err := os.WriteFile(tmpPath, []byte(value), 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (d *FileDriver) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.Remove(d.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

func (d *FileDriver) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage directory: %w", err)
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if key, ok := keyFromPath(e.Name()); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
