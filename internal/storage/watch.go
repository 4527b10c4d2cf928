package storage

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// ChangeOp is the kind of change observed on a stored key.
type ChangeOp int

const (
	// OpWrite means the key was created or overwritten.
	OpWrite ChangeOp = iota
	// OpRemove means the key was deleted.
	OpRemove
)

// String returns a human-readable representation of the operation.
func (op ChangeOp) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Change reports one key modified on disk.
type Change struct {
	Key string
	Op  ChangeOp
}

// Watch reports key changes in the storage directory, including changes
// made by other processes sharing it. The returned channel is closed when
// ctx is cancelled or the underlying watcher fails.
func (d *FileDriver) Watch(ctx context.Context) (<-chan Change, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(d.dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch storage directory %s: %w", d.dir, err)
	}

	changes := make(chan Change, 64)
	go func() {
		defer close(changes)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				change, ok := convertEvent(event)
				if !ok {
					continue
				}
				select {
				case changes <- change:
				case <-ctx.Done():
					return
				}

			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
				// Overflow and similar errors only mean events were lost.
			}
		}
	}()
	return changes, nil
}

// convertEvent maps an fsnotify event to a Change. Temp files and chmod
// events are ignored.
func convertEvent(event fsnotify.Event) (Change, bool) {
	key, ok := keyFromPath(event.Name)
	if !ok {
		return Change{}, false
	}

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		return Change{Key: key, Op: OpWrite}, true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return Change{Key: key, Op: OpRemove}, true
	default:
		return Change{}, false
	}
}
