package storage

import "fmt"

// Kind names a storage strategy.
type Kind string

const (
	KindFile   Kind = "file"
	KindSQLite Kind = "sqlite"
)

// ParseKind validates a configured strategy name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindFile, KindSQLite:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown storage driver %q", s)
	}
}
