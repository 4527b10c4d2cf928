package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

const localStorageTable = "local_storage"

// SQLDriver stores keys in the local_storage table of the embedded database.
type SQLDriver struct {
	db *sql.DB
	qb sq.StatementBuilderType
}

// NewSQLDriver returns a driver over an already migrated database.
func NewSQLDriver(db *sql.DB) *SQLDriver {
	return &SQLDriver{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Question).RunWith(db),
	}
}

func (d *SQLDriver) Name() string { return "sqlite" }

func (d *SQLDriver) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := d.qb.Select("value").
		From(localStorageTable).
		Where(sq.Eq{"key": key}).
		QueryRowContext(ctx).
		Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func (d *SQLDriver) Set(ctx context.Context, key, value string) error {
	_, err := d.qb.Insert(localStorageTable).
		Columns("key", "value").
		Values(key, value).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value").
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (d *SQLDriver) Remove(ctx context.Context, key string) error {
	_, err := d.qb.Delete(localStorageTable).
		Where(sq.Eq{"key": key}).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

func (d *SQLDriver) Keys(ctx context.Context) ([]string, error) {
	rows, err := d.qb.Select("key").
		From(localStorageTable).
		OrderBy("key").
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
