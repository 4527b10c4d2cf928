package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/smartm-app/smartm/internal/db"
	"github.com/smartm-app/smartm/internal/logging"
	"github.com/smartm-app/smartm/internal/model"
)

// insertBatch bounds rows per INSERT statement during SaveAll.
const insertBatch = 100

// Mapping binds a record type to a table. Columns must start with "id" and
// Values/Scan must follow the same column order.
type Mapping[T any] struct {
	Table   string
	Columns []string
	Values  func(T) []any
	Scan    func(scan func(dest ...any) error) (T, error)
}

// SQL stores a collection as rows of one table.
type SQL[T model.Entity[T]] struct {
	conn    *sql.DB
	mapping Mapping[T]
	logger  *zap.Logger
	alloc   idAllocator
}

// NewSQL returns a repository over mapping.Table.
func NewSQL[T model.Entity[T]](conn *sql.DB, mapping Mapping[T], logger *zap.Logger) *SQL[T] {
	return &SQL[T]{
		conn:    conn,
		mapping: mapping,
		logger:  logging.OrNop(logger).Named("repo").With(zap.String("table", mapping.Table)),
	}
}

func builder(runner sq.BaseRunner) sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Question).RunWith(runner)
}

func (r *SQL[T]) Name() string { return r.mapping.Table }

func (r *SQL[T]) Load(ctx context.Context) ([]T, error) {
	return r.loadWith(ctx, r.conn)
}

func (r *SQL[T]) GetAll(ctx context.Context) []T {
	items, err := r.Load(ctx)
	if err != nil {
		r.logger.Warn("returning empty collection", zap.Error(err))
		return []T{}
	}
	return items
}

func (r *SQL[T]) SaveAll(ctx context.Context, items []T) error {
	items, err := prepareAll(items)
	if err != nil {
		return err
	}
	return db.WithTx(ctx, r.conn, func(tx *sql.Tx) error {
		qb := builder(tx)
		if _, err := qb.Delete(r.mapping.Table).ExecContext(ctx); err != nil {
			return fmt.Errorf("failed to clear %s: %w", r.mapping.Table, err)
		}
		for start := 0; start < len(items); start += insertBatch {
			end := min(start+insertBatch, len(items))
			ins := qb.Insert(r.mapping.Table).Columns(r.mapping.Columns...)
			for _, it := range items[start:end] {
				ins = ins.Values(r.mapping.Values(it)...)
			}
			if _, err := ins.ExecContext(ctx); err != nil {
				return fmt.Errorf("failed to insert into %s: %w", r.mapping.Table, err)
			}
		}
		r.alloc.observe(ids(items)...)
		return nil
	})
}

func (r *SQL[T]) Add(ctx context.Context, item T) (T, error) {
	err := db.WithTx(ctx, r.conn, func(tx *sql.Tx) error {
		qb := builder(tx)
		var maxExisting int
		if err := qb.Select("COALESCE(MAX(id), 0)").From(r.mapping.Table).
			QueryRowContext(ctx).Scan(&maxExisting); err != nil {
			return fmt.Errorf("failed to read max id of %s: %w", r.mapping.Table, err)
		}

		var err error
		item, err = prepare(item.WithID(r.alloc.next(maxExisting)))
		if err != nil {
			return err
		}
		_, err = qb.Insert(r.mapping.Table).
			Columns(r.mapping.Columns...).
			Values(r.mapping.Values(item)...).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert into %s: %w", r.mapping.Table, err)
		}
		return nil
	})
	return item, err
}

func (r *SQL[T]) Find(ctx context.Context, id int) (T, error) {
	return r.findWith(ctx, r.conn, id)
}

func (r *SQL[T]) Update(ctx context.Context, id int, patch func(*T)) error {
	return db.WithTx(ctx, r.conn, func(tx *sql.Tx) error {
		current, err := r.findWith(ctx, tx, id)
		if err != nil {
			return err
		}
		updated, err := patchRecord(current, patch)
		if err != nil {
			return err
		}

		values := r.mapping.Values(updated)
		upd := builder(tx).Update(r.mapping.Table).Where(sq.Eq{"id": id})
		for i, col := range r.mapping.Columns {
			if col == "id" {
				continue
			}
			upd = upd.Set(col, values[i])
		}
		if _, err := upd.ExecContext(ctx); err != nil {
			return fmt.Errorf("failed to update %s %d: %w", r.mapping.Table, id, err)
		}
		return nil
	})
}

func (r *SQL[T]) Remove(ctx context.Context, id int) error {
	_, err := builder(r.conn).Delete(r.mapping.Table).Where(sq.Eq{"id": id}).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete %s %d: %w", r.mapping.Table, id, err)
	}
	r.alloc.observe(id)
	return nil
}

func (r *SQL[T]) RemoveWhere(ctx context.Context, pred func(T) bool) ([]T, error) {
	var removed []T
	err := db.WithTx(ctx, r.conn, func(tx *sql.Tx) error {
		items, err := r.loadWith(ctx, tx)
		if err != nil {
			return err
		}
		var doomed []T
		for _, it := range items {
			if pred(it) {
				doomed = append(doomed, it)
			}
		}
		if len(doomed) == 0 {
			return nil
		}
		if _, err := builder(tx).Delete(r.mapping.Table).Where(sq.Eq{"id": ids(doomed)}).ExecContext(ctx); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", r.mapping.Table, err)
		}
		removed = doomed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (r *SQL[T]) Count(ctx context.Context) (int, error) {
	var n int
	if err := builder(r.conn).Select("COUNT(*)").From(r.mapping.Table).QueryRowContext(ctx).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", r.mapping.Table, err)
	}
	return n, nil
}

// MigrateFrom copies every record of source into the table, keeping ids.
// It does nothing when the table already has at least one row, so it is
// safe to call on every start. Returns the number of records copied.
func (r *SQL[T]) MigrateFrom(ctx context.Context, source Repository[T]) (int, error) {
	n, err := r.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.logger.Debug("table not empty, skipping migration", zap.Int("rows", n))
		return 0, nil
	}

	items, err := source.Load(ctx)
	if errors.Is(err, ErrMalformedRecord) {
		r.logger.Warn("legacy collection malformed, nothing to migrate", zap.Error(err))
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read legacy %s: %w", source.Name(), err)
	}
	if len(items) == 0 {
		return 0, nil
	}
	if err := r.SaveAll(ctx, items); err != nil {
		return 0, err
	}
	r.logger.Info("migrated legacy records", zap.Int("count", len(items)))
	return len(items), nil
}

func (r *SQL[T]) loadWith(ctx context.Context, runner sq.BaseRunner) ([]T, error) {
	rows, err := builder(runner).Select(r.mapping.Columns...).
		From(r.mapping.Table).
		OrderBy("id").
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", r.mapping.Table, err)
	}
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		item, err := r.mapping.Scan(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", r.mapping.Table, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", r.mapping.Table, err)
	}
	r.alloc.observe(ids(items)...)
	return items, nil
}

func (r *SQL[T]) findWith(ctx context.Context, runner sq.BaseRunner, id int) (T, error) {
	var zero T
	row := builder(runner).Select(r.mapping.Columns...).
		From(r.mapping.Table).
		Where(sq.Eq{"id": id}).
		QueryRowContext(ctx)
	item, err := r.mapping.Scan(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, fmt.Errorf("%s %d: %w", r.mapping.Table, id, ErrNotFound)
	}
	if err != nil {
		return zero, fmt.Errorf("failed to read %s %d: %w", r.mapping.Table, id, err)
	}
	return item, nil
}
