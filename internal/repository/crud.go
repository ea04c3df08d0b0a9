// Package repository implements the generic parameterized CRUD base
// described by the design notes, re-architecting BaseCRUDRepository (a
// SQLAlchemy generic inherited via multiple ABCs) as an explicit value
// constructed with an entity descriptor, following pg_notification_repo.go's
// query/scan style.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/pipeline/internal/domain"
)

// Descriptor parameterizes CRUDStore over one entity: its table, how to
// build an INSERT's column/value list, how to scan a row back into T, and
// how to read a record's ID. OnConflict maps a raw driver error to a
// domain-level error (foreign key vs. other integrity conflicts).
type Descriptor[T any] struct {
	Table         string
	SelectColumns string
	InsertColumns []string
	InsertValues  func(T) []any
	Scan          func(pgx.Row) (T, error)
	IDOf          func(T) string
	OnConflict    func(error) error
}

// CRUDStore is the parameterized repository value every entity-specific
// store wraps with thin, entity-named methods.
type CRUDStore[T any] struct {
	pool *pgxpool.Pool
	d    Descriptor[T]
}

func NewCRUDStore[T any](pool *pgxpool.Pool, d Descriptor[T]) *CRUDStore[T] {
	return &CRUDStore[T]{pool: pool, d: d}
}

func (s *CRUDStore[T]) Create(ctx context.Context, obj T) error {
	placeholders := make([]string, len(s.d.InsertColumns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.d.Table, strings.Join(s.d.InsertColumns, ", "), strings.Join(placeholders, ", "))

	_, err := s.pool.Exec(ctx, query, s.d.InsertValues(obj)...)
	if err != nil {
		return s.mapConflict(err)
	}
	return nil
}

func (s *CRUDStore[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", s.d.SelectColumns, s.d.Table)
	row := s.pool.QueryRow(ctx, query, id)

	obj, err := s.d.Scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return zero, domain.ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("get from %s: %w", s.d.Table, err)
	}
	return obj, nil
}

func (s *CRUDStore[T]) List(ctx context.Context, filter domain.ListFilter) ([]T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at DESC LIMIT $1 OFFSET $2", s.d.SelectColumns, s.d.Table)
	rows, err := s.pool.Query(ctx, query, filter.PageSize, filter.Offset())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.d.Table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		obj, err := s.d.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s row: %w", s.d.Table, err)
		}
		out = append(out, obj)
	}
	return out, rows.Err()
}

// Update applies sets (column -> new value) to the row with the given id.
func (s *CRUDStore[T]) Update(ctx context.Context, id string, sets map[string]any) (T, error) {
	var zero T
	if len(sets) == 0 {
		return s.Get(ctx, id)
	}

	cols := make([]string, 0, len(sets))
	args := make([]any, 0, len(sets)+1)
	i := 1
	for col, val := range sets {
		cols = append(cols, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d RETURNING %s", s.d.Table, strings.Join(cols, ", "), i, s.d.SelectColumns)
	row := s.pool.QueryRow(ctx, query, args...)

	obj, err := s.d.Scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return zero, domain.ErrNotFound
	}
	if err != nil {
		return zero, s.mapConflict(err)
	}
	return obj, nil
}

func (s *CRUDStore[T]) Delete(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.d.Table)
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete from %s: %w", s.d.Table, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *CRUDStore[T]) mapConflict(err error) error {
	if s.d.OnConflict != nil {
		if mapped := s.d.OnConflict(err); mapped != nil {
			return mapped
		}
	}
	return fmt.Errorf("%s write: %w", s.d.Table, err)
}

// mapPGConflict is the shared on-conflict-map: a foreign key violation
// becomes ErrRelatedRecordMissing, any other integrity violation becomes
// ErrIntegrity.
func mapPGConflict(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "foreign key constraint"):
		return domain.ErrRelatedRecordMissing
	case strings.Contains(msg, "violates") || strings.Contains(msg, "duplicate key"):
		return domain.ErrIntegrity
	default:
		return nil
	}
}
