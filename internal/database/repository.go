package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound indicates no row matched.
var ErrNotFound = errors.New("entity not found")

// Mapper converts between a domain value D and its row model E.
type Mapper[D any, E any] interface {
	ToDomain(E) D
	ToModel(D) E
}

// Repository reads and appends rows of model E as domain values D.
type Repository[D any, E any] struct {
	db     Database
	mapper Mapper[D, E]
	label  string
}

// NewRepository creates a Repository; label names the entity in errors.
func NewRepository[D any, E any](db Database, mapper Mapper[D, E], label string) Repository[D, E] {
	return Repository[D, E]{db: db, mapper: mapper, label: label}
}

// Insert writes values in one transaction.
func (r Repository[D, E]) Insert(ctx context.Context, values ...D) error {
	if len(values) == 0 {
		return nil
	}
	rows := make([]E, len(values))
	for i, v := range values {
		rows[i] = r.mapper.ToModel(v)
	}
	err := r.db.Transaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("insert %s: %w", r.label, err)
	}
	return nil
}

// Find returns every row matching options.
func (r Repository[D, E]) Find(ctx context.Context, options ...Option) ([]D, error) {
	var rows []E
	q := apply(r.db.Session(ctx).Model(new(E)), false, options)
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find %s: %w", r.label, err)
	}
	out := make([]D, 0, len(rows))
	for _, row := range rows {
		out = append(out, r.mapper.ToDomain(row))
	}
	return out, nil
}

// First returns the first row matching options, or ErrNotFound.
func (r Repository[D, E]) First(ctx context.Context, options ...Option) (D, error) {
	var row E
	var zero D
	q := apply(r.db.Session(ctx), false, options)
	err := q.Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return zero, fmt.Errorf("%w: %s", ErrNotFound, r.label)
	case err != nil:
		return zero, fmt.Errorf("first %s: %w", r.label, err)
	}
	return r.mapper.ToDomain(row), nil
}

// Count returns how many rows match the filters in options.
func (r Repository[D, E]) Count(ctx context.Context, options ...Option) (int64, error) {
	var n int64
	q := apply(r.db.Session(ctx).Model(new(E)), true, options)
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", r.label, err)
	}
	return n, nil
}
