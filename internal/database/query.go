package database

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type optionKind int

const (
	filterOption optionKind = iota
	orderOption
	limitOption
)

// Option narrows, orders or limits a repository query.
type Option struct {
	kind  optionKind
	scope func(*gorm.DB) *gorm.DB
}

// Eq keeps rows whose column equals value.
func Eq(column string, value any) Option {
	return Option{kind: filterOption, scope: func(db *gorm.DB) *gorm.DB {
		return db.Where(clause.Eq{Column: clause.Column{Name: column}, Value: value})
	}}
}

// Asc orders by column, smallest first.
func Asc(column string) Option {
	return orderBy(column, false)
}

// Desc orders by column, largest first.
func Desc(column string) Option {
	return orderBy(column, true)
}

func orderBy(column string, desc bool) Option {
	return Option{kind: orderOption, scope: func(db *gorm.DB) *gorm.DB {
		return db.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: desc})
	}}
}

// Limit caps the number of rows. Zero or less means no cap.
func Limit(n int) Option {
	return Option{kind: limitOption, scope: func(db *gorm.DB) *gorm.DB {
		if n <= 0 {
			return db
		}
		return db.Limit(n)
	}}
}

// apply adds options to db; filtersOnly skips ordering and limits, which
// COUNT queries must not carry.
func apply(db *gorm.DB, filtersOnly bool, options []Option) *gorm.DB {
	for _, o := range options {
		if filtersOnly && o.kind != filterOption {
			continue
		}
		db = o.scope(db)
	}
	return db
}
