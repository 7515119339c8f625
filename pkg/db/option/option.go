// Package option holds composable query modifiers for pkg/repository.
package option

import (
	"fmt"

	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QueryOptionFunc func(db *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

func WithLimit(limit int) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

// WithOrder sorts by column; desc selects descending order.
func WithOrder(column string, desc bool) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if desc {
			return db.Order(column + " DESC")
		}
		return db.Order(column + " ASC")
	})
}

type Operator string

const (
	Equal       Operator = "="
	NotEqual    Operator = "<>"
	GreaterThan Operator = ">"
	LessThan    Operator = "<"
	GreaterOrEq Operator = ">="
	LessOrEq    Operator = "<="
	In          Operator = "IN"
)

// Condition is a single column predicate. Column must be a trusted identifier.
type Condition struct {
	Column   string
	Operator Operator
	Value    any
}

func Where(conds ...Condition) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		for _, c := range conds {
			db = ApplyOperator(db, c)
		}
		return db
	})
}

func ApplyOperator(db *gorm.DB, c Condition) *gorm.DB {
	switch c.Operator {
	case In:
		return db.Where(fmt.Sprintf("%s IN ?", c.Column), c.Value)
	case "":
		return db.Where(fmt.Sprintf("%s = ?", c.Column), c.Value)
	default:
		return db.Where(fmt.Sprintf("%s %s ?", c.Column, c.Operator), c.Value)
	}
}
