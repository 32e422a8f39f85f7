package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption mutates a gorm query before it is executed by the repository.
type QueryOption func(db *gorm.DB) *gorm.DB

type Operator string

const (
	EQ  Operator = "="
	NEQ Operator = "<>"
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
	IN  Operator = "IN"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

type QuerySortBy struct {
	SortBy  string
	OrderBy string
	// Allow whitelists sortable columns; an empty map only permits the default column.
	Allow map[string]bool
}

const defaultSortColumn = "created_at"

func (s QuerySortBy) column() string {
	if s.SortBy == "" {
		return defaultSortColumn
	}
	if s.SortBy == defaultSortColumn || s.Allow[s.SortBy] {
		return s.SortBy
	}
	return defaultSortColumn
}

func (s QuerySortBy) direction() string {
	if strings.EqualFold(s.OrderBy, "asc") {
		return "ASC"
	}
	return "DESC"
}

func WithSortBy(s QuerySortBy) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(fmt.Sprintf("%s %s", s.column(), s.direction()))
	}
}

func WithLimit(limit int) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	}
}

func ApplyOperator(conds ...Condition) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		for _, c := range conds {
			if c.Operator == IN {
				db = db.Where(fmt.Sprintf("%s IN ?", c.Field), c.Value)
				continue
			}
			db = db.Where(fmt.Sprintf("%s %s ?", c.Field, c.Operator), c.Value)
		}
		return db
	}
}

// LockingUpdate is a gorm scope adding SELECT ... FOR UPDATE where the dialect supports it.
func LockingUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func WithLockingUpdate() QueryOption {
	return LockingUpdate
}
