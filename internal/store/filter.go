package store

import (
	"fmt"
	"regexp"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "fintrack/internal/errors"
)

// Op is a comparison operator in a field predicate.
type Op string

const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpIn       Op = "in"
	OpContains Op = "contains"
	OpIsNull   Op = "is_null"
)

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Filter is a node in an AND/OR/NOT tree of field predicates. A nil Filter
// matches every row.
type Filter interface {
	build() (clause.Expression, error)
}

type predicate struct {
	field string
	op    Op
	value any
}

type andFilter []Filter

type orFilter []Filter

type notFilter struct {
	inner Filter
}

// Where builds a single field predicate.
func Where(field string, op Op, value any) Filter {
	return predicate{field: field, op: op, value: value}
}

// Eq matches rows where field equals value.
func Eq(field string, value any) Filter { return Where(field, OpEq, value) }

// Ne matches rows where field differs from value.
func Ne(field string, value any) Filter { return Where(field, OpNe, value) }

// Gte matches rows where field >= value.
func Gte(field string, value any) Filter { return Where(field, OpGte, value) }

// Lt matches rows where field < value.
func Lt(field string, value any) Filter { return Where(field, OpLt, value) }

// Lte matches rows where field <= value.
func Lte(field string, value any) Filter { return Where(field, OpLte, value) }

// IsNull matches rows where field is NULL.
func IsNull(field string) Filter { return Where(field, OpIsNull, nil) }

// In matches rows where field is one of values. An empty list matches nothing.
func In[T any](field string, values []T) Filter {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Where(field, OpIn, vs)
}

// And matches rows satisfying every filter. Nil filters are ignored.
func And(filters ...Filter) Filter { return andFilter(filters) }

// Or matches rows satisfying at least one filter. Nil filters are ignored.
func Or(filters ...Filter) Filter { return orFilter(filters) }

// Not negates a filter.
func Not(f Filter) Filter { return notFilter{inner: f} }

func invalidField(name string) error {
	return apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("invalid field name %q", name))
}

func (p predicate) build() (clause.Expression, error) {
	if !identifier.MatchString(p.field) {
		return nil, invalidField(p.field)
	}
	col := clause.Column{Name: p.field}

	switch p.op {
	case OpEq:
		return clause.Eq{Column: col, Value: p.value}, nil
	case OpNe:
		return clause.Neq{Column: col, Value: p.value}, nil
	case OpGt:
		return clause.Gt{Column: col, Value: p.value}, nil
	case OpGte:
		return clause.Gte{Column: col, Value: p.value}, nil
	case OpLt:
		return clause.Lt{Column: col, Value: p.value}, nil
	case OpLte:
		return clause.Lte{Column: col, Value: p.value}, nil
	case OpIn:
		values, ok := p.value.([]any)
		if !ok {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "in operator requires a list")
		}
		if len(values) == 0 {
			return clause.Expr{SQL: "1 = 0"}, nil
		}
		return clause.IN{Column: col, Values: values}, nil
	case OpContains:
		s, ok := p.value.(string)
		if !ok {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "contains operator requires a string")
		}
		return clause.Like{Column: col, Value: "%" + s + "%"}, nil
	case OpIsNull:
		return clause.Expr{SQL: "? IS NULL", Vars: []any{col}}, nil
	default:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("unknown operator %q", p.op))
	}
}

func buildAll(filters []Filter) ([]clause.Expression, error) {
	exprs := make([]clause.Expression, 0, len(filters))
	for _, f := range filters {
		if f == nil {
			continue
		}
		expr, err := f.build()
		if err != nil {
			return nil, err
		}
		if expr != nil {
			exprs = append(exprs, expr)
		}
	}
	return exprs, nil
}

func (a andFilter) build() (clause.Expression, error) {
	exprs, err := buildAll(a)
	if err != nil || len(exprs) == 0 {
		return nil, err
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return clause.And(exprs...), nil
}

func (o orFilter) build() (clause.Expression, error) {
	exprs, err := buildAll(o)
	if err != nil || len(exprs) == 0 {
		return nil, err
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return clause.Or(exprs...), nil
}

func (n notFilter) build() (clause.Expression, error) {
	if n.inner == nil {
		return nil, nil
	}
	expr, err := n.inner.build()
	if err != nil || expr == nil {
		return nil, err
	}
	return clause.Not(expr), nil
}

// applyFilter adds f to the WHERE clause of db.
func applyFilter(db *gorm.DB, f Filter) (*gorm.DB, error) {
	if f == nil {
		return db, nil
	}
	expr, err := f.build()
	if err != nil {
		return nil, err
	}
	if expr == nil {
		return db, nil
	}
	return db.Clauses(clause.Where{Exprs: []clause.Expression{expr}}), nil
}

// Sort orders results by a column.
type Sort struct {
	Field string
	Desc  bool
}

// Query describes a read: filter, ordering and a skip/take window. Take <= 0
// means no limit.
type Query struct {
	Where   Filter
	OrderBy []Sort
	Skip    int
	Take    int
}

func applyQuery(db *gorm.DB, q Query) (*gorm.DB, error) {
	db, err := applyFilter(db, q.Where)
	if err != nil {
		return nil, err
	}
	for _, s := range q.OrderBy {
		if !identifier.MatchString(s.Field) {
			return nil, invalidField(s.Field)
		}
		db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: s.Field}, Desc: s.Desc})
	}
	if q.Skip > 0 {
		db = db.Offset(q.Skip)
	}
	if q.Take > 0 {
		db = db.Limit(q.Take)
	}
	return db, nil
}
