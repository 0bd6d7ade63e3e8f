package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "fintrack/internal/errors"
)

// Policy decides what deleting a parent row does to rows that reference it.
type Policy int

const (
	// Restrict rejects the delete with DependencyExists.
	Restrict Policy = iota
	// Cascade deletes the dependents, applying their own policies first.
	Cascade
	// Detach sets the referencing column to NULL.
	Detach
)

// ref is a foreign key held by a row.
type ref struct {
	field    string
	entity   string
	table    string
	id       string
	optional bool
}

// uniqueKey is a set of columns whose values must be unique across rows.
type uniqueKey struct {
	fields []string
	values []any
}

// dependent is a relation from another entity into this one.
type dependent struct {
	entity string
	column string
	policy Policy
	child  node
}

// node is the untyped view of a repository used to walk cascades.
type node interface {
	tableName() string
	deleteByColumn(ctx context.Context, tx *Store, column, id string) error
}

// keyed is implemented by every model through the embedded Base.
type keyed interface {
	Key() string
}

// Aggregates is the result of an aggregate read over one numeric column.
type Aggregates struct {
	Count int64   `gorm:"column:agg_count" json:"count"`
	Sum   int64   `gorm:"column:agg_sum" json:"sum"`
	Avg   float64 `gorm:"column:agg_avg" json:"avg"`
	Min   int64   `gorm:"column:agg_min" json:"min"`
	Max   int64   `gorm:"column:agg_max" json:"max"`
}

// Group is one row of a group-by read.
type Group struct {
	Key   string `gorm:"column:group_key" json:"key"`
	Count int64  `gorm:"column:agg_count" json:"count"`
	Sum   int64  `gorm:"column:agg_sum" json:"sum"`
}

// Repository provides typed access to one entity's table.
type Repository[T any] struct {
	store      *Store
	entity     string
	table      string
	refs       func(*T) []ref
	uniques    func(*T) []uniqueKey
	dependents []dependent
}

// on returns a copy of the repository bound to s.
func (r Repository[T]) on(s *Store) Repository[T] {
	r.store = s
	return r
}

func (r Repository[T]) tableName() string {
	return r.table
}

func rowKey(row any) string {
	if k, ok := row.(keyed); ok {
		return k.Key()
	}
	return ""
}

// checkIntegrity verifies that every foreign key held by row resolves and that
// no other row shares one of its unique keys.
func (r Repository[T]) checkIntegrity(ctx context.Context, tx *Store, row *T) error {
	db, cancel := tx.session(ctx)
	defer cancel()

	if r.refs != nil {
		for _, fk := range r.refs(row) {
			if fk.id == "" {
				if fk.optional {
					continue
				}
				return apperrors.Detailed(apperrors.ErrConstraintViolation, r.entity, fk.field, "required")
			}
			var n int64
			if err := db.Table(fk.table).Where("id = ?", fk.id).Count(&n).Error; err != nil {
				return translate(r.entity, err)
			}
			if n == 0 {
				return apperrors.Detailed(apperrors.ErrConstraintViolation, r.entity, fk.field, "foreign_key")
			}
		}
	}

	if r.uniques != nil {
		self := rowKey(row)
		for _, u := range r.uniques(row) {
			exprs := make([]clause.Expression, 0, len(u.fields)+1)
			for i, f := range u.fields {
				exprs = append(exprs, clause.Eq{Column: clause.Column{Name: f}, Value: u.values[i]})
			}
			if self != "" {
				exprs = append(exprs, clause.Neq{Column: clause.Column{Name: "id"}, Value: self})
			}
			var n int64
			q := db.Table(r.table).Clauses(clause.Where{Exprs: exprs})
			if err := q.Count(&n).Error; err != nil {
				return translate(r.entity, err)
			}
			if n > 0 {
				return apperrors.Detailed(apperrors.ErrConstraintViolation, r.entity, strings.Join(u.fields, ","), "unique")
			}
		}
	}
	return nil
}

// Create inserts row after checking its foreign keys and unique keys.
func (r Repository[T]) Create(ctx context.Context, row *T) error {
	return r.store.WithTransaction(ctx, func(tx *Store) error {
		if err := r.checkIntegrity(ctx, tx, row); err != nil {
			return err
		}
		db, cancel := tx.session(ctx)
		defer cancel()
		return translate(r.entity, db.Create(row).Error)
	})
}

// FindUnique returns the row with the given primary key.
func (r Repository[T]) FindUnique(ctx context.Context, id string) (*T, error) {
	db, cancel := r.store.session(ctx)
	defer cancel()

	var row T
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		return nil, translate(r.entity, err)
	}
	return &row, nil
}

// FindFirst returns the first row matching f in the given order.
func (r Repository[T]) FindFirst(ctx context.Context, f Filter, order ...Sort) (*T, error) {
	db, cancel := r.store.session(ctx)
	defer cancel()

	q, err := applyQuery(db, Query{Where: f, OrderBy: order})
	if err != nil {
		return nil, err
	}
	var row T
	if err := q.First(&row).Error; err != nil {
		return nil, translate(r.entity, err)
	}
	return &row, nil
}

// FindMany returns the rows selected by q.
func (r Repository[T]) FindMany(ctx context.Context, q Query) ([]T, error) {
	db, cancel := r.store.session(ctx)
	defer cancel()

	built, err := applyQuery(db.Model(new(T)), q)
	if err != nil {
		return nil, err
	}
	var rows []T
	if err := built.Find(&rows).Error; err != nil {
		return nil, translate(r.entity, err)
	}
	return rows, nil
}

// Count returns the number of rows matching f.
func (r Repository[T]) Count(ctx context.Context, f Filter) (int64, error) {
	db, cancel := r.store.session(ctx)
	defer cancel()

	q, err := applyFilter(db.Model(new(T)), f)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, translate(r.entity, err)
	}
	return n, nil
}

// Update applies fields (column name to value) to the row with the given id
// and returns the updated row. The post-update row must still satisfy its
// foreign and unique keys, otherwise nothing is written.
func (r Repository[T]) Update(ctx context.Context, id string, fields map[string]any) (*T, error) {
	var out *T
	err := r.store.WithTransaction(ctx, func(tx *Store) error {
		rr := r.on(tx)
		if _, err := rr.FindUnique(ctx, id); err != nil {
			return err
		}
		for col := range fields {
			if !identifier.MatchString(col) {
				return invalidField(col)
			}
		}
		if len(fields) > 0 {
			db, cancel := tx.session(ctx)
			err := db.Model(new(T)).Where("id = ?", id).Updates(fields).Error
			cancel()
			if err != nil {
				return translate(r.entity, err)
			}
		}
		row, err := rr.FindUnique(ctx, id)
		if err != nil {
			return err
		}
		if err := rr.checkIntegrity(ctx, tx, row); err != nil {
			return err
		}
		out = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateWhere applies fields to every row matching f and returns the number of
// rows changed. It is the compare-and-swap primitive: put the expected version
// in f and treat zero rows as a lost race.
func (r Repository[T]) UpdateWhere(ctx context.Context, f Filter, fields map[string]any) (int64, error) {
	if f == nil {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "conditional update requires a filter")
	}
	db, cancel := r.store.session(ctx)
	defer cancel()

	q, err := applyFilter(db.Model(new(T)), f)
	if err != nil {
		return 0, err
	}
	res := q.Updates(fields)
	if res.Error != nil {
		return 0, translate(r.entity, res.Error)
	}
	return res.RowsAffected, nil
}

// Delete removes the row with the given id, applying the delete policy of
// every dependent relation first.
func (r Repository[T]) Delete(ctx context.Context, id string) error {
	return r.store.WithTransaction(ctx, func(tx *Store) error {
		if _, err := r.on(tx).FindUnique(ctx, id); err != nil {
			return err
		}
		return r.deleteOne(ctx, tx, id)
	})
}

// DeleteWhere removes every row matching f, applying delete policies, and
// returns how many rows were removed. Matching nothing is not an error.
func (r Repository[T]) DeleteWhere(ctx context.Context, f Filter) (int64, error) {
	var removed int64
	err := r.store.WithTransaction(ctx, func(tx *Store) error {
		ids, err := r.on(tx).pluckIDs(ctx, f)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := r.deleteOne(ctx, tx, id); err != nil {
				return err
			}
		}
		removed = int64(len(ids))
		return nil
	})
	return removed, err
}

func (r Repository[T]) pluckIDs(ctx context.Context, f Filter) ([]string, error) {
	db, cancel := r.store.session(ctx)
	defer cancel()

	q, err := applyFilter(db.Model(new(T)), f)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, translate(r.entity, err)
	}
	return ids, nil
}

func (r Repository[T]) deleteOne(ctx context.Context, tx *Store, id string) error {
	db, cancel := tx.session(ctx)
	defer cancel()

	for _, dep := range r.dependents {
		col := clause.Eq{Column: clause.Column{Name: dep.column}, Value: id}
		switch dep.policy {
		case Restrict:
			var n int64
			if err := db.Table(dep.child.tableName()).Clauses(clause.Where{Exprs: []clause.Expression{col}}).Count(&n).Error; err != nil {
				return translate(r.entity, err)
			}
			if n > 0 {
				e := apperrors.Detailed(apperrors.ErrDependencyExists, r.entity, "id", dep.entity+"."+dep.column)
				e.Message = fmt.Sprintf("%s is referenced by %d %s record(s)", r.entity, n, dep.entity)
				return e
			}
		case Cascade:
			if err := dep.child.deleteByColumn(ctx, tx, dep.column, id); err != nil {
				return err
			}
		case Detach:
			err := db.Table(dep.child.tableName()).
				Clauses(clause.Where{Exprs: []clause.Expression{col}}).
				Update(dep.column, gorm.Expr("NULL")).Error
			if err != nil {
				return translate(dep.entity, err)
			}
		}
	}

	res := db.Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return translate(r.entity, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound(r.entity)
	}
	return nil
}

func (r Repository[T]) deleteByColumn(ctx context.Context, tx *Store, column, id string) error {
	ids, err := r.on(tx).pluckIDs(ctx, Eq(column, id))
	if err != nil {
		return err
	}
	for _, childID := range ids {
		if err := r.deleteOne(ctx, tx, childID); err != nil {
			return err
		}
	}
	return nil
}

// Aggregate computes count, sum, avg, min and max of an integer field over
// rows matching f. Sum, min and max stay exact; only avg is fractional.
func (r Repository[T]) Aggregate(ctx context.Context, f Filter, field string) (Aggregates, error) {
	var out Aggregates
	if !identifier.MatchString(field) {
		return out, invalidField(field)
	}
	db, cancel := r.store.session(ctx)
	defer cancel()

	q, err := applyFilter(db.Model(new(T)), f)
	if err != nil {
		return out, err
	}
	sel := fmt.Sprintf("COUNT(*) AS agg_count, CAST(COALESCE(SUM(%[1]s), 0) AS BIGINT) AS agg_sum, "+
		"COALESCE(AVG(%[1]s), 0) AS agg_avg, CAST(COALESCE(MIN(%[1]s), 0) AS BIGINT) AS agg_min, "+
		"CAST(COALESCE(MAX(%[1]s), 0) AS BIGINT) AS agg_max", field)
	if err := q.Select(sel).Scan(&out).Error; err != nil {
		return out, translate(r.entity, err)
	}
	return out, nil
}

// SumInt64 returns the exact integer sum of field over rows matching f.
func (r Repository[T]) SumInt64(ctx context.Context, f Filter, field string) (int64, error) {
	if !identifier.MatchString(field) {
		return 0, invalidField(field)
	}
	db, cancel := r.store.session(ctx)
	defer cancel()

	q, err := applyFilter(db.Model(new(T)), f)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := q.Select(fmt.Sprintf("COALESCE(SUM(%s), 0)", field)).Scan(&sum).Error; err != nil {
		return 0, translate(r.entity, err)
	}
	return sum, nil
}

// GroupBy counts and sums sumField over rows matching f, grouped by the
// column by. Groups are ordered by key.
func (r Repository[T]) GroupBy(ctx context.Context, f Filter, by, sumField string) ([]Group, error) {
	if !identifier.MatchString(by) {
		return nil, invalidField(by)
	}
	if !identifier.MatchString(sumField) {
		return nil, invalidField(sumField)
	}
	db, cancel := r.store.session(ctx)
	defer cancel()

	q, err := applyFilter(db.Model(new(T)), f)
	if err != nil {
		return nil, err
	}
	sel := fmt.Sprintf("%s AS group_key, COUNT(*) AS agg_count, COALESCE(SUM(%s), 0) AS agg_sum", by, sumField)
	var groups []Group
	if err := q.Select(sel).Group(by).Order(by).Scan(&groups).Error; err != nil {
		return nil, translate(r.entity, err)
	}
	return groups, nil
}
