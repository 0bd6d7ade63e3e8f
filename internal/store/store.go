// Package store is the ledger store: durable CRUD, aggregate and group-by
// reads over the ledger entities, with referential integrity enforced at the
// storage boundary. Every call takes a context; calls without a deadline get
// the store's default query timeout.
package store

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Store is a handle on the relational engine. A Store created inside
// WithTransaction is bound to that transaction.
type Store struct {
	db      *gorm.DB
	timeout time.Duration
}

// New creates a Store over db. timeout is applied to calls whose context has
// no deadline; zero disables it.
func New(db *gorm.DB, timeout time.Duration) *Store {
	return &Store{db: db, timeout: timeout}
}

// DB returns the underlying GORM handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// session binds the handle to ctx, adding the default deadline when ctx has none.
func (s *Store) session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok && s.timeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		return s.db.WithContext(ctx), cancel
	}
	return s.db.WithContext(ctx), func() {}
}

// WithTransaction runs fn inside a database transaction. Everything fn does
// through tx commits or rolls back atomically; an error returned by fn rolls
// back and is returned unchanged. Nested calls use savepoints.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx *Store) error) error {
	db, cancel := s.session(ctx)
	defer cancel()

	err := db.Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, timeout: s.timeout})
	})
	return translate("", err)
}
