package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Base is the shared core of the domain repositories: a connection, which may
// be a transaction, and whether single-row reads should take a row lock.
type Base struct {
	db   *gorm.DB
	lock bool
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx. A nil ctx returns the raw handle.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Bind swaps the connection for tx and keeps the lock setting.
func (b Base) Bind(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx, lock: b.lock}
}

// Lock returns a copy whose Single queries select FOR UPDATE.
func (b Base) Lock() Base {
	return Base{db: b.db, lock: true}
}

// IsLocked reports whether Single reads take a row lock.
func (b Base) IsLocked() bool {
	return b.lock
}

// Single scopes a query for one row. Locking is only emitted on Postgres;
// sqlite serializes writers already and rejects the clause.
func (b Base) Single(ctx context.Context) *gorm.DB {
	query := b.DB(ctx)
	if b.IsLocked() && b.db.Dialector != nil && b.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return query
}
