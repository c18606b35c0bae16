// Package repo holds the shared foundation for GORM-backed repositories.
package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base carries the database handle for a domain repository. Embed it and call
// DB to get a connection scoped to the caller's context.
type Base struct {
	db *gorm.DB
}

// NewBase wraps a GORM connection for embedding in a repository.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx so deadlines and cancellation
// propagate into queries. A nil context returns the raw connection.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}
