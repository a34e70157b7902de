package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base is embedded by every domain repository and owns the GORM connection.
type Base struct {
	db *gorm.DB
}

// NewBase wraps a GORM connection for embedding.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB binds the connection to ctx so query cancellation propagates. A nil
// context returns the raw connection.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}
