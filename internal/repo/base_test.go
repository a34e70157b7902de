package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openMemoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	return conn
}

func TestBaseDBThreadsContext(t *testing.T) {
	db := openMemoryDB(t)
	base := NewBase(db)

	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "marker")

	bound := base.DB(ctx)
	require.NotNil(t, bound)
	require.NotNil(t, bound.Statement)
	require.Equal(t, ctx, bound.Statement.Context)
}

func TestBaseDBNilContextReturnsRawConnection(t *testing.T) {
	db := openMemoryDB(t)
	base := NewBase(db)

	require.Same(t, db, base.DB(nil))
}
