// Package dbtest opens migrated sqlite databases for tests.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"project-workspace-api/internal/database"
)

// Open returns a fresh, fully migrated in-memory database private to t.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "sqlite:file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := database.New(database.Config{DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return db
}
