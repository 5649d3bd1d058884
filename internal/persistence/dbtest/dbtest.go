// Package dbtest opens throwaway SQLite databases for tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/configs"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/logging"
	"github.com/hilthontt/cheahlytics/internal/persistence/db"
	"gorm.io/gorm"
)

// Config returns an in-memory SQLite config private to one test.
func Config() configs.DatabaseConfig {
	return configs.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString()),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     "silent",
	}
}

// New opens and migrates a fresh database, closed when the test ends.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	gdb, err := db.NewGormDB(Config(), logging.NewNop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })

	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	return gdb
}
