package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/storyqueue/internal/client/migrations"
	"github.com/pressly/goose/v3"
)

// goose keeps its dialect and base FS in package globals.
var gooseMu sync.Mutex

// Seams for tests.
var (
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return goose.UpContext(ctx, db, dir, opts...)
	}
	gooseVersion = goose.GetDBVersionContext
)

func setupGoose() error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	return nil
}

// LatestVersion is the schema version this build migrates to.
func LatestVersion() (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := setupGoose(); err != nil {
		return 0, err
	}
	ms, err := goose.CollectMigrations(".", 0, goose.MaxVersion)
	if err != nil {
		return 0, fmt.Errorf("collect migrations: %w", err)
	}
	last, err := ms.Last()
	if err != nil {
		return 0, fmt.Errorf("last migration: %w", err)
	}
	return last.Version, nil
}

// migrate brings db to the latest known schema. It refuses to touch a
// database whose version is already newer than known.
func migrate(ctx context.Context, db *sql.DB, known int64) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := setupGoose(); err != nil {
		return 0, err
	}
	current, err := gooseVersion(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if current > known {
		return current, fmt.Errorf("schema version %d is newer than supported %d", current, known)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return 0, fmt.Errorf("migrate: %w", err)
	}
	return known, nil
}

func schemaVersion(ctx context.Context, db *sql.DB) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := setupGoose(); err != nil {
		return 0, err
	}
	return gooseVersion(ctx, db)
}
