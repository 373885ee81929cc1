package repository

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // database/sql driver used by goose
	"github.com/pressly/goose/v3"

	"github.com/userdesk/userdesk/internal/repository/migrations"
)

const migrationDialect = "postgres"

// openMigrationDB opens a database/sql handle for goose and configures
// it to read the embedded migrations.
func openMigrationDB(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open migration connection: %w", err)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(migrationDialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("set migration dialect: %w", err)
	}

	return db, nil
}

// Migrate applies all pending schema migrations.
func Migrate(ctx context.Context, databaseURL string) error {
	db, err := openMigrationDB(databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// ResetSchema rolls every migration back and re-applies them.
// Intended for integration tests only.
func ResetSchema(ctx context.Context, databaseURL string) error {
	db, err := openMigrationDB(databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := goose.ResetContext(ctx, db, "."); err != nil {
		return fmt.Errorf("reset migrations: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// SchemaVersion reports the latest applied migration version.
func SchemaVersion(ctx context.Context, databaseURL string) (int64, error) {
	db, err := openMigrationDB(databaseURL)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
