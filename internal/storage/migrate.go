package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"frecipe_service/internal/storage/migrations"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v4/stdlib"
)

// ApplyMigrations brings the schema at DbURL up to date using the SQL files
// embedded in the binary.
func ApplyMigrations(DbURL string) error {
	const op = "storage.ApplyMigrations"

	db, err := sql.Open("pgx", DbURL)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer db.Close()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	source, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	instance, err := migrate.NewWithInstance("iofs", source, "pgx", driver)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
