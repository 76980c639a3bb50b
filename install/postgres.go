package install

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresPing opens a dedicated lib/pq connection so the check does not
// depend on the application pool.
func PostgresPing(dsn string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		conn, err := sql.Open("postgres", dsn)
		if err != nil {
			return err
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		var one int
		if err := conn.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
			return err
		}
		if one != 1 {
			return fmt.Errorf("unexpected ping result %d", one)
		}
		return nil
	}
}

// PostgresMigrator applies the embedded migrations with golang-migrate.
func PostgresMigrator(dsn string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		conn, err := sql.Open("postgres", dsn)
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := conn.PingContext(ctx); err != nil {
			return err
		}

		driver, err := migratepg.WithInstance(conn, &migratepg.Config{})
		if err != nil {
			return fmt.Errorf("migrate driver: %w", err)
		}
		src, err := iofs.New(migrationsFS, "migrations")
		if err != nil {
			return fmt.Errorf("migrate source: %w", err)
		}
		m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
		if err != nil {
			return fmt.Errorf("migrate init: %w", err)
		}
		defer m.Close()
		return migrateUp(m)
	}
}

// upMigrator is the part of *migrate.Migrate that migrateUp drives.
type upMigrator interface {
	Up() error
	Force(version int) error
}

// migrateUp applies pending migrations. A failed run leaves the version
// dirty although postgres rolled the DDL back; the migrations are
// idempotent, so the dirty version is forced back one step and retried.
func migrateUp(m upMigrator) error {
	err := m.Up()
	var dirty migrate.ErrDirty
	if errors.As(err, &dirty) {
		prev := dirty.Version - 1
		if prev < 1 {
			prev = database.NilVersion
		}
		if ferr := m.Force(prev); ferr != nil {
			return fmt.Errorf("reset dirty version %d: %w", dirty.Version, ferr)
		}
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
