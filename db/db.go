package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"constructlink/config"
	"constructlink/models"
)

// ErrNotFound is returned when a row does not exist or is not visible.
var ErrNotFound = errors.New("record not found")

// Connect opens the pool without pinging: the app must start before the
// installer has created the database objects.
func Connect(cfg config.Database, logger zerolog.Logger) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	logger.Info().Str("host", cfg.Host).Str("database", cfg.Name).Msg("database pool ready")
	return gdb, nil
}

// Migrate creates the schema from the models. The installer uses SQL
// migrations instead; this is for tests and local development.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(models.All()...)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
