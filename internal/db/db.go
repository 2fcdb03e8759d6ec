package db

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pysugar/hipchat-connect/internal/config"
	"github.com/pysugar/hipchat-connect/internal/db/models"
)

// Open connects to the configured database and runs migrations.
func Open(cfg config.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(log, cfg.LogLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := ensureAPIKey(db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return sqlite.Open(cfg.DSN), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate creates or updates all tables. The unique indexes on
// installs.oauth_id and access_tokens.access_token are what make duplicate
// installs fail atomically.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

// IsDuplicateError reports whether err came from a unique constraint.
func IsDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "Duplicate entry") || // mysql
		strings.Contains(msg, "duplicate key") // postgres
}

const apiKeyConfigKey = "api_key"

// ensureAPIKey generates the admin API key on first run
func ensureAPIKey(db *gorm.DB, log *slog.Logger) error {
	var cfg models.Config
	err := db.Where(&models.Config{Key: apiKeyConfigKey}).First(&cfg).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to read api key: %w", err)
	}

	apiKey := newAPIKey()
	if err := db.Create(&models.Config{Key: apiKeyConfigKey, Value: apiKey}).Error; err != nil {
		return fmt.Errorf("failed to store api key: %w", err)
	}
	log.Info("generated admin api key", "api_key", apiKey)
	return nil
}

// GetAPIKey retrieves the admin API key, or "" when none is stored.
func GetAPIKey(db *gorm.DB) string {
	var cfg models.Config
	if err := db.Where(&models.Config{Key: apiKeyConfigKey}).First(&cfg).Error; err != nil {
		return ""
	}
	return cfg.Value
}

// RegenerateAPIKey replaces the admin API key
func RegenerateAPIKey(db *gorm.DB) (string, error) {
	apiKey := newAPIKey()
	res := db.Model(&models.Config{}).Where(&models.Config{Key: apiKeyConfigKey}).Update("value", apiKey)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		if err := db.Create(&models.Config{Key: apiKeyConfigKey, Value: apiKey}).Error; err != nil {
			return "", err
		}
	}
	return apiKey, nil
}

func newAPIKey() string {
	keyBytes := make([]byte, 16)
	_, _ = rand.Read(keyBytes)
	return "hc-" + hex.EncodeToString(keyBytes)
}

// gormWriter routes gorm's printf-style logger into slog at debug level.
type gormWriter struct {
	log *slog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Log(context.Background(), slog.LevelDebug, strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "gorm")
}

func newGormLogger(log *slog.Logger, level string) logger.Interface {
	lvl := logger.Warn
	switch strings.ToLower(level) {
	case "silent":
		lvl = logger.Silent
	case "error":
		lvl = logger.Error
	case "info", "debug":
		lvl = logger.Info
	}
	return logger.New(gormWriter{log: log}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  lvl,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
