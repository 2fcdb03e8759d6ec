// Package dbtest opens isolated in-memory databases for tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pysugar/hipchat-connect/internal/db/models"
)

// New returns a migrated in-memory sqlite database private to t.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// shared-cache sqlite serialises writers anyway; one connection avoids SQLITE_LOCKED.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

// SeedAddon stores an addon with the given scope names attached in order.
func SeedAddon(t testing.TB, database *gorm.DB, key string, scopes ...string) *models.Addon {
	t.Helper()
	addon := &models.Addon{
		Key:         key,
		Name:        "Addon " + key,
		Description: "test addon",
		VendorName:  "Example Co",
		VendorURL:   "https://example.com",
		AllowGlobal: true,
		AllowRoom:   true,
	}
	for _, name := range scopes {
		scope := models.Scope{Name: name}
		if err := database.Where(models.Scope{Name: name}).FirstOrCreate(&scope).Error; err != nil {
			t.Fatalf("failed to seed scope %s: %v", name, err)
		}
		addon.Scopes = append(addon.Scopes, scope)
	}
	if err := database.Create(addon).Error; err != nil {
		t.Fatalf("failed to seed addon: %v", err)
	}
	return addon
}
