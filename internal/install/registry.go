// Package install manages Install records for addons.
package install

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/pysugar/hipchat-connect/internal/apperr"
	"github.com/pysugar/hipchat-connect/internal/db"
	"github.com/pysugar/hipchat-connect/internal/db/models"
	"github.com/pysugar/hipchat-connect/internal/util"
)

// Registry is the InstallRegistry. Uniqueness of oauth ids is enforced by the
// database index, never by a read-then-insert check.
type Registry struct {
	db  *gorm.DB
	log *slog.Logger
	now func() time.Time
}

func NewRegistry(database *gorm.DB, log *slog.Logger) *Registry {
	return &Registry{db: database, log: log, now: time.Now}
}

// GetAddon loads an addon with its scopes and glances.
func (r *Registry) GetAddon(ctx context.Context, id uint) (*models.Addon, error) {
	var addon models.Addon
	err := r.db.WithContext(ctx).
		Preload("Scopes").
		Preload("Glances", func(tx *gorm.DB) *gorm.DB { return tx.Order("id") }).
		First(&addon, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFound("addon", id)
		}
		return nil, fmt.Errorf("failed to load addon %d: %w", id, err)
	}
	return &addon, nil
}

// CreateInstall persists a new install of addon, stamping installed_at.
func (r *Registry) CreateInstall(ctx context.Context, addon *models.Addon, p *Payload) (*models.Install, error) {
	inst := &models.Install{
		AddonID:     addon.ID,
		OAuthID:     p.OAuthID,
		OAuthSecret: p.OAuthSecret,
		GroupID:     p.GroupID,
		RoomID:      p.RoomID,
		InstalledAt: r.now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(inst).Error; err != nil {
		if db.IsDuplicateError(err) {
			r.log.Warn("duplicate install rejected", "addon_id", addon.ID, "oauth_id", p.OAuthID)
			return nil, &apperr.DuplicateInstallError{OAuthID: p.OAuthID}
		}
		return nil, fmt.Errorf("failed to create install: %w", err)
	}
	inst.Addon = addon

	r.log.Info("addon installed",
		"addon_id", addon.ID,
		"oauth_id", inst.OAuthID,
		"oauth_secret", util.MaskSecret(inst.OAuthSecret),
		"group_id", inst.GroupID,
		"global", inst.IsGlobal())
	return inst, nil
}

// DeleteInstall removes the install matching (addonID, oauthID). Issued
// access tokens are kept and expire on their own.
func (r *Registry) DeleteInstall(ctx context.Context, addonID uint, oauthID string) error {
	res := r.db.WithContext(ctx).
		Where("addon_id = ? AND oauth_id = ?", addonID, oauthID).
		Delete(&models.Install{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete install: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NewNotFound("install", oauthID)
	}
	r.log.Info("addon uninstalled", "addon_id", addonID, "oauth_id", oauthID)
	return nil
}

// GetInstall finds an install by oauth id with its addon and scopes loaded.
func (r *Registry) GetInstall(ctx context.Context, oauthID string) (*models.Install, error) {
	var inst models.Install
	err := r.db.WithContext(ctx).
		Preload("Addon.Scopes").
		Where(&models.Install{OAuthID: oauthID}).
		First(&inst).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFound("install", oauthID)
		}
		return nil, fmt.Errorf("failed to load install %s: %w", oauthID, err)
	}
	return &inst, nil
}

// ListInstalls returns an addon's installs, oldest first.
func (r *Registry) ListInstalls(ctx context.Context, addonID uint) ([]models.Install, error) {
	var installs []models.Install
	err := r.db.WithContext(ctx).
		Where(&models.Install{AddonID: addonID}).
		Order("installed_at, id").
		Find(&installs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list installs: %w", err)
	}
	return installs, nil
}
