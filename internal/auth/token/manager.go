package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/pysugar/hipchat-connect/internal/apperr"
	"github.com/pysugar/hipchat-connect/internal/db/models"
	"github.com/pysugar/hipchat-connect/internal/util"
)

// DefaultKeyPrefix namespaces token cache keys.
const DefaultKeyPrefix = "hipchat-tokens:"

// Manager is the TokenCache: it hands out cached tokens per install and
// refreshes them through a Requester, with at most one exchange in flight
// per cache key.
type Manager struct {
	db        *gorm.DB
	store     Store
	requester Requester
	prefix    string
	group     singleflight.Group
	log       *slog.Logger
	now       func() time.Time
}

// NewManager creates a Manager. An empty prefix uses DefaultKeyPrefix.
func NewManager(db *gorm.DB, store Store, requester Requester, prefix string, log *slog.Logger) *Manager {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Manager{
		db:        db,
		store:     store,
		requester: requester,
		prefix:    prefix,
		log:       log,
		now:       time.Now,
	}
}

// CacheKey depends only on the oauth id, so entries survive install reloads.
func (m *Manager) CacheKey(oauthID string) string {
	return m.prefix + oauthID
}

// GetOrRefresh returns the cached token for inst. On a miss with autoRefresh
// it performs an exchange, records an AccessToken row and caches the result
// for expires_in seconds. On a miss without autoRefresh it returns
// (nil, false, nil) and makes no network call. A deleted install yields
// *apperr.NotFoundError. Failures are never cached.
func (m *Manager) GetOrRefresh(ctx context.Context, inst *models.Install, autoRefresh bool) (*Token, bool, error) {
	current, err := m.loadInstall(ctx, inst.OAuthID)
	if err != nil {
		return nil, false, err
	}

	key := m.CacheKey(current.OAuthID)
	if tok, ok := m.cached(ctx, key); ok {
		return tok, true, nil
	}
	if !autoRefresh {
		return nil, false, nil
	}

	v, err, shared := m.group.Do(key, func() (any, error) {
		// another caller may have refreshed while we waited on the flight
		if tok, ok := m.cached(ctx, key); ok {
			return tok, nil
		}
		// the exchange belongs to every waiter, not just the first caller
		return m.refresh(context.WithoutCancel(ctx), key, current)
	})
	if err != nil {
		return nil, false, err
	}
	if shared {
		m.log.Debug("token refresh coalesced", "oauth_id", current.OAuthID)
	}
	tok := *v.(*Token)
	return &tok, true, nil
}

// Forget drops the cached token for an oauth id.
func (m *Manager) Forget(ctx context.Context, oauthID string) error {
	return m.store.Delete(ctx, m.CacheKey(oauthID))
}

func (m *Manager) loadInstall(ctx context.Context, oauthID string) (*models.Install, error) {
	var inst models.Install
	err := m.db.WithContext(ctx).
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

func (m *Manager) cached(ctx context.Context, key string) (*Token, bool) {
	tok, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.log.Warn("token cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok || tok.HasExpired(m.now()) {
		return nil, false
	}
	return tok, true
}

func (m *Manager) refresh(ctx context.Context, key string, inst *models.Install) (*Token, error) {
	tok, err := m.requester.RequestToken(ctx, inst)
	if err != nil {
		return nil, err
	}

	expiresAt := tok.ExpiresAt.UTC()
	row := models.AccessToken{
		AddonID:     &inst.AddonID,
		InstallID:   &inst.ID,
		AccessToken: tok.AccessToken,
		Scope:       tok.Scope,
		GroupID:     tok.GroupID,
		GroupName:   tok.GroupName,
		ExpiresAt:   &expiresAt,
	}
	if err := m.db.WithContext(ctx).Create(&row).Error; err != nil {
		m.log.Warn("failed to record access token", "oauth_id", inst.OAuthID, "error", err)
	}

	if tok.ExpiresIn > 0 {
		ttl := time.Duration(tok.ExpiresIn) * time.Second
		if err := m.store.Set(ctx, key, tok, ttl); err != nil {
			m.log.Warn("token cache write failed", "key", key, "error", err)
		}
	} else {
		m.log.Warn("token issued without positive expires_in, not caching", "oauth_id", inst.OAuthID)
	}

	m.log.Debug("token cached",
		"oauth_id", inst.OAuthID,
		"token", util.MaskSecret(tok.AccessToken),
		"expires_at", tok.ExpiresAt)
	return tok, nil
}
