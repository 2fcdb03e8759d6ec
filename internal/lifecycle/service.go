// Package lifecycle runs the install and uninstall callbacks: registry
// changes plus the first token exchange.
package lifecycle

import (
	"context"
	"log/slog"

	"github.com/pysugar/hipchat-connect/internal/apperr"
	"github.com/pysugar/hipchat-connect/internal/auth/token"
	"github.com/pysugar/hipchat-connect/internal/db/models"
	"github.com/pysugar/hipchat-connect/internal/install"
	"github.com/pysugar/hipchat-connect/internal/util"
)

// TokenCache is the part of token.Manager the lifecycle needs.
type TokenCache interface {
	GetOrRefresh(ctx context.Context, inst *models.Install, autoRefresh bool) (*token.Token, bool, error)
	Forget(ctx context.Context, oauthID string) error
}

// Service applies the token-on-install policy. In strict mode a failed
// exchange removes the new install and the error reaches the caller; in
// lenient mode the install stands and the failure is only logged.
type Service struct {
	registry *install.Registry
	tokens   TokenCache
	strict   bool
	log      *slog.Logger
}

func NewService(registry *install.Registry, tokens TokenCache, strict bool, log *slog.Logger) *Service {
	return &Service{registry: registry, tokens: tokens, strict: strict, log: log}
}

// Install handles POST /install/{app_id}.
func (s *Service) Install(ctx context.Context, addonID uint, body []byte) (*models.Install, error) {
	addon, err := s.registry.GetAddon(ctx, addonID)
	if err != nil {
		return nil, err
	}
	payload, err := install.ParsePayload(body)
	if err != nil {
		return nil, err
	}
	inst, err := s.registry.CreateInstall(ctx, addon, payload)
	if err != nil {
		return nil, err
	}

	tok, _, err := s.tokens.GetOrRefresh(ctx, inst, true)
	if err == nil {
		s.log.Info("install token ready",
			"oauth_id", inst.OAuthID,
			"token", util.MaskSecret(tok.AccessToken),
			"expires_at", tok.ExpiresAt)
		return inst, nil
	}

	if !s.strict {
		s.log.Warn("token exchange failed, keeping install",
			"addon_id", addonID,
			"oauth_id", inst.OAuthID,
			"error", err)
		return inst, nil
	}

	s.log.Error("token exchange failed, rolling back install",
		"addon_id", addonID,
		"oauth_id", inst.OAuthID,
		"error", err)
	if delErr := s.registry.DeleteInstall(context.WithoutCancel(ctx), addonID, inst.OAuthID); delErr != nil {
		s.log.Error("failed to roll back install", "oauth_id", inst.OAuthID, "error", delErr)
	}
	return nil, err
}

// Uninstall handles DELETE /install/{app_id}/{oauth_id}.
func (s *Service) Uninstall(ctx context.Context, addonID uint, oauthID string) error {
	if err := s.registry.DeleteInstall(ctx, addonID, oauthID); err != nil {
		return err
	}
	if err := s.tokens.Forget(ctx, oauthID); err != nil {
		s.log.Warn("failed to evict cached token", "oauth_id", oauthID, "error", err)
	}
	return nil
}

// IsClientError reports whether err should be answered as a 4xx.
func IsClientError(err error) bool {
	status := apperr.HTTPStatus(err)
	return status >= 400 && status < 500
}
