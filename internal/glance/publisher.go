package glance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/pysugar/hipchat-connect/internal/apperr"
	"github.com/pysugar/hipchat-connect/internal/auth/token"
	"github.com/pysugar/hipchat-connect/internal/db/models"
	"github.com/pysugar/hipchat-connect/internal/hipchat"
)

// TokenSource is the part of token.Manager the publisher needs.
type TokenSource interface {
	GetOrRefresh(ctx context.Context, inst *models.Install, autoRefresh bool) (*token.Token, bool, error)
}

// Poster is the outbound platform call.
type Poster interface {
	PostJSON(ctx context.Context, url, token string, payload any) ([]byte, error)
	URL(segments ...string) string
}

var _ Poster = (*hipchat.Client)(nil)

// Publisher pushes glance updates to the platform and records them.
type Publisher struct {
	db          *gorm.DB
	tokens      TokenSource
	client      Poster
	autoRefresh bool
	log         *slog.Logger
	now         func() time.Time
}

// NewPublisher creates a Publisher. With autoRefresh false it only uses
// tokens that are already cached or stored and never triggers an exchange.
func NewPublisher(database *gorm.DB, tokens TokenSource, client Poster, autoRefresh bool, log *slog.Logger) *Publisher {
	return &Publisher{
		db:          database,
		tokens:      tokens,
		client:      client,
		autoRefresh: autoRefresh,
		log:         log,
		now:         time.Now,
	}
}

type uiGlance struct {
	Key     string  `json:"key"`
	Content Content `json:"content"`
}

type uiPayload struct {
	Glance []uiGlance `json:"glance"`
}

// PublishGlobalUpdate updates the glance for every user and room of the group.
func (p *Publisher) PublishGlobalUpdate(ctx context.Context, g *models.Glance, label string, opts ...Option) (*models.GlanceUpdate, error) {
	return p.publish(ctx, g, "global", p.client.URL("addon", "ui"), label, opts)
}

// PublishRoomUpdate updates the glance in one room.
func (p *Publisher) PublishRoomUpdate(ctx context.Context, g *models.Glance, roomID, label string, opts ...Option) (*models.GlanceUpdate, error) {
	if roomID == "" {
		return nil, errors.New("missing room id")
	}
	return p.publish(ctx, g, "room:"+roomID, p.client.URL("addon", "ui", "room", roomID), label, opts)
}

// PublishUserUpdate updates the glance for one user.
func (p *Publisher) PublishUserUpdate(ctx context.Context, g *models.Glance, userID, label string, opts ...Option) (*models.GlanceUpdate, error) {
	if userID == "" {
		return nil, errors.New("missing user id")
	}
	return p.publish(ctx, g, "user:"+userID, p.client.URL("addon", "ui", "user", userID), label, opts)
}

func (p *Publisher) publish(ctx context.Context, g *models.Glance, target, endpoint, label string, opts []Option) (*models.GlanceUpdate, error) {
	update, err := NewUpdate(label, opts...)
	if err != nil {
		return nil, &apperr.MalformedPayloadError{Field: "glance", Reason: err.Error()}
	}

	accessToken, err := p.selectToken(ctx, g.AddonID)
	if err != nil {
		return nil, err
	}

	payload := uiPayload{Glance: []uiGlance{{Key: g.Key, Content: update.Content()}}}
	if _, err := p.client.PostJSON(ctx, endpoint, accessToken, payload); err != nil {
		return nil, fmt.Errorf("failed to publish glance %s: %w", g.Key, err)
	}

	row := update.Record(g.ID, target)
	if err := p.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to record glance update: %w", err)
	}
	p.log.Info("glance updated", "glance_id", g.ID, "glance_key", g.Key, "target", target)
	return row, nil
}

// selectToken prefers tokens that need no exchange: a cached one for any
// install of the addon, then an unexpired stored AccessToken issued to one
// of those installs. Tokens of uninstalled installs are never used. Only then,
// and only with autoRefresh, does it ask the installs for a fresh token.
func (p *Publisher) selectToken(ctx context.Context, addonID uint) (string, error) {
	var installs []models.Install
	err := p.db.WithContext(ctx).
		Where(&models.Install{AddonID: addonID}).
		Order("installed_at, id").
		Find(&installs).Error
	if err != nil {
		return "", fmt.Errorf("failed to list installs: %w", err)
	}

	for i := range installs {
		tok, ok, err := p.tokens.GetOrRefresh(ctx, &installs[i], false)
		if err == nil && ok {
			return tok.AccessToken, nil
		}
	}

	if len(installs) == 0 {
		return "", &apperr.NoValidAccessTokenError{AddonID: addonID}
	}

	installIDs := make([]uint, len(installs))
	for i := range installs {
		installIDs[i] = installs[i].ID
	}
	var stored models.AccessToken
	err = p.db.WithContext(ctx).
		Where("install_id IN ? AND expires_at > ?", installIDs, p.now().UTC()).
		Order("expires_at DESC").
		First(&stored).Error
	if err == nil {
		return stored.AccessToken, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to look up access tokens: %w", err)
	}

	if p.autoRefresh {
		for i := range installs {
			tok, _, err := p.tokens.GetOrRefresh(ctx, &installs[i], true)
			if err == nil {
				return tok.AccessToken, nil
			}
			p.log.Warn("install could not supply a token", "oauth_id", installs[i].OAuthID, "error", err)
		}
	}
	return "", &apperr.NoValidAccessTokenError{AddonID: addonID}
}

// GetGlance loads a glance by id.
func (p *Publisher) GetGlance(ctx context.Context, id uint) (*models.Glance, error) {
	var g models.Glance
	if err := p.db.WithContext(ctx).First(&g, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFound("glance", id)
		}
		return nil, fmt.Errorf("failed to load glance %d: %w", id, err)
	}
	return &g, nil
}

// LatestUpdate returns the newest recorded update for a glance, or nil.
func (p *Publisher) LatestUpdate(ctx context.Context, glanceID uint) (*models.GlanceUpdate, error) {
	var row models.GlanceUpdate
	err := p.db.WithContext(ctx).
		Where(&models.GlanceUpdate{GlanceID: glanceID}).
		Order("id DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load glance history: %w", err)
	}
	return &row, nil
}
