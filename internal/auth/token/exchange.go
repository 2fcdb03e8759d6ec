// Package token obtains add-on access tokens through the OAuth
// client-credentials grant and caches them per install.
package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/pysugar/hipchat-connect/internal/apperr"
	"github.com/pysugar/hipchat-connect/internal/db/models"
	"github.com/pysugar/hipchat-connect/internal/util"
)

// Token is an issued access token as cached and handed to callers.
type Token struct {
	AccessToken string    `json:"access_token"`
	Scope       string    `json:"scope"`
	GroupID     int64     `json:"group_id"`
	GroupName   string    `json:"group_name"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// HasExpired matches models.AccessToken.HasExpired: a zero expiry counts as expired.
func (t *Token) HasExpired(now time.Time) bool {
	return t.ExpiresAt.IsZero() || t.ExpiresAt.Before(now)
}

// Requester performs one client-credentials exchange for an install.
type Requester interface {
	RequestToken(ctx context.Context, inst *models.Install) (*Token, error)
}

// Exchanger talks to the platform token endpoint.
type Exchanger struct {
	tokenURL   string
	httpClient *http.Client
	timeout    time.Duration
	log        *slog.Logger
	now        func() time.Time
}

// NewExchanger creates an Exchanger. A nil httpClient uses http.DefaultClient.
func NewExchanger(tokenURL string, httpClient *http.Client, timeout time.Duration, log *slog.Logger) *Exchanger {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Exchanger{
		tokenURL:   tokenURL,
		httpClient: httpClient,
		timeout:    timeout,
		log:        log,
		now:        time.Now,
	}
}

// RequestToken authenticates with the install's oauth id and secret using
// HTTP Basic auth and requests the addon's scopes in sorted order. The
// install must have its Addon (with Scopes) loaded. Every successful call
// issues a new token at the platform.
func (e *Exchanger) RequestToken(ctx context.Context, inst *models.Install) (*Token, error) {
	if inst.Addon == nil {
		return nil, fmt.Errorf("install %s has no addon loaded", inst.OAuthID)
	}

	cfg := clientcredentials.Config{
		ClientID:     inst.OAuthID,
		ClientSecret: inst.OAuthSecret,
		TokenURL:     e.tokenURL,
		Scopes:       inst.Addon.ScopeNames(),
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)

	requestedAt := e.now()
	tok, err := cfg.Token(ctx)
	if err != nil {
		return nil, e.exchangeError(inst, err)
	}

	expiresIn := extraInt64(tok, "expires_in")
	if expiresIn == 0 {
		expiresIn = tok.ExpiresIn
	}
	scope, _ := tok.Extra("scope").(string)
	groupName, _ := tok.Extra("group_name").(string)

	result := &Token{
		AccessToken: tok.AccessToken,
		Scope:       scope,
		GroupID:     extraInt64(tok, "group_id"),
		GroupName:   groupName,
		ExpiresIn:   expiresIn,
		ExpiresAt:   requestedAt.Add(time.Duration(expiresIn) * time.Second),
	}

	e.log.Info("token issued",
		"oauth_id", inst.OAuthID,
		"group_id", result.GroupID,
		"scope", result.Scope,
		"expires_in", expiresIn,
		"token", util.MaskSecret(result.AccessToken))
	return result, nil
}

func (e *Exchanger) exchangeError(inst *models.Install, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		e.log.Warn("token exchange rejected",
			"oauth_id", inst.OAuthID,
			"status", status,
			"body", util.TruncateBytes(re.Body))
		return &apperr.TokenExchangeError{StatusCode: status, Body: string(re.Body), Err: err}
	}
	e.log.Warn("token exchange failed", "oauth_id", inst.OAuthID, "error", err)
	return &apperr.TokenExchangeError{Err: err}
}

// extraInt64 reads a numeric field from the raw token response, which may
// arrive as a JSON number or a string.
func extraInt64(tok *oauth2.Token, key string) int64 {
	switch v := tok.Extra(key).(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}
