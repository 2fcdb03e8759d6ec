// Package apperr defines the error kinds surfaced by the install, token and
// glance flows, and how each maps onto an HTTP status.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// DuplicateInstallError is returned when an install callback reuses an oauth id.
type DuplicateInstallError struct {
	OAuthID string
}

func (e *DuplicateInstallError) Error() string {
	return fmt.Sprintf("install with oauth id %q already exists", e.OAuthID)
}

// NotFoundError reports a missing addon, install or glance.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// NewNotFound is shorthand for building a NotFoundError from any id type.
func NewNotFound(kind string, id any) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: fmt.Sprint(id)}
}

// MalformedPayloadError is an inbound body that is not valid JSON, misses a
// required field, or carries a value that cannot be coerced.
type MalformedPayloadError struct {
	Field  string
	Reason string
}

func (e *MalformedPayloadError) Error() string {
	if e.Field == "" {
		return "malformed payload: " + e.Reason
	}
	return fmt.Sprintf("malformed payload: %s: %s", e.Field, e.Reason)
}

// TokenExchangeError is a failed client-credentials exchange. StatusCode is
// zero when the request never produced a response (timeout, connection error).
type TokenExchangeError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TokenExchangeError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("token exchange failed: %v", e.Err)
	}
	return fmt.Sprintf("token exchange failed: status code %d: %s", e.StatusCode, e.Message())
}

func (e *TokenExchangeError) Unwrap() error { return e.Err }

// Message extracts error.message from the platform error envelope, falling
// back to the raw body when it is not in that shape.
func (e *TokenExchangeError) Message() string {
	if msg := PlatformMessage([]byte(e.Body)); msg != "" {
		return msg
	}
	if e.Body == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Body
}

// NoValidAccessTokenError means no install of the addon could supply a token.
type NoValidAccessTokenError struct {
	AddonID uint
}

func (e *NoValidAccessTokenError) Error() string {
	return fmt.Sprintf("no valid access token for addon %d", e.AddonID)
}

// JWTValidationError is a signed request that failed signature or issuer checks.
type JWTValidationError struct {
	Reason string
	Err    error
}

func (e *JWTValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid signed request: %s: %v", e.Reason, e.Err)
	}
	return "invalid signed request: " + e.Reason
}

func (e *JWTValidationError) Unwrap() error { return e.Err }

// PlatformMessage reads {"error": {"message": ...}} and returns the message,
// or "" if body has another shape.
func PlatformMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	return envelope.Error.Message
}

// HTTPStatus maps an error onto the status code used at the HTTP boundary.
func HTTPStatus(err error) int {
	var (
		dup       *DuplicateInstallError
		notFound  *NotFoundError
		malformed *MalformedPayloadError
		exchange  *TokenExchangeError
		noToken   *NoValidAccessTokenError
		jwtErr    *JWTValidationError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &dup):
		return http.StatusUnprocessableEntity
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &malformed):
		return http.StatusBadRequest
	case errors.As(err, &jwtErr):
		return http.StatusForbidden
	case errors.As(err, &exchange):
		return http.StatusBadGateway
	case errors.As(err, &noToken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Type is the short machine-readable name written into error responses.
func Type(err error) string {
	switch HTTPStatus(err) {
	case http.StatusUnprocessableEntity:
		return "duplicate_install"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusBadRequest:
		return "malformed_payload"
	case http.StatusForbidden:
		return "invalid_signed_request"
	case http.StatusBadGateway:
		return "token_exchange_error"
	case http.StatusConflict:
		return "no_valid_access_token"
	default:
		return "internal_error"
	}
}
