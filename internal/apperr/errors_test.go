package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"duplicate", &DuplicateInstallError{OAuthID: "abc"}, http.StatusUnprocessableEntity},
		{"wrapped duplicate", fmt.Errorf("create install: %w", &DuplicateInstallError{OAuthID: "abc"}), http.StatusUnprocessableEntity},
		{"not found", NewNotFound("addon", 7), http.StatusNotFound},
		{"malformed", &MalformedPayloadError{Field: "groupId", Reason: "not an integer"}, http.StatusBadRequest},
		{"exchange", &TokenExchangeError{StatusCode: 401}, http.StatusBadGateway},
		{"no token", &NoValidAccessTokenError{AddonID: 1}, http.StatusConflict},
		{"jwt", &JWTValidationError{Reason: "missing"}, http.StatusForbidden},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestTokenExchangeError_Message(t *testing.T) {
	err := &TokenExchangeError{
		StatusCode: 401,
		Body:       `{"error": {"code": 401, "message": "Invalid OAuth client credentials", "type": "Unauthorized"}}`,
	}
	assert.Equal(t, "Invalid OAuth client credentials", err.Message())
	assert.Equal(t, "token exchange failed: status code 401: Invalid OAuth client credentials", err.Error())

	raw := &TokenExchangeError{StatusCode: 500, Body: "upstream exploded"}
	assert.Equal(t, "upstream exploded", raw.Message())

	timeout := &TokenExchangeError{Err: context.DeadlineExceeded}
	assert.ErrorIs(t, timeout, context.DeadlineExceeded)
	assert.Equal(t, context.DeadlineExceeded.Error(), timeout.Message())
}

func TestType(t *testing.T) {
	assert.Equal(t, "duplicate_install", Type(&DuplicateInstallError{}))
	assert.Equal(t, "internal_error", Type(errors.New("x")))
}
