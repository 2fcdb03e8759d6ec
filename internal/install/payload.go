package install

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pysugar/hipchat-connect/internal/apperr"
)

// Payload is the install callback body with canonical names and types.
type Payload struct {
	OAuthID     string `validate:"required,max=64"`
	OAuthSecret string `validate:"required,max=64"`
	GroupID     int64
	// RoomID is nil for a global install.
	RoomID *int64
}

var validate = validator.New()

// ParsePayload reads the platform's oauthId, oauthSecret, groupId and roomId
// fields. groupId and roomId are accepted as JSON numbers or numeric strings;
// anything else is a MalformedPayloadError. A missing or null roomId means a
// global install.
func ParsePayload(raw []byte) (*Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, &apperr.MalformedPayloadError{Reason: "body is not a JSON object"}
	}
	if fields == nil {
		return nil, &apperr.MalformedPayloadError{Reason: "body is not a JSON object"}
	}

	var (
		p   Payload
		err error
	)
	if p.OAuthID, err = requiredString(fields, "oauthId"); err != nil {
		return nil, err
	}
	if p.OAuthSecret, err = requiredString(fields, "oauthSecret"); err != nil {
		return nil, err
	}

	groupID, ok := fields["groupId"]
	if !ok || groupID == nil {
		return nil, &apperr.MalformedPayloadError{Field: "groupId", Reason: "required"}
	}
	if p.GroupID, err = coerceInt("groupId", groupID); err != nil {
		return nil, err
	}

	if roomID, ok := fields["roomId"]; ok && roomID != nil {
		id, err := coerceInt("roomId", roomID)
		if err != nil {
			return nil, err
		}
		p.RoomID = &id
	}

	if err := validate.Struct(&p); err != nil {
		return nil, &apperr.MalformedPayloadError{Reason: err.Error()}
	}
	return &p, nil
}

func requiredString(fields map[string]any, name string) (string, error) {
	v, ok := fields[name]
	if !ok || v == nil {
		return "", &apperr.MalformedPayloadError{Field: name, Reason: "required"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &apperr.MalformedPayloadError{Field: name, Reason: "must be a string"}
	}
	if s == "" {
		return "", &apperr.MalformedPayloadError{Field: name, Reason: "required"}
	}
	return s, nil
}

func coerceInt(name string, v any) (int64, error) {
	var s string
	switch val := v.(type) {
	case json.Number:
		s = val.String()
	case string:
		s = strings.TrimSpace(val)
	default:
		return 0, &apperr.MalformedPayloadError{Field: name, Reason: fmt.Sprintf("expected integer, got %T", v)}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &apperr.MalformedPayloadError{Field: name, Reason: fmt.Sprintf("%q is not an integer", s)}
	}
	return n, nil
}
