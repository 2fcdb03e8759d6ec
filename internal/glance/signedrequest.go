package glance

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/pysugar/hipchat-connect/internal/apperr"
	"github.com/pysugar/hipchat-connect/internal/db/models"
)

// ClockSkew is tolerated on iat, nbf and exp of signed requests.
const ClockSkew = 30 * time.Second

// Verifier checks signed glance requests. The JWT issuer is an install's
// oauth id and the signature key is that install's oauth secret.
type Verifier struct {
	db   *gorm.DB
	opts []jwt.ParserOption
}

func NewVerifier(database *gorm.DB, opts ...jwt.ParserOption) *Verifier {
	opts = append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(ClockSkew),
	}, opts...)
	return &Verifier{db: database, opts: opts}
}

// SignedRequest reads the token from the signed_request query parameter or
// an "Authorization: JWT <token>" header.
func SignedRequest(r *http.Request) string {
	if s := r.URL.Query().Get("signed_request"); s != "" {
		return s
	}
	auth := r.Header.Get("Authorization")
	if scheme, tok, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "JWT") {
		return strings.TrimSpace(tok)
	}
	return ""
}

// Verify validates raw for a request against glance g and returns the
// issuing install, which must belong to g's addon.
func (v *Verifier) Verify(ctx context.Context, raw string, g *models.Glance) (*models.Install, error) {
	if raw == "" {
		return nil, &apperr.JWTValidationError{Reason: "missing signed_request"}
	}

	var inst models.Install
	keyFunc := func(t *jwt.Token) (any, error) {
		iss, err := t.Claims.GetIssuer()
		if err != nil || iss == "" {
			return nil, errors.New("missing issuer")
		}
		err = v.db.WithContext(ctx).
			Where("oauth_id = ? AND addon_id = ?", iss, g.AddonID).
			First(&inst).Error
		if err != nil {
			return nil, errors.New("unknown issuer")
		}
		return []byte(inst.OAuthSecret), nil
	}

	if _, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, keyFunc, v.opts...); err != nil {
		return nil, &apperr.JWTValidationError{Reason: "signature or issuer rejected", Err: err}
	}
	return &inst, nil
}
