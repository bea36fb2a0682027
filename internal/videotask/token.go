package videotask

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Iron-Ham/image2video/internal/errors"
)

const (
	// TokenLifetime is how long an issued token stays valid.
	TokenLifetime = 30 * time.Minute

	// tokenSkew backdates nbf so small clock drift on the API side is tolerated.
	tokenSkew = 5 * time.Second
)

// TokenIssuer signs short-lived HS256 bearer tokens for the task API.
type TokenIssuer struct {
	keyID  string
	secret []byte
	now    func() time.Time
}

// TokenOption configures a TokenIssuer.
type TokenOption func(*TokenIssuer)

// WithTokenClock replaces time.Now.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(t *TokenIssuer) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTokenIssuer creates an issuer for the given access key id and secret.
func NewTokenIssuer(keyID, secret string, opts ...TokenOption) *TokenIssuer {
	t := &TokenIssuer{
		keyID:  keyID,
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Issue returns a fresh token with iss=keyID, exp=now+30m and nbf=now-5s.
// Tokens are not cached.
func (t *TokenIssuer) Issue(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if t.keyID == "" || len(t.secret) == 0 {
		return "", errors.NewConfigError("token credentials are not configured", nil).WithKey("key_id")
	}

	now := t.now()
	claims := jwt.RegisteredClaims{
		Issuer:    t.keyID,
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenLifetime)),
		NotBefore: jwt.NewNumericDate(now.Add(-tokenSkew)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", errors.NewInternalError("sign token", err)
	}
	return signed, nil
}
