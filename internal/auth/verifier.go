// Package auth verifies bearer tokens issued by the hosted identity
// provider and attaches the caller's identity and role to the request
// context. Tokens are HS256-signed with a shared project secret.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrInvalidToken is returned for tokens that fail signature or claim
// validation.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims are the identity fields extracted from a verified token.
type Claims struct {
	UserID string
	Email  string
	Role   string
}

// Verifier checks token signatures and registered claims.
type Verifier struct {
	Secret    []byte
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Now       func() time.Time
}

func (v Verifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// Parse verifies the raw token and returns its claims.
func (v Verifier) Parse(raw string) (Claims, error) {
	if len(v.Secret) == 0 {
		return Claims{}, errors.New("auth: verifier secret not configured")
	}
	now := v.now()
	options := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, v.Secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		options = append(options, jwt.WithAudience(v.Audience))
	}

	tok, err := jwt.Parse([]byte(raw), options...)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if tok.Subject() == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	claims := Claims{UserID: tok.Subject()}
	if email, ok := tok.Get("email"); ok {
		if s, ok := email.(string); ok {
			claims.Email = s
		}
	}
	if role, ok := tok.Get("role"); ok {
		if s, ok := role.(string); ok {
			claims.Role = s
		}
	}
	return claims, nil
}
