// Package auth issues and verifies the bearer tokens used by the wiki API and hashes user passwords.
//
// Tokens are HS256 JWTs signed with the shared JWT_SECRET. The harness only reads token metadata
// (ReadClaims) and never needs the secret.
package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

const (
	nameClaim  = "name"
	rolesClaim = "role"
)

// Claims is the information carried in an access token.
type Claims struct {
	UserID    string
	Name      string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies access tokens.
type TokenIssuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewTokenIssuer(secret, issuer, audience string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Issue returns a signed access token for the user.
func (ti *TokenIssuer) Issue(userID, name string, roles []string) (string, time.Time, error) {
	now := ti.now().UTC().Truncate(time.Second)
	expires := now.Add(ti.ttl)

	if roles == nil {
		roles = []string{}
	}

	tok, err := jwt.NewBuilder().
		Issuer(ti.issuer).
		Audience([]string{ti.audience}).
		Subject(userID).
		IssuedAt(now).
		Expiration(expires).
		JwtID(uuid.NewString()).
		Claim(nameClaim, name).
		Claim(rolesClaim, roles).
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), ti.secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), expires, nil
}

// Verify checks the signature, issuer, audience and lifetime of a token and returns its claims.
func (ti *TokenIssuer) Verify(token string) (*Claims, error) {
	tok, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.HS256(), ti.secret),
		jwt.WithIssuer(ti.issuer),
		jwt.WithAudience(ti.audience),
		jwt.WithClock(jwt.ClockFunc(ti.now)),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claimsFromToken(tok)
}

// ReadClaims decodes a token without verifying it. Use it only to inspect tokens
// obtained from a trusted server, e.g. to find out when a cached token expires.
func ReadClaims(token string) (*Claims, error) {
	tok, err := jwt.ParseInsecure([]byte(token))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return claimsFromToken(tok)
}

func claimsFromToken(tok jwt.Token) (*Claims, error) {
	var c Claims

	sub, ok := tok.Subject()
	if !ok || sub == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	c.UserID = sub

	if iat, ok := tok.IssuedAt(); ok {
		c.IssuedAt = iat
	}
	if exp, ok := tok.Expiration(); ok {
		c.ExpiresAt = exp
	}

	// private claims are optional for tokens issued elsewhere
	if tok.Has(nameClaim) {
		if err := tok.Get(nameClaim, &c.Name); err != nil {
			return nil, fmt.Errorf("invalid %s claim: %w", nameClaim, err)
		}
	}
	if tok.Has(rolesClaim) {
		var roles []any
		if err := tok.Get(rolesClaim, &roles); err != nil {
			return nil, fmt.Errorf("invalid %s claim: %w", rolesClaim, err)
		}
		for _, r := range roles {
			if s, ok := r.(string); ok {
				c.Roles = append(c.Roles, s)
			}
		}
	}
	return &c, nil
}
