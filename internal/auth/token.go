package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "tenantgate"

// ErrInvalidToken indicates the access token failed validation. Expired,
// malformed and forged tokens are deliberately indistinguishable.
var ErrInvalidToken = errors.New("invalid token")

// AccessClaims are the JWT claims carried by an access token.
type AccessClaims struct {
	Role     string  `json:"role"`
	TenantID *string `json:"tenantId"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// IssuerOption configures a TokenIssuer.
type IssuerOption func(*TokenIssuer)

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) IssuerOption {
	return func(i *TokenIssuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithIssuerClock overrides the clock used for issuing and verifying.
func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *TokenIssuer) {
		if now != nil {
			i.now = now
		}
	}
}

// NewTokenIssuer creates a TokenIssuer. The secret must not be empty.
func NewTokenIssuer(secret string, opts ...IssuerOption) (*TokenIssuer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("jwt secret is not configured")
	}
	i := &TokenIssuer{
		secret: []byte(secret),
		ttl:    15 * time.Minute,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	i.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return i.now() }),
	)
	return i, nil
}

// TTL returns the configured access token lifetime.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs an access token for the subject. It returns the token and its expiry.
func (i *TokenIssuer) Issue(userID uuid.UUID, role Role, tenantID *uuid.UUID) (string, time.Time, error) {
	now := i.now().UTC()
	expires := now.Add(i.ttl)

	claims := AccessClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	if tenantID != nil {
		s := tenantID.String()
		claims.TenantID = &s
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify checks the signature and claims of token and returns the identity it carries.
func (i *TokenIssuer) Verify(token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	var claims AccessClaims
	parsed, err := i.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	role := Role(claims.Role)
	if !role.Valid() {
		return nil, ErrInvalidToken
	}

	identity := &Identity{UserID: userID, Role: role}
	if claims.TenantID != nil {
		tid, err := uuid.Parse(*claims.TenantID)
		if err != nil {
			return nil, ErrInvalidToken
		}
		identity.TenantID = &tid
	}
	return identity, nil
}
