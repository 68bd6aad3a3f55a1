package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tenantgate/tenantgate/internal/tenant"
)

// ErrInvalidCredentials is returned when login fails. Unknown email and
// wrong password are not distinguished.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidRefreshToken is returned when no non-revoked refresh token matches.
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// ErrExpiredRefreshToken is returned when the refresh token is past its expiry.
var ErrExpiredRefreshToken = errors.New("refresh token expired")

// Service provides authentication operations.
type Service struct {
	users      UserRepository
	tokens     RefreshTokenRepository
	tenants    tenant.Repository
	issuer     *TokenIssuer
	bcryptCost int
	refreshTTL time.Duration
	now        func() time.Time
	observe    func(event, outcome string)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithBcryptCost sets the bcrypt cost used for new password hashes.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) {
		if cost >= bcrypt.MinCost {
			s.bcryptCost = cost
		}
	}
}

// WithRefreshTTL sets the lifetime of issued refresh tokens.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithClock overrides the service clock.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithObserver registers a callback invoked for every login, register,
// refresh and logout outcome.
func WithObserver(fn func(event, outcome string)) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.observe = fn
		}
	}
}

// NewService creates a new auth Service.
func NewService(users UserRepository, tokens RefreshTokenRepository, tenants tenant.Repository, issuer *TokenIssuer, opts ...ServiceOption) *Service {
	s := &Service{
		users:      users,
		tokens:     tokens,
		tenants:    tenants,
		issuer:     issuer,
		bcryptCost: bcrypt.DefaultCost,
		refreshTTL: 30 * 24 * time.Hour,
		now:        time.Now,
		observe:    func(string, string) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TokenPair is returned by register and login.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// RegisterInput carries the self-registration fields.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	TenantID  *uuid.UUID
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashPassword hashes password at the service's configured cost.
func (s *Service) HashPassword(password string) (string, error) {
	return HashPassword(password, s.bcryptCost)
}

// Register creates a user with role "user" and signs them in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, *TokenPair, error) {
	if in.TenantID != nil {
		if _, err := s.tenants.GetByID(ctx, *in.TenantID); err != nil {
			s.observe("register", "failure")
			return nil, nil, err
		}
	}

	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("hashing password: %w", err)
	}

	u := &User{
		Email:        NormalizeEmail(in.Email),
		PasswordHash: &hash,
		Role:         RoleUser,
		TenantID:     in.TenantID,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
	}
	if err := s.users.Create(ctx, u); err != nil {
		s.observe("register", "failure")
		return nil, nil, err
	}

	pair, err := s.issuePair(ctx, u)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("user registered", "userId", u.ID)
	s.observe("register", "success")
	return u, pair, nil
}

// Login verifies credentials and returns a fresh token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*User, *TokenPair, error) {
	u, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.observe("login", "failure")
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("looking up user: %w", err)
	}

	if u.PasswordHash == nil || !VerifyPassword(*u.PasswordHash, password) {
		slog.Warn("login failed", "userId", u.ID)
		s.observe("login", "failure")
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, u)
	if err != nil {
		return nil, nil, err
	}

	s.observe("login", "success")
	return u, pair, nil
}

// Authenticate verifies an access token. It performs no store lookup.
func (s *Service) Authenticate(token string) (*Identity, error) {
	return s.issuer.Verify(token)
}

// IssueRefreshToken creates and persists a refresh token for userID. The
// plaintext token is only ever returned here.
func (s *Service) IssueRefreshToken(ctx context.Context, userID uuid.UUID) (string, time.Time, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", time.Time{}, fmt.Errorf("generating random bytes: %w", err)
	}
	raw := hex.EncodeToString(b)

	rt := &RefreshToken{
		TokenHash: HashRefreshToken(raw),
		UserID:    userID,
		ExpiresAt: s.now().UTC().Add(s.refreshTTL),
	}
	if err := s.tokens.Create(ctx, rt); err != nil {
		return "", time.Time{}, fmt.Errorf("storing refresh token: %w", err)
	}

	return raw, rt.ExpiresAt, nil
}

// Refresh redeems a refresh token for a new access token built from the
// user's current role and tenant. The refresh token itself stays valid.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		s.observe("refresh", "failure")
		return "", time.Time{}, ErrInvalidRefreshToken
	}

	rt, err := s.tokens.FindActive(ctx, HashRefreshToken(refreshToken))
	if err != nil {
		if errors.Is(err, ErrRefreshTokenNotFound) {
			s.observe("refresh", "failure")
			return "", time.Time{}, ErrInvalidRefreshToken
		}
		return "", time.Time{}, fmt.Errorf("finding refresh token: %w", err)
	}

	if s.now().After(rt.ExpiresAt) {
		s.observe("refresh", "expired")
		return "", time.Time{}, ErrExpiredRefreshToken
	}

	u, err := s.users.GetByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.observe("refresh", "failure")
			return "", time.Time{}, ErrInvalidRefreshToken
		}
		return "", time.Time{}, fmt.Errorf("loading refresh token owner: %w", err)
	}

	access, expires, err := s.issuer.Issue(u.ID, u.Role, u.TenantID)
	if err != nil {
		return "", time.Time{}, err
	}

	s.observe("refresh", "success")
	return access, expires, nil
}

// Logout revokes the refresh token. Unknown tokens are a no-op.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}
	if err := s.tokens.Revoke(ctx, HashRefreshToken(refreshToken)); err != nil {
		s.observe("logout", "failure")
		return err
	}
	s.observe("logout", "success")
	return nil
}

// BootstrapSuperadmin creates the first superadmin if none exists yet. It
// returns true when a user was created.
func (s *Service) BootstrapSuperadmin(ctx context.Context, email, password string) (bool, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return false, nil
	}

	count, err := s.users.CountByRole(ctx, RoleSuperadmin)
	if err != nil {
		return false, fmt.Errorf("counting superadmins: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hashing superadmin password: %w", err)
	}

	u := &User{
		Email:        email,
		PasswordHash: &hash,
		Role:         RoleSuperadmin,
		FirstName:    "Super",
		LastName:     "Admin",
	}
	if err := s.users.Create(ctx, u); err != nil {
		return false, fmt.Errorf("creating superadmin: %w", err)
	}

	slog.Info("superadmin created", "userId", u.ID, "email", email)
	return true, nil
}

func (s *Service) issuePair(ctx context.Context, u *User) (*TokenPair, error) {
	access, accessExp, err := s.issuer.Issue(u.ID, u.Role, u.TenantID)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.IssueRefreshToken(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// HashRefreshToken returns the hex SHA-256 digest stored for a refresh token.
func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
