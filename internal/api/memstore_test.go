package api_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tenantgate/tenantgate/internal/application"
	"github.com/tenantgate/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/internal/tenant"
)

// memStore is an in-memory stand-in for the Postgres repositories with the
// same tenancy and error semantics.
type memStore struct {
	mu          sync.Mutex
	users       map[uuid.UUID]auth.User
	tokens      map[string]auth.RefreshToken
	tenants     map[uuid.UUID]tenant.Tenant
	apps        map[uuid.UUID]application.Application
	assignments map[[2]uuid.UUID]bool
	seq         time.Duration
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[uuid.UUID]auth.User{},
		tokens:      map[string]auth.RefreshToken{},
		tenants:     map[uuid.UUID]tenant.Tenant{},
		apps:        map[uuid.UUID]application.Application{},
		assignments: map[[2]uuid.UUID]bool{},
	}
}

func (s *memStore) stamp() time.Time {
	s.seq++
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(s.seq * time.Second)
}

func sameTenant(a, b *uuid.UUID) bool {
	return a != nil && b != nil && *a == *b
}

type memUsers struct{ *memStore }

func (s memUsers) Create(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return auth.ErrDuplicateEmail
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = s.stamp()
	s.users[u.ID] = *u
	return nil
}

func (s memUsers) GetByID(_ context.Context, id uuid.UUID) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return &u, nil
}

func (s memUsers) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (s memUsers) List(_ context.Context, filter auth.UserFilter) ([]auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []auth.User{}
	for _, u := range s.users {
		if !filter.Scoped || sameTenant(u.TenantID, filter.TenantID) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s memUsers) ExistsInTenant(_ context.Context, id uuid.UUID, tenantID *uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return ok && sameTenant(u.TenantID, tenantID), nil
}

func (s memUsers) Update(_ context.Context, id uuid.UUID, f auth.UserUpdate) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	if f.FirstName != nil {
		u.FirstName = *f.FirstName
	}
	if f.LastName != nil {
		u.LastName = *f.LastName
	}
	if f.Email != nil {
		u.Email = *f.Email
	}
	if f.Role != nil {
		u.Role = *f.Role
	}
	if f.Phone != nil {
		u.Phone = f.Phone
	}
	if f.Address != nil {
		u.Address = f.Address
	}
	s.users[id] = u
	return &u, nil
}

func (s memUsers) SetAvatarURL(_ context.Context, id uuid.UUID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrUserNotFound
	}
	u.AvatarURL = &url
	s.users[id] = u
	return nil
}

func (s memUsers) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return auth.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

func (s memUsers) CountByRole(_ context.Context, role auth.Role) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

type memTokens struct{ *memStore }

func (s memTokens) Create(_ context.Context, t *auth.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.CreatedAt = s.stamp()
	s.tokens[t.TokenHash] = *t
	return nil
}

func (s memTokens) FindActive(_ context.Context, hash string) (*auth.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[hash]
	if !ok || t.IsRevoked {
		return nil, auth.ErrRefreshTokenNotFound
	}
	return &t, nil
}

func (s memTokens) Revoke(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[hash]; ok {
		t.IsRevoked = true
		s.tokens[hash] = t
	}
	return nil
}

func (s memTokens) Stats(_ context.Context, now time.Time) (auth.TokenStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st auth.TokenStats
	for _, t := range s.tokens {
		switch {
		case t.IsRevoked:
			st.Revoked++
		case now.After(t.ExpiresAt):
			st.Expired++
		default:
			st.Active++
		}
	}
	return st, nil
}

type memTenants struct{ *memStore }

func (s memTenants) Create(_ context.Context, t *tenant.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = uuid.New()
	t.CreatedAt = s.stamp()
	s.tenants[t.ID] = *t
	return nil
}

func (s memTenants) GetByID(_ context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	return &t, nil
}

func (s memTenants) List(_ context.Context) ([]tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []tenant.Tenant{}
	for _, t := range s.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (s memTenants) Update(_ context.Context, id uuid.UUID, name string) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	t.Name = name
	s.tenants[id] = t
	return &t, nil
}

func (s memTenants) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[id]; !ok {
		return tenant.ErrTenantNotFound
	}
	for _, u := range s.users {
		if u.TenantID != nil && *u.TenantID == id {
			return tenant.ErrTenantInUse
		}
	}
	for _, a := range s.apps {
		if a.TenantID != nil && *a.TenantID == id {
			return tenant.ErrTenantInUse
		}
	}
	delete(s.tenants, id)
	return nil
}

type memApps struct{ *memStore }

func (s memApps) Create(_ context.Context, a *application.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = s.stamp()
	s.apps[a.ID] = *a
	return nil
}

func (s memApps) GetByID(_ context.Context, id uuid.UUID) (*application.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok {
		return nil, application.ErrApplicationNotFound
	}
	return &a, nil
}

func (s memApps) List(_ context.Context, f application.Filter) ([]application.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []application.Application{}
	for _, a := range s.apps {
		switch {
		case f.AssignedTo != nil:
			if !s.assignments[[2]uuid.UUID{a.ID, *f.AssignedTo}] {
				continue
			}
		case f.Scoped:
			if !sameTenant(a.TenantID, f.TenantID) {
				continue
			}
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s memApps) ExistsInTenant(_ context.Context, id uuid.UUID, tenantID *uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	return ok && sameTenant(a.TenantID, tenantID), nil
}

func (s memApps) Update(_ context.Context, id uuid.UUID, f application.Update) (*application.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok {
		return nil, application.ErrApplicationNotFound
	}
	if f.Name != nil {
		a.Name = *f.Name
	}
	if f.Description != nil {
		a.Description = f.Description
	}
	s.apps[id] = a
	return &a, nil
}

func (s memApps) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[id]; !ok {
		return application.ErrApplicationNotFound
	}
	delete(s.apps, id)
	return nil
}

func (s memApps) Assign(_ context.Context, appID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[appID]; !ok {
		return application.ErrApplicationNotFound
	}
	if _, ok := s.users[userID]; !ok {
		return application.ErrApplicationNotFound
	}
	s.assignments[[2]uuid.UUID{appID, userID}] = true
	return nil
}
