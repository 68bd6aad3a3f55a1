package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantgate/tenantgate/internal/access"
	"github.com/tenantgate/tenantgate/internal/api/handler"
	"github.com/tenantgate/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/internal/tenant"
)

type userFixture struct {
	users   *mockUserRepo
	tenants *mockTenantRepo
	handler *handler.UserHandler
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	issuer, err := auth.NewTokenIssuer("handler-test-secret")
	require.NoError(t, err)

	f := &userFixture{users: &mockUserRepo{}, tenants: &mockTenantRepo{}}
	svc := auth.NewService(f.users, &mockRefreshRepo{}, f.tenants, issuer, auth.WithBcryptCost(4))
	policy := access.NewPolicy(f.users, &mockAppRepo{}, f.tenants)
	f.handler = handler.NewUserHandler(f.users, policy, svc)
	return f
}

// ===== GET /users =====

func TestUserList_Scopes(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	tests := []struct {
		name       string
		caller     *auth.Identity
		scope      string
		wantCode   int
		wantFilter auth.UserFilter
	}{
		{"superadmin default is all", superadmin(), "", http.StatusOK, auth.UserFilter{}},
		{"superadmin all", superadmin(), "all", http.StatusOK, auth.UserFilter{}},
		{"admin mine", adminOf(tenantID), "mine", http.StatusOK, auth.UserFilter{Scoped: true, TenantID: &tenantID}},
		{"admin all is forbidden", adminOf(tenantID), "all", http.StatusForbidden, auth.UserFilter{}},
		{"admin default is forbidden", adminOf(tenantID), "", http.StatusForbidden, auth.UserFilter{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newUserFixture(t)
			var got *auth.UserFilter
			f.users.listFn = func(_ context.Context, filter auth.UserFilter) ([]auth.User, error) {
				got = &filter
				return []auth.User{{ID: uuid.New(), Email: "a@example.com", Role: auth.RoleUser, TenantID: &tenantID}}, nil
			}

			path := "/users"
			if tt.scope != "" {
				path += "?scope=" + tt.scope
			}
			req, w := makeChiRequest(http.MethodGet, path, nil, "/users", nil)
			f.handler.List(w, asCaller(req, tt.caller))

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode != http.StatusOK {
				assert.Equal(t, "FORBIDDEN", errorCode(t, w))
				assert.Nil(t, got, "store must not be queried")
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantFilter, *got)
			env := parseEnvelope(t, w)
			assert.Len(t, env["data"], 1)
			assert.Equal(t, float64(1), env["meta"].(map[string]interface{})["total"])
		})
	}
}

// ===== POST /users =====

func TestUserCreate_AdminForcesOwnTenant(t *testing.T) {
	t.Parallel()
	f := newUserFixture(t)

	tenantID := uuid.New()
	caller := adminOf(tenantID)
	var created *auth.User
	f.users.createFn = func(_ context.Context, u *auth.User) error {
		u.ID = uuid.New()
		created = u
		return nil
	}

	body := mustJSON(t, map[string]any{
		"firstName": "Bob", "lastName": "Builder", "email": "Bob@Example.com",
		"password": "secret1", "tenantId": uuid.NewString(),
	})
	req, w := makeChiRequest(http.MethodPost, "/users", body, "/users", nil)
	f.handler.Create(w, asCaller(req, caller))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NotNil(t, created)
	assert.Equal(t, &tenantID, created.TenantID)
	assert.Equal(t, &caller.UserID, created.CreatedByAdminID)
	assert.Equal(t, auth.RoleUser, created.Role)
	assert.Equal(t, "bob@example.com", created.Email)
	require.NotNil(t, created.PasswordHash)
	assert.True(t, auth.VerifyPassword(*created.PasswordHash, "secret1"))

	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, tenantID.String(), data["tenantId"])
}

func TestUserCreate_SuperadminPlacement(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	adminID := uuid.New()

	tests := []struct {
		name        string
		body        map[string]any
		wantCode    int
		wantTenant  *uuid.UUID
		wantCreator func(caller *auth.Identity) *uuid.UUID
	}{
		{
			name:        "named tenant",
			body:        map[string]any{"tenantId": tenantID.String(), "role": "admin"},
			wantCode:    http.StatusCreated,
			wantTenant:  &tenantID,
			wantCreator: func(c *auth.Identity) *uuid.UUID { return &c.UserID },
		},
		{
			name:        "assigned admin",
			body:        map[string]any{"assignedAdminId": adminID.String()},
			wantCode:    http.StatusCreated,
			wantTenant:  &tenantID,
			wantCreator: func(*auth.Identity) *uuid.UUID { return &adminID },
		},
		{
			name:        "unassigned",
			body:        map[string]any{},
			wantCode:    http.StatusCreated,
			wantTenant:  nil,
			wantCreator: func(c *auth.Identity) *uuid.UUID { return &c.UserID },
		},
		{
			name:     "unknown tenant",
			body:     map[string]any{"tenantId": uuid.NewString()},
			wantCode: http.StatusNotFound,
		},
		{
			name:     "unknown admin",
			body:     map[string]any{"assignedAdminId": uuid.NewString()},
			wantCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newUserFixture(t)
			caller := superadmin()

			f.tenants.getByIDFn = func(_ context.Context, id uuid.UUID) (*tenant.Tenant, error) {
				if id == tenantID {
					return &tenant.Tenant{ID: id, Name: "acme"}, nil
				}
				return nil, tenant.ErrTenantNotFound
			}
			f.users.getByIDFn = func(_ context.Context, id uuid.UUID) (*auth.User, error) {
				if id == adminID {
					return &auth.User{ID: adminID, Role: auth.RoleAdmin, TenantID: &tenantID}, nil
				}
				return nil, auth.ErrUserNotFound
			}
			var created *auth.User
			f.users.createFn = func(_ context.Context, u *auth.User) error {
				u.ID = uuid.New()
				created = u
				return nil
			}

			body := map[string]any{"firstName": "Bob", "lastName": "Builder", "email": "bob@example.com"}
			for k, v := range tt.body {
				body[k] = v
			}
			req, w := makeChiRequest(http.MethodPost, "/users", mustJSON(t, body), "/users", nil)
			f.handler.Create(w, asCaller(req, caller))

			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantCode != http.StatusCreated {
				assert.Nil(t, created)
				return
			}
			require.NotNil(t, created)
			assert.Equal(t, tt.wantTenant, created.TenantID)
			assert.Equal(t, tt.wantCreator(caller), created.CreatedByAdminID)
			assert.Nil(t, created.PasswordHash)
		})
	}
}

func TestUserCreate_ValidationError(t *testing.T) {
	t.Parallel()
	f := newUserFixture(t)

	body := mustJSON(t, map[string]any{
		"firstName": "Bob", "lastName": "Builder", "email": "bob@example.com",
		"role": "owner", "password": "123",
	})
	req, w := makeChiRequest(http.MethodPost, "/users", body, "/users", nil)
	f.handler.Create(w, asCaller(req, superadmin()))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	t.Parallel()
	f := newUserFixture(t)
	f.users.createFn = func(context.Context, *auth.User) error { return auth.ErrDuplicateEmail }

	body := mustJSON(t, map[string]any{"firstName": "Bob", "lastName": "Builder", "email": "bob@example.com"})
	req, w := makeChiRequest(http.MethodPost, "/users", body, "/users", nil)
	f.handler.Create(w, asCaller(req, superadmin()))

	assert.Equal(t, http.StatusConflict, w.Code)
}

// ===== PUT /users/{id} =====

func TestUserUpdate_AdminOtherTenantIsForbidden(t *testing.T) {
	t.Parallel()
	f := newUserFixture(t)

	updated := false
	f.users.existsInTenantFn = func(context.Context, uuid.UUID, *uuid.UUID) (bool, error) { return false, nil }
	f.users.updateFn = func(context.Context, uuid.UUID, auth.UserUpdate) (*auth.User, error) {
		updated = true
		return nil, nil
	}

	id := uuid.NewString()
	req, w := makeChiRequest(http.MethodPut, "/users/"+id, []byte(`{"firstName":"X"}`), "/users/{id}", map[string]string{"id": id})
	f.handler.Update(w, asCaller(req, adminOf(uuid.New())))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, updated)
}

func TestUserUpdate_AdminSameTenant(t *testing.T) {
	t.Parallel()
	f := newUserFixture(t)

	tenantID := uuid.New()
	target := uuid.New()
	f.users.existsInTenantFn = func(_ context.Context, id uuid.UUID, tid *uuid.UUID) (bool, error) {
		return id == target && tid != nil && *tid == tenantID, nil
	}
	var got auth.UserUpdate
	f.users.updateFn = func(_ context.Context, id uuid.UUID, fields auth.UserUpdate) (*auth.User, error) {
		got = fields
		return &auth.User{ID: id, Email: "x@example.com", Role: auth.RoleAdmin, FirstName: "X"}, nil
	}

	req, w := makeChiRequest(http.MethodPut, "/users/"+target.String(), []byte(`{"firstName":" X ","role":"admin"}`), "/users/{id}", map[string]string{"id": target.String()})
	f.handler.Update(w, asCaller(req, adminOf(tenantID)))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, got.FirstName)
	assert.Equal(t, "X", *got.FirstName)
	require.NotNil(t, got.Role)
	assert.Equal(t, auth.RoleAdmin, *got.Role)
	assert.Nil(t, got.LastName)
}

func TestUserUpdate_SuperadminMissingRowIsNotFound(t *testing.T) {
	t.Parallel()
	f := newUserFixture(t)

	id := uuid.NewString()
	req, w := makeChiRequest(http.MethodPut, "/users/"+id, []byte(`{"lastName":"Y"}`), "/users/{id}", map[string]string{"id": id})
	f.handler.Update(w, asCaller(req, superadmin()))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserUpdate_InvalidID(t *testing.T) {
	t.Parallel()
	f := newUserFixture(t)

	req, w := makeChiRequest(http.MethodPut, "/users/abc", []byte(`{}`), "/users/{id}", map[string]string{"id": "abc"})
	f.handler.Update(w, asCaller(req, superadmin()))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", errorCode(t, w))
}

// ===== DELETE /users/{id} =====

func TestUserDelete(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	tests := []struct {
		name      string
		caller    *auth.Identity
		inTenant  bool
		deleteErr error
		wantCode  int
	}{
		{"admin same tenant", adminOf(tenantID), true, nil, http.StatusOK},
		{"admin other tenant", adminOf(tenantID), false, nil, http.StatusForbidden},
		{"superadmin anywhere", superadmin(), false, nil, http.StatusOK},
		{"superadmin missing row", superadmin(), false, auth.ErrUserNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newUserFixture(t)
			deleted := false
			f.users.existsInTenantFn = func(context.Context, uuid.UUID, *uuid.UUID) (bool, error) { return tt.inTenant, nil }
			f.users.deleteFn = func(context.Context, uuid.UUID) error {
				deleted = true
				return tt.deleteErr
			}

			id := uuid.NewString()
			req, w := makeChiRequest(http.MethodDelete, "/users/"+id, nil, "/users/{id}", map[string]string{"id": id})
			f.handler.Delete(w, asCaller(req, tt.caller))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantCode != http.StatusForbidden, deleted)
			if tt.wantCode == http.StatusOK {
				data := parseEnvelope(t, w)["data"].(map[string]interface{})
				assert.Equal(t, true, data["success"])
			}
		})
	}
}
