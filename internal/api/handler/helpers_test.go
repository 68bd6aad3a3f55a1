package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tenantgate/tenantgate/internal/api/middleware"
	"github.com/tenantgate/tenantgate/internal/application"
	"github.com/tenantgate/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/internal/tenant"
)

// --- Mock User Repository ---

type mockUserRepo struct {
	createFn         func(ctx context.Context, u *auth.User) error
	getByIDFn        func(ctx context.Context, id uuid.UUID) (*auth.User, error)
	getByEmailFn     func(ctx context.Context, email string) (*auth.User, error)
	listFn           func(ctx context.Context, filter auth.UserFilter) ([]auth.User, error)
	existsInTenantFn func(ctx context.Context, id uuid.UUID, tenantID *uuid.UUID) (bool, error)
	updateFn         func(ctx context.Context, id uuid.UUID, fields auth.UserUpdate) (*auth.User, error)
	setAvatarURLFn   func(ctx context.Context, id uuid.UUID, url string) error
	deleteFn         func(ctx context.Context, id uuid.UUID) error
}

func (m *mockUserRepo) Create(ctx context.Context, u *auth.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, u)
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now().UTC()
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, auth.ErrUserNotFound
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	if m.getByEmailFn != nil {
		return m.getByEmailFn(ctx, email)
	}
	return nil, auth.ErrUserNotFound
}

func (m *mockUserRepo) List(ctx context.Context, filter auth.UserFilter) ([]auth.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return []auth.User{}, nil
}

func (m *mockUserRepo) ExistsInTenant(ctx context.Context, id uuid.UUID, tenantID *uuid.UUID) (bool, error) {
	if m.existsInTenantFn != nil {
		return m.existsInTenantFn(ctx, id, tenantID)
	}
	return false, nil
}

func (m *mockUserRepo) Update(ctx context.Context, id uuid.UUID, fields auth.UserUpdate) (*auth.User, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, fields)
	}
	return nil, auth.ErrUserNotFound
}

func (m *mockUserRepo) SetAvatarURL(ctx context.Context, id uuid.UUID, url string) error {
	if m.setAvatarURLFn != nil {
		return m.setAvatarURLFn(ctx, id, url)
	}
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockUserRepo) CountByRole(_ context.Context, _ auth.Role) (int, error) {
	return 0, nil
}

// --- Mock Refresh Token Repository ---

type mockRefreshRepo struct {
	createFn     func(ctx context.Context, t *auth.RefreshToken) error
	findActiveFn func(ctx context.Context, hash string) (*auth.RefreshToken, error)
	revokeFn     func(ctx context.Context, hash string) error
}

func (m *mockRefreshRepo) Stats(_ context.Context, _ time.Time) (auth.TokenStats, error) {
	return auth.TokenStats{}, nil
}

func (m *mockRefreshRepo) Create(ctx context.Context, t *auth.RefreshToken) error {
	if m.createFn != nil {
		return m.createFn(ctx, t)
	}
	return nil
}

func (m *mockRefreshRepo) FindActive(ctx context.Context, hash string) (*auth.RefreshToken, error) {
	if m.findActiveFn != nil {
		return m.findActiveFn(ctx, hash)
	}
	return nil, auth.ErrRefreshTokenNotFound
}

func (m *mockRefreshRepo) Revoke(ctx context.Context, hash string) error {
	if m.revokeFn != nil {
		return m.revokeFn(ctx, hash)
	}
	return nil
}

// --- Mock Tenant Repository ---

type mockTenantRepo struct {
	createFn  func(ctx context.Context, t *tenant.Tenant) error
	getByIDFn func(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
	listFn    func(ctx context.Context) ([]tenant.Tenant, error)
	updateFn  func(ctx context.Context, id uuid.UUID, name string) (*tenant.Tenant, error)
	deleteFn  func(ctx context.Context, id uuid.UUID) error
}

func (m *mockTenantRepo) Create(ctx context.Context, t *tenant.Tenant) error {
	if m.createFn != nil {
		return m.createFn(ctx, t)
	}
	t.ID = uuid.New()
	t.CreatedAt = time.Now().UTC()
	return nil
}

func (m *mockTenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, tenant.ErrTenantNotFound
}

func (m *mockTenantRepo) List(ctx context.Context) ([]tenant.Tenant, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []tenant.Tenant{}, nil
}

func (m *mockTenantRepo) Update(ctx context.Context, id uuid.UUID, name string) (*tenant.Tenant, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, name)
	}
	return nil, tenant.ErrTenantNotFound
}

func (m *mockTenantRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// --- Mock Application Repository ---

type mockAppRepo struct {
	createFn         func(ctx context.Context, a *application.Application) error
	listFn           func(ctx context.Context, filter application.Filter) ([]application.Application, error)
	existsInTenantFn func(ctx context.Context, id uuid.UUID, tenantID *uuid.UUID) (bool, error)
	updateFn         func(ctx context.Context, id uuid.UUID, fields application.Update) (*application.Application, error)
	deleteFn         func(ctx context.Context, id uuid.UUID) error
	assignFn         func(ctx context.Context, appID, userID uuid.UUID) error
}

func (m *mockAppRepo) Create(ctx context.Context, a *application.Application) error {
	if m.createFn != nil {
		return m.createFn(ctx, a)
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now().UTC()
	return nil
}

func (m *mockAppRepo) GetByID(_ context.Context, _ uuid.UUID) (*application.Application, error) {
	return nil, application.ErrApplicationNotFound
}

func (m *mockAppRepo) List(ctx context.Context, filter application.Filter) ([]application.Application, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return []application.Application{}, nil
}

func (m *mockAppRepo) ExistsInTenant(ctx context.Context, id uuid.UUID, tenantID *uuid.UUID) (bool, error) {
	if m.existsInTenantFn != nil {
		return m.existsInTenantFn(ctx, id, tenantID)
	}
	return false, nil
}

func (m *mockAppRepo) Update(ctx context.Context, id uuid.UUID, fields application.Update) (*application.Application, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, fields)
	}
	return nil, application.ErrApplicationNotFound
}

func (m *mockAppRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockAppRepo) Assign(ctx context.Context, appID, userID uuid.UUID) error {
	if m.assignFn != nil {
		return m.assignFn(ctx, appID, userID)
	}
	return nil
}

// --- Helpers ---

func makeChiRequest(method, path string, body []byte, routePattern string, params map[string]string) (*http.Request, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()

	rctx := chi.NewRouteContext()
	rctx.RoutePatterns = append(rctx.RoutePatterns, routePattern)
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	return req, w
}

func asCaller(req *http.Request, identity *auth.Identity) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), identity))
}

func superadmin() *auth.Identity {
	return &auth.Identity{UserID: uuid.New(), Role: auth.RoleSuperadmin}
}

func adminOf(tenantID uuid.UUID) *auth.Identity {
	return &auth.Identity{UserID: uuid.New(), Role: auth.RoleAdmin, TenantID: &tenantID}
}

func plainUser() *auth.Identity {
	return &auth.Identity{UserID: uuid.New(), Role: auth.RoleUser}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &env)
	require.NoError(t, err, "failed to parse response body")
	return env
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	env := parseEnvelope(t, w)
	errObj, ok := env["error"].(map[string]interface{})
	require.True(t, ok, "response has no error object: %s", w.Body.String())
	return errObj["code"].(string)
}

func ptr[T any](v T) *T {
	return &v
}
