package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
)

// User is a user profile as returned by the API.
type User struct {
	ID               string  `json:"id"`
	Email            string  `json:"email"`
	Role             string  `json:"role"`
	TenantID         *string `json:"tenantId"`
	CreatedByAdminID *string `json:"createdByAdminId"`
	FirstName        string  `json:"firstName"`
	LastName         string  `json:"lastName"`
	Phone            *string `json:"phone"`
	Address          *string `json:"address"`
	AvatarURL        *string `json:"avatarUrl"`
	CreatedAt        string  `json:"createdAt"`
}

// Application is an application record.
type Application struct {
	ID          string  `json:"id"`
	TenantID    *string `json:"tenantId"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	CreatedAt   string  `json:"createdAt"`
}

// Tenant is a tenant record.
type Tenant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

// Health is the body of GET /health.
type Health struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database struct {
		Connected bool `json:"connected"`
	} `json:"database"`
}

type RegisterInput struct {
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	TenantID  *string `json:"tenantId,omitempty"`
}

type CreateUserInput struct {
	FirstName       string  `json:"firstName"`
	LastName        string  `json:"lastName"`
	Email           string  `json:"email"`
	Password        *string `json:"password,omitempty"`
	Role            *string `json:"role,omitempty"`
	TenantID        *string `json:"tenantId,omitempty"`
	AssignedAdminID *string `json:"assignedAdminId,omitempty"`
}

// UpdateUserInput only sends the fields that are set.
type UpdateUserInput struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Email     *string `json:"email,omitempty"`
	Role      *string `json:"role,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Address   *string `json:"address,omitempty"`
}

type UpdateProfileInput struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Address   *string `json:"address,omitempty"`
}

type CreateApplicationInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	TenantID    *string `json:"tenantId,omitempty"`
}

type UpdateApplicationInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Health reports server and database status. It needs no session.
func (s *Session) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := s.public(ctx, request{method: http.MethodGet, path: "/health"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ForgotPassword starts a password reset for email. It needs no session.
func (s *Session) ForgotPassword(ctx context.Context, email string) error {
	req, err := jsonRequest(http.MethodPost, "/auth/forgot-password", map[string]string{"email": email})
	if err != nil {
		return err
	}
	return s.public(ctx, req, nil)
}

// Me returns the signed-in user.
func (s *Session) Me(ctx context.Context) (*User, error) {
	var out User
	if err := s.authorized(ctx, request{method: http.MethodGet, path: "/auth/me"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile returns the signed-in user through the profile endpoint.
func (s *Session) Profile(ctx context.Context) (*User, error) {
	var out User
	if err := s.authorized(ctx, request{method: http.MethodGet, path: "/users/me"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*User, error) {
	var out User
	if err := s.sendJSON(ctx, http.MethodPut, "/users/me", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadAvatar uploads the image read from r and returns its public URL.
func (s *Session) UploadAvatar(ctx context.Context, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("client: building upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("client: reading avatar: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("client: building upload: %w", err)
	}

	req := request{
		method:      http.MethodPost,
		path:        "/users/me/avatar",
		body:        buf.Bytes(),
		contentType: mw.FormDataContentType(),
	}
	var out struct {
		AvatarURL string `json:"avatarUrl"`
	}
	if err := s.authorized(ctx, req, &out); err != nil {
		return "", err
	}
	return out.AvatarURL, nil
}

// ListUsers lists users visible under scope ("all" or "mine"). An empty
// scope lets the server pick its default.
func (s *Session) ListUsers(ctx context.Context, scope string) ([]User, error) {
	var out []User
	if err := s.authorized(ctx, scoped("/users", scope), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Session) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	var out User
	if err := s.sendJSON(ctx, http.MethodPost, "/users", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) UpdateUser(ctx context.Context, id string, in UpdateUserInput) (*User, error) {
	var out User
	if err := s.sendJSON(ctx, http.MethodPut, "/users/"+url.PathEscape(id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) DeleteUser(ctx context.Context, id string) error {
	return s.authorized(ctx, request{method: http.MethodDelete, path: "/users/" + url.PathEscape(id)}, nil)
}

// ListApplications lists applications under scope ("all", "managed" or "mine").
func (s *Session) ListApplications(ctx context.Context, scope string) ([]Application, error) {
	var out []Application
	if err := s.authorized(ctx, scoped("/apps", scope), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Session) CreateApplication(ctx context.Context, in CreateApplicationInput) (*Application, error) {
	var out Application
	if err := s.sendJSON(ctx, http.MethodPost, "/apps", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) UpdateApplication(ctx context.Context, id string, in UpdateApplicationInput) (*Application, error) {
	var out Application
	if err := s.sendJSON(ctx, http.MethodPut, "/apps/"+url.PathEscape(id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) DeleteApplication(ctx context.Context, id string) error {
	return s.authorized(ctx, request{method: http.MethodDelete, path: "/apps/" + url.PathEscape(id)}, nil)
}

// AssignApplication grants the user with email access to the application.
// Assigning twice is not an error.
func (s *Session) AssignApplication(ctx context.Context, id, email string) error {
	return s.sendJSON(ctx, http.MethodPost, "/apps/"+url.PathEscape(id)+"/assign", map[string]string{"email": email}, nil)
}

func (s *Session) ListTenants(ctx context.Context) ([]Tenant, error) {
	var out []Tenant
	if err := s.authorized(ctx, request{method: http.MethodGet, path: "/tenants"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Session) CreateTenant(ctx context.Context, name string) (*Tenant, error) {
	var out Tenant
	if err := s.sendJSON(ctx, http.MethodPost, "/tenants", map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) UpdateTenant(ctx context.Context, id, name string) (*Tenant, error) {
	var out Tenant
	if err := s.sendJSON(ctx, http.MethodPut, "/tenants/"+url.PathEscape(id), map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) DeleteTenant(ctx context.Context, id string) error {
	return s.authorized(ctx, request{method: http.MethodDelete, path: "/tenants/" + url.PathEscape(id)}, nil)
}

func (s *Session) sendJSON(ctx context.Context, method, path string, payload, out any) error {
	req, err := jsonRequest(method, path, payload)
	if err != nil {
		return err
	}
	return s.authorized(ctx, req, out)
}

func scoped(path, scope string) request {
	req := request{method: http.MethodGet, path: path}
	if scope != "" {
		req.query = url.Values{"scope": {scope}}
	}
	return req
}
