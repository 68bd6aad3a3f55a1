package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tenantgate/tenantgate/internal/access"
	"github.com/tenantgate/tenantgate/internal/api/middleware"
	"github.com/tenantgate/tenantgate/internal/api/response"
	"github.com/tenantgate/tenantgate/internal/api/validation"
	"github.com/tenantgate/tenantgate/internal/application"
	"github.com/tenantgate/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/internal/tenant"
)

type applicationResponse struct {
	ID          string  `json:"id"`
	TenantID    *string `json:"tenantId"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	CreatedAt   string  `json:"createdAt"`
}

func toApplicationResponse(a *application.Application) applicationResponse {
	return applicationResponse{
		ID:          a.ID.String(),
		TenantID:    uuidString(a.TenantID),
		Name:        a.Name,
		Description: a.Description,
		CreatedAt:   formatTime(a.CreatedAt),
	}
}

type createApplicationRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	TenantID    *string `json:"tenantId"`
}

type updateApplicationRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type assignRequest struct {
	Email string `json:"email"`
}

// ApplicationHandler handles application endpoints under /apps.
type ApplicationHandler struct {
	apps   application.Repository
	users  auth.UserRepository
	policy *access.Policy
}

// NewApplicationHandler creates a new ApplicationHandler.
func NewApplicationHandler(apps application.Repository, users auth.UserRepository, policy *access.Policy) *ApplicationHandler {
	return &ApplicationHandler{apps: apps, users: users, policy: policy}
}

// List handles GET /apps?scope=all|managed|mine. Scopes the caller may not
// use fall back to the applications assigned to the caller.
func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller, ok := callerIdentity(w, r, requestID)
	if !ok {
		return
	}

	apps, err := h.apps.List(r.Context(), h.policy.ApplicationFilter(caller, r.URL.Query().Get("scope")))
	if err != nil {
		slog.Error("failed to list applications", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list applications", requestID)
		return
	}

	items := make([]applicationResponse, 0, len(apps))
	for i := range apps {
		items = append(items, toApplicationResponse(&apps[i]))
	}

	response.SuccessList(w, http.StatusOK, items, len(items), requestID)
}

// Create handles POST /apps.
func (h *ApplicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller, ok := callerIdentity(w, r, requestID)
	if !ok {
		return
	}

	var req createApplicationRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	if validationFailed(w, validation.ValidateCreateApplicationRequest(validation.CreateApplicationRequest{
		Name:        req.Name,
		Description: req.Description,
		TenantID:    req.TenantID,
	}), requestID) {
		return
	}

	tenantID, err := h.policy.ApplicationTenant(r.Context(), caller, parseOptionalUUID(req.TenantID))
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Tenant not found", requestID)
			return
		}
		writePolicyError(w, err, requestID, "Failed to create application")
		return
	}

	app := &application.Application{
		TenantID:    tenantID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
	}
	if err := h.apps.Create(r.Context(), app); err != nil {
		slog.Error("failed to create application", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create application", requestID)
		return
	}

	response.Success(w, http.StatusCreated, toApplicationResponse(app), requestID)
}

// Update handles PUT /apps/{id}.
func (h *ApplicationHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller, ok := callerIdentity(w, r, requestID)
	if !ok {
		return
	}
	id, ok := urlID(w, r, requestID)
	if !ok {
		return
	}

	var req updateApplicationRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	if validationFailed(w, validation.ValidateUpdateApplicationRequest(validation.UpdateApplicationRequest{
		Name:        req.Name,
		Description: req.Description,
	}), requestID) {
		return
	}

	if err := h.policy.CheckApplicationMutation(r.Context(), caller, id); err != nil {
		writePolicyError(w, err, requestID, "Failed to update application")
		return
	}

	app, err := h.apps.Update(r.Context(), id, application.Update{
		Name:        trimmed(req.Name),
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, application.ErrApplicationNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Application not found", requestID)
			return
		}
		slog.Error("failed to update application", "error", err, "id", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update application", requestID)
		return
	}

	response.Success(w, http.StatusOK, toApplicationResponse(app), requestID)
}

// Delete handles DELETE /apps/{id}.
func (h *ApplicationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller, ok := callerIdentity(w, r, requestID)
	if !ok {
		return
	}
	id, ok := urlID(w, r, requestID)
	if !ok {
		return
	}

	if err := h.policy.CheckApplicationMutation(r.Context(), caller, id); err != nil {
		writePolicyError(w, err, requestID, "Failed to delete application")
		return
	}

	if err := h.apps.Delete(r.Context(), id); err != nil {
		if errors.Is(err, application.ErrApplicationNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Application not found", requestID)
			return
		}
		slog.Error("failed to delete application", "error", err, "id", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete application", requestID)
		return
	}

	response.Done(w, requestID)
}

// Assign handles POST /apps/{id}/assign. Assigning twice is not an error.
func (h *ApplicationHandler) Assign(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller, ok := callerIdentity(w, r, requestID)
	if !ok {
		return
	}
	id, ok := urlID(w, r, requestID)
	if !ok {
		return
	}

	var req assignRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if validationFailed(w, validation.ValidateAssignRequest(req.Email), requestID) {
		return
	}

	target, err := h.users.GetByEmail(r.Context(), auth.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
			return
		}
		slog.Error("failed to look up assignee", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to assign application", requestID)
		return
	}

	if err := h.policy.CheckAssignment(caller, target); err != nil {
		writePolicyError(w, err, requestID, "Failed to assign application")
		return
	}

	if err := h.apps.Assign(r.Context(), id, target.ID); err != nil {
		if errors.Is(err, application.ErrApplicationNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Application not found", requestID)
			return
		}
		slog.Error("failed to assign application", "error", err, "id", id, "userId", target.ID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to assign application", requestID)
		return
	}

	slog.Info("application assigned", "applicationId", id, "userId", target.ID, "assignedBy", caller.UserID)
	response.Done(w, requestID)
}
