package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tenantgate/tenantgate/internal/api/middleware"
	"github.com/tenantgate/tenantgate/internal/api/response"
	"github.com/tenantgate/tenantgate/internal/api/validation"
	"github.com/tenantgate/tenantgate/internal/tenant"
)

type tenantRequest struct {
	Name string `json:"name"`
}

type tenantResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

func toTenantResponse(t *tenant.Tenant) tenantResponse {
	return tenantResponse{
		ID:        t.ID.String(),
		Name:      t.Name,
		CreatedAt: formatTime(t.CreatedAt),
	}
}

// TenantHandler handles tenant CRUD endpoints.
type TenantHandler struct {
	repo tenant.Repository
}

// NewTenantHandler creates a new TenantHandler.
func NewTenantHandler(repo tenant.Repository) *TenantHandler {
	return &TenantHandler{repo: repo}
}

// Create handles POST /tenants.
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req tenantRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if validationFailed(w, validation.ValidateTenantName(req.Name), requestID) {
		return
	}

	t := &tenant.Tenant{Name: strings.TrimSpace(req.Name)}
	if err := h.repo.Create(r.Context(), t); err != nil {
		slog.Error("failed to create tenant", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create tenant", requestID)
		return
	}

	response.Success(w, http.StatusCreated, toTenantResponse(t), requestID)
}

// List handles GET /tenants.
func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	tenants, err := h.repo.List(r.Context())
	if err != nil {
		slog.Error("failed to list tenants", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list tenants", requestID)
		return
	}

	items := make([]tenantResponse, 0, len(tenants))
	for i := range tenants {
		items = append(items, toTenantResponse(&tenants[i]))
	}

	response.SuccessList(w, http.StatusOK, items, len(items), requestID)
}

// Update handles PUT /tenants/{id}.
func (h *TenantHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id, ok := urlID(w, r, requestID)
	if !ok {
		return
	}

	var req tenantRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if validationFailed(w, validation.ValidateTenantName(req.Name), requestID) {
		return
	}

	t, err := h.repo.Update(r.Context(), id, strings.TrimSpace(req.Name))
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Tenant not found", requestID)
			return
		}
		slog.Error("failed to update tenant", "error", err, "id", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update tenant", requestID)
		return
	}

	response.Success(w, http.StatusOK, toTenantResponse(t), requestID)
}

// Delete handles DELETE /tenants/{id}. Tenants still referenced by users or
// applications are not deleted.
func (h *TenantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id, ok := urlID(w, r, requestID)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Tenant not found", requestID)
			return
		}
		if errors.Is(err, tenant.ErrTenantInUse) {
			response.Err(w, http.StatusConflict, "TENANT_IN_USE", "Cannot delete a tenant that still has users or applications", requestID)
			return
		}
		slog.Error("failed to delete tenant", "error", err, "id", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete tenant", requestID)
		return
	}

	response.Done(w, requestID)
}
