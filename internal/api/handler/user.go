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
	"github.com/tenantgate/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/internal/tenant"
)

type userResponse struct {
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

func toUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:               u.ID.String(),
		Email:            u.Email,
		Role:             string(u.Role),
		TenantID:         uuidString(u.TenantID),
		CreatedByAdminID: uuidString(u.CreatedByAdminID),
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Phone:            u.Phone,
		Address:          u.Address,
		AvatarURL:        u.AvatarURL,
		CreatedAt:        formatTime(u.CreatedAt),
	}
}

type createUserRequest struct {
	FirstName       string  `json:"firstName"`
	LastName        string  `json:"lastName"`
	Email           string  `json:"email"`
	Password        *string `json:"password"`
	Role            *string `json:"role"`
	TenantID        *string `json:"tenantId"`
	AssignedAdminID *string `json:"assignedAdminId"`
}

type updateUserRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
	Role      *string `json:"role"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
}

// UserHandler handles user management endpoints for admins and superadmins.
type UserHandler struct {
	users  auth.UserRepository
	policy *access.Policy
	svc    *auth.Service
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users auth.UserRepository, policy *access.Policy, svc *auth.Service) *UserHandler {
	return &UserHandler{users: users, policy: policy, svc: svc}
}

// List handles GET /users?scope=all|mine.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller, ok := callerIdentity(w, r, requestID)
	if !ok {
		return
	}

	filter, err := h.policy.UserFilter(caller, r.URL.Query().Get("scope"))
	if err != nil {
		writePolicyError(w, err, requestID, "Failed to list users")
		return
	}

	users, err := h.users.List(r.Context(), filter)
	if err != nil {
		slog.Error("failed to list users", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list users", requestID)
		return
	}

	items := make([]userResponse, 0, len(users))
	for i := range users {
		items = append(items, toUserResponse(&users[i]))
	}

	response.SuccessList(w, http.StatusOK, items, len(items), requestID)
}

// Create handles POST /users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller, ok := callerIdentity(w, r, requestID)
	if !ok {
		return
	}

	var req createUserRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	if validationFailed(w, validation.ValidateCreateUserRequest(validation.CreateUserRequest{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Password:        req.Password,
		Role:            req.Role,
		TenantID:        req.TenantID,
		AssignedAdminID: req.AssignedAdminID,
	}), requestID) {
		return
	}

	placement, err := h.policy.PlaceNewUser(r.Context(), caller, parseOptionalUUID(req.TenantID), parseOptionalUUID(req.AssignedAdminID))
	if err != nil {
		switch {
		case errors.Is(err, tenant.ErrTenantNotFound):
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Tenant not found", requestID)
		case errors.Is(err, auth.ErrUserNotFound):
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Assigned admin not found", requestID)
		default:
			writePolicyError(w, err, requestID, "Failed to create user")
		}
		return
	}

	role := auth.RoleUser
	if req.Role != nil {
		role = auth.Role(*req.Role)
	}

	u := &auth.User{
		Email:            auth.NormalizeEmail(req.Email),
		Role:             role,
		TenantID:         placement.TenantID,
		CreatedByAdminID: placement.CreatedByAdminID,
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
	}
	if req.Password != nil {
		hash, err := h.svc.HashPassword(*req.Password)
		if err != nil {
			slog.Error("failed to hash password", "error", err)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create user", requestID)
			return
		}
		u.PasswordHash = &hash
	}

	if err := h.users.Create(r.Context(), u); err != nil {
		if errors.Is(err, auth.ErrDuplicateEmail) {
			response.Err(w, http.StatusConflict, "CONFLICT", "Email already registered", requestID)
			return
		}
		slog.Error("failed to create user", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create user", requestID)
		return
	}

	slog.Info("user created", "userId", u.ID, "role", u.Role, "createdBy", caller.UserID)
	response.Success(w, http.StatusCreated, toUserResponse(u), requestID)
}

// Update handles PUT /users/{id}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller, ok := callerIdentity(w, r, requestID)
	if !ok {
		return
	}
	id, ok := urlID(w, r, requestID)
	if !ok {
		return
	}

	var req updateUserRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	if validationFailed(w, validation.ValidateUpdateUserRequest(validation.UpdateUserRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Role:      req.Role,
		Phone:     req.Phone,
		Address:   req.Address,
	}), requestID) {
		return
	}

	if err := h.policy.CheckUserMutation(r.Context(), caller, id); err != nil {
		writePolicyError(w, err, requestID, "Failed to update user")
		return
	}

	fields := auth.UserUpdate{
		FirstName: trimmed(req.FirstName),
		LastName:  trimmed(req.LastName),
		Phone:     req.Phone,
		Address:   req.Address,
	}
	if req.Email != nil {
		email := auth.NormalizeEmail(*req.Email)
		fields.Email = &email
	}
	if req.Role != nil {
		role := auth.Role(*req.Role)
		fields.Role = &role
		if caller.Role == auth.RoleAdmin {
			slog.Warn("admin changed user role", "adminId", caller.UserID, "userId", id, "role", role)
		}
	}

	u, err := h.users.Update(r.Context(), id, fields)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
		case errors.Is(err, auth.ErrDuplicateEmail):
			response.Err(w, http.StatusConflict, "CONFLICT", "Email already registered", requestID)
		default:
			slog.Error("failed to update user", "error", err, "id", id)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update user", requestID)
		}
		return
	}

	response.Success(w, http.StatusOK, toUserResponse(u), requestID)
}

// Delete handles DELETE /users/{id}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller, ok := callerIdentity(w, r, requestID)
	if !ok {
		return
	}
	id, ok := urlID(w, r, requestID)
	if !ok {
		return
	}

	if err := h.policy.CheckUserMutation(r.Context(), caller, id); err != nil {
		writePolicyError(w, err, requestID, "Failed to delete user")
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
			return
		}
		slog.Error("failed to delete user", "error", err, "id", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete user", requestID)
		return
	}

	slog.Info("user deleted", "userId", id, "deletedBy", caller.UserID)
	response.Done(w, requestID)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
