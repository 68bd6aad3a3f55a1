package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tenantgate/tenantgate/internal/api/middleware"
	"github.com/tenantgate/tenantgate/internal/api/response"
	"github.com/tenantgate/tenantgate/internal/api/validation"
	"github.com/tenantgate/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/internal/tenant"
)

type registerRequest struct {
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	TenantID  *string `json:"tenantId"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type tokenPairResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type accessTokenResponse struct {
	Token string `json:"token"`
}

// AuthHandler handles credential and token endpoints under /auth.
type AuthHandler struct {
	svc   *auth.Service
	users auth.UserRepository
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *auth.Service, users auth.UserRepository) *AuthHandler {
	return &AuthHandler{svc: svc, users: users}
}

// Register handles POST /auth/register. New accounts always get the user role.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req registerRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	if validationFailed(w, validation.ValidateRegisterRequest(validation.RegisterRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		TenantID:  req.TenantID,
	}), requestID) {
		return
	}

	_, pair, err := h.svc.Register(r.Context(), auth.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		TenantID:  parseOptionalUUID(req.TenantID),
	})
	if err != nil {
		switch {
		case errors.Is(err, tenant.ErrTenantNotFound):
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Tenant not found", requestID)
		case errors.Is(err, auth.ErrDuplicateEmail):
			response.Err(w, http.StatusConflict, "CONFLICT", "Email already registered", requestID)
		default:
			slog.Error("failed to register user", "error", err)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Registration failed", requestID)
		}
		return
	}

	response.Success(w, http.StatusCreated, tokenPairResponse{Token: pair.AccessToken, RefreshToken: pair.RefreshToken}, requestID)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req loginRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	if validationFailed(w, validation.ValidateLoginRequest(validation.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	}), requestID) {
		return
	}

	_, pair, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			response.Err(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials", requestID)
			return
		}
		slog.Error("failed to log in", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed", requestID)
		return
	}

	response.Success(w, http.StatusOK, tokenPairResponse{Token: pair.AccessToken, RefreshToken: pair.RefreshToken}, requestID)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller, ok := callerIdentity(w, r, requestID)
	if !ok {
		return
	}

	u, err := h.users.GetByID(r.Context(), caller.UserID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
			return
		}
		slog.Error("failed to load current user", "error", err, "userId", caller.UserID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load user", requestID)
		return
	}

	response.Success(w, http.StatusOK, toUserResponse(u), requestID)
}

// Refresh handles POST /auth/refresh. The refresh token is not rotated.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req refreshRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if req.RefreshToken == "" {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "Missing refresh token", requestID)
		return
	}

	token, _, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrExpiredRefreshToken):
			response.Err(w, http.StatusUnauthorized, "REFRESH_TOKEN_EXPIRED", "Refresh token expired", requestID)
		case errors.Is(err, auth.ErrInvalidRefreshToken):
			response.Err(w, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Invalid refresh token", requestID)
		default:
			slog.Error("failed to refresh token", "error", err)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Refresh failed", requestID)
		}
		return
	}

	response.Success(w, http.StatusOK, accessTokenResponse{Token: token}, requestID)
}

// Logout handles POST /auth/logout. It always reports success; a missing,
// unknown or unparsable token is simply nothing to revoke.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req refreshRequest
	if err := decodeBody(r, &req); err != nil {
		slog.Debug("ignoring unreadable logout body", "error", err)
	}

	if err := h.svc.Logout(r.Context(), req.RefreshToken); err != nil {
		slog.Error("failed to revoke refresh token", "error", err)
	}

	response.Done(w, requestID)
}

// ForgotPassword handles POST /auth/forgot-password. Delivery is not
// implemented; the request is validated, logged and acknowledged.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req forgotPasswordRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if validationFailed(w, validation.ValidateForgotPasswordRequest(req.Email), requestID) {
		return
	}

	slog.Info("password reset requested", "requestId", requestID)
	response.Done(w, requestID)
}
