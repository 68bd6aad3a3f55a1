package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/tenantgate/tenantgate/internal/api/middleware"
	"github.com/tenantgate/tenantgate/internal/api/response"
	"github.com/tenantgate/tenantgate/internal/api/validation"
	"github.com/tenantgate/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/internal/upload"
)

// MultipartOverhead is the allowance for multipart framing on top of the file itself.
const MultipartOverhead = 64 << 10

type updateProfileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
}

type avatarResponse struct {
	AvatarURL string `json:"avatarUrl"`
}

// ProfileHandler handles the caller's own profile under /users/me.
type ProfileHandler struct {
	users auth.UserRepository
	store *upload.Store
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(users auth.UserRepository, store *upload.Store) *ProfileHandler {
	return &ProfileHandler{users: users, store: store}
}

// Get handles GET /users/me.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
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
		slog.Error("failed to load profile", "error", err, "userId", caller.UserID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load profile", requestID)
		return
	}

	response.Success(w, http.StatusOK, toUserResponse(u), requestID)
}

// Update handles PUT /users/me. Absent fields keep their stored value and
// the role can never be changed here.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller, ok := callerIdentity(w, r, requestID)
	if !ok {
		return
	}

	var req updateProfileRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	if validationFailed(w, validation.ValidateUpdateProfileRequest(validation.UpdateProfileRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
	}), requestID) {
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

	u, err := h.users.Update(r.Context(), caller.UserID, fields)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
		case errors.Is(err, auth.ErrDuplicateEmail):
			response.Err(w, http.StatusConflict, "CONFLICT", "Email already registered", requestID)
		default:
			slog.Error("failed to update profile", "error", err, "userId", caller.UserID)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update profile", requestID)
		}
		return
	}

	response.Success(w, http.StatusOK, toUserResponse(u), requestID)
}

// UploadAvatar handles POST /users/me/avatar with a multipart "file" field.
func (h *ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller, ok := callerIdentity(w, r, requestID)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.store.MaxBytes()+MultipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Err(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "File is too large", requestID)
			return
		}
		response.Err(w, http.StatusBadRequest, "NO_FILE", "No file", requestID)
		return
	}
	defer file.Close()

	if header.Size > h.store.MaxBytes() {
		response.Err(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "File is too large", requestID)
		return
	}

	previous := h.currentAvatar(r, caller.UserID)

	url, err := h.store.Save(file, header.Filename)
	if err != nil {
		if errors.Is(err, upload.ErrTooLarge) {
			response.Err(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "File is too large", requestID)
			return
		}
		slog.Error("failed to store avatar", "error", err, "userId", caller.UserID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store avatar", requestID)
		return
	}

	if err := h.users.SetAvatarURL(r.Context(), caller.UserID, url); err != nil {
		h.removeAvatar(url)
		if errors.Is(err, auth.ErrUserNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
			return
		}
		slog.Error("failed to save avatar url", "error", err, "userId", caller.UserID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store avatar", requestID)
		return
	}

	if previous != "" && previous != url {
		h.removeAvatar(previous)
	}

	response.Success(w, http.StatusOK, avatarResponse{AvatarURL: url}, requestID)
}

// currentAvatar returns the caller's stored avatar URL, or "" when there is
// none or it cannot be read. Failing to read it only means the old file stays.
func (h *ProfileHandler) currentAvatar(r *http.Request, id uuid.UUID) string {
	u, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		if !errors.Is(err, auth.ErrUserNotFound) {
			slog.Warn("failed to load previous avatar", "error", err, "userId", id)
		}
		return ""
	}
	if u.AvatarURL == nil {
		return ""
	}
	return *u.AvatarURL
}

func (h *ProfileHandler) removeAvatar(url string) {
	if err := h.store.Remove(url); err != nil {
		slog.Warn("failed to remove avatar file", "error", err, "url", url)
	}
}
