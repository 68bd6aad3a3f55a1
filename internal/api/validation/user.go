package validation

import (
	"github.com/tenantgate/tenantgate/internal/auth"
)

// CreateUserRequest mirrors the fields needed for create user validation.
type CreateUserRequest struct {
	FirstName       string
	LastName        string
	Email           string
	Password        *string
	Role            *string
	TenantID        *string
	AssignedAdminID *string
}

// ValidateCreateUserRequest validates the fields of a create user request.
func ValidateCreateUserRequest(req CreateUserRequest) []FieldError {
	var errs []FieldError

	errs = requireName(errs, "firstName", req.FirstName)
	errs = requireName(errs, "lastName", req.LastName)
	errs = requireEmail(errs, "email", req.Email)
	if req.Password != nil {
		errs = password(errs, "password", *req.Password)
	}
	errs = role(errs, req.Role)
	errs = optionalUUID(errs, "tenantId", req.TenantID)
	errs = optionalUUID(errs, "assignedAdminId", req.AssignedAdminID)

	return errs
}

// UpdateUserRequest mirrors the fields needed for update user validation.
// Absent fields are nil.
type UpdateUserRequest struct {
	FirstName *string
	LastName  *string
	Email     *string
	Role      *string
	Phone     *string
	Address   *string
}

// ValidateUpdateUserRequest validates the fields of an update user request.
func ValidateUpdateUserRequest(req UpdateUserRequest) []FieldError {
	var errs []FieldError

	errs = optionalName(errs, "firstName", req.FirstName)
	errs = optionalName(errs, "lastName", req.LastName)
	if req.Email != nil {
		errs = requireEmail(errs, "email", *req.Email)
	}
	errs = role(errs, req.Role)
	errs = contact(errs, req.Phone, req.Address)

	return errs
}

// UpdateProfileRequest mirrors the self-service profile fields.
type UpdateProfileRequest struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	Address   *string
}

// ValidateUpdateProfileRequest validates the fields of a profile update.
func ValidateUpdateProfileRequest(req UpdateProfileRequest) []FieldError {
	var errs []FieldError

	errs = optionalName(errs, "firstName", req.FirstName)
	errs = optionalName(errs, "lastName", req.LastName)
	if req.Email != nil {
		errs = requireEmail(errs, "email", *req.Email)
	}
	errs = contact(errs, req.Phone, req.Address)

	return errs
}

func role(errs []FieldError, value *string) []FieldError {
	if value == nil {
		return errs
	}
	if !auth.Role(*value).Valid() {
		return append(errs, FieldError{Field: "role", Message: `role must be "superadmin", "admin" or "user"`})
	}
	return errs
}

func contact(errs []FieldError, phone, address *string) []FieldError {
	if phone != nil && len(*phone) > 64 {
		errs = append(errs, FieldError{Field: "phone", Message: "phone must be at most 64 characters"})
	}
	if address != nil && len(*address) > 1024 {
		errs = append(errs, FieldError{Field: "address", Message: "address must be at most 1024 characters"})
	}
	return errs
}
