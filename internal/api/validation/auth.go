package validation

// RegisterRequest mirrors the fields needed for register validation.
type RegisterRequest struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	TenantID  *string
}

// ValidateRegisterRequest validates the fields of a register request.
func ValidateRegisterRequest(req RegisterRequest) []FieldError {
	var errs []FieldError

	errs = requireName(errs, "firstName", req.FirstName)
	errs = requireName(errs, "lastName", req.LastName)
	errs = requireEmail(errs, "email", req.Email)
	errs = password(errs, "password", req.Password)
	errs = optionalUUID(errs, "tenantId", req.TenantID)

	return errs
}

// LoginRequest mirrors the fields needed for login validation.
type LoginRequest struct {
	Email    string
	Password string
}

// ValidateLoginRequest validates the fields of a login request. Password
// strength is not checked here; a wrong password is a 401, not a 400.
func ValidateLoginRequest(req LoginRequest) []FieldError {
	var errs []FieldError

	errs = requireEmail(errs, "email", req.Email)
	if req.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password is required"})
	}

	return errs
}

// ValidateForgotPasswordRequest validates the email of a password reset request.
func ValidateForgotPasswordRequest(email string) []FieldError {
	return requireEmail(nil, "email", email)
}
