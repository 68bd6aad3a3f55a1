package validation

// CreateApplicationRequest mirrors the fields needed for create application validation.
type CreateApplicationRequest struct {
	Name        string
	Description *string
	TenantID    *string
}

// ValidateCreateApplicationRequest validates the fields of a create application request.
func ValidateCreateApplicationRequest(req CreateApplicationRequest) []FieldError {
	var errs []FieldError

	errs = requireName(errs, "name", req.Name)
	errs = description(errs, req.Description)
	errs = optionalUUID(errs, "tenantId", req.TenantID)

	return errs
}

// UpdateApplicationRequest mirrors the fields needed for update application validation.
type UpdateApplicationRequest struct {
	Name        *string
	Description *string
}

// ValidateUpdateApplicationRequest validates the fields of an update application request.
func ValidateUpdateApplicationRequest(req UpdateApplicationRequest) []FieldError {
	var errs []FieldError

	errs = optionalName(errs, "name", req.Name)
	errs = description(errs, req.Description)

	return errs
}

// ValidateAssignRequest validates the email of an assignment request.
func ValidateAssignRequest(email string) []FieldError {
	return requireEmail(nil, "email", email)
}

func description(errs []FieldError, value *string) []FieldError {
	if value != nil && len(*value) > 4096 {
		return append(errs, FieldError{Field: "description", Message: "description must be at most 4096 characters"})
	}
	return errs
}
