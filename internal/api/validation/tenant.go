package validation

// ValidateTenantName validates the name of a tenant on create and update.
func ValidateTenantName(name string) []FieldError {
	return requireName(nil, "name", name)
}
