// Package access holds the tenancy rules shared by every resource handler:
// which rows a caller may list and which rows it may mutate.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tenantgate/tenantgate/internal/application"
	"github.com/tenantgate/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/internal/tenant"
)

// ErrForbidden is returned when the caller's role or tenant does not permit the operation.
var ErrForbidden = errors.New("forbidden")

// List scopes accepted in the scope query parameter.
const (
	ScopeAll     = "all"
	ScopeManaged = "managed"
	ScopeMine    = "mine"
)

// Policy evaluates tenancy rules against the stores.
type Policy struct {
	users   auth.UserRepository
	apps    application.Repository
	tenants tenant.Repository
}

// NewPolicy creates a Policy.
func NewPolicy(users auth.UserRepository, apps application.Repository, tenants tenant.Repository) *Policy {
	return &Policy{users: users, apps: apps, tenants: tenants}
}

// UserFilter resolves the user listing for scope. An empty scope means "all".
// Superadmins see everything for "all" and their own tenant otherwise; admins
// must ask for "mine".
func (p *Policy) UserFilter(caller *auth.Identity, scope string) (auth.UserFilter, error) {
	if scope == "" {
		scope = ScopeAll
	}
	switch caller.Role {
	case auth.RoleSuperadmin:
		if scope == ScopeAll {
			return auth.UserFilter{}, nil
		}
	case auth.RoleAdmin:
		if scope != ScopeMine {
			return auth.UserFilter{}, ErrForbidden
		}
	default:
		return auth.UserFilter{}, ErrForbidden
	}
	return auth.UserFilter{Scoped: true, TenantID: caller.TenantID}, nil
}

// ApplicationFilter resolves the application listing for scope. Unknown or
// unauthorised scopes fall back to "mine".
func (p *Policy) ApplicationFilter(caller *auth.Identity, scope string) application.Filter {
	switch {
	case scope == ScopeAll && caller.Role == auth.RoleSuperadmin:
		return application.Filter{}
	case scope == ScopeManaged && (caller.Role == auth.RoleAdmin || caller.Role == auth.RoleSuperadmin):
		return application.Filter{Scoped: true, TenantID: caller.TenantID}
	default:
		id := caller.UserID
		return application.Filter{AssignedTo: &id}
	}
}

// CheckUserMutation guards update and delete of a user. Admins may only
// touch users of their own tenant; a miss is ErrForbidden whether or not the
// row exists.
func (p *Policy) CheckUserMutation(ctx context.Context, caller *auth.Identity, userID uuid.UUID) error {
	switch caller.Role {
	case auth.RoleSuperadmin:
		return nil
	case auth.RoleAdmin:
		ok, err := p.users.ExistsInTenant(ctx, userID, caller.TenantID)
		if err != nil {
			return fmt.Errorf("checking user tenant: %w", err)
		}
		if !ok {
			return ErrForbidden
		}
		return nil
	default:
		return ErrForbidden
	}
}

// CheckApplicationMutation guards update and delete of an application, with
// the same rules as CheckUserMutation.
func (p *Policy) CheckApplicationMutation(ctx context.Context, caller *auth.Identity, appID uuid.UUID) error {
	switch caller.Role {
	case auth.RoleSuperadmin:
		return nil
	case auth.RoleAdmin:
		ok, err := p.apps.ExistsInTenant(ctx, appID, caller.TenantID)
		if err != nil {
			return fmt.Errorf("checking application tenant: %w", err)
		}
		if !ok {
			return ErrForbidden
		}
		return nil
	default:
		return ErrForbidden
	}
}

// CheckAssignment guards assigning an application to target. Admins may only
// assign to users of their own tenant.
func (p *Policy) CheckAssignment(caller *auth.Identity, target *auth.User) error {
	switch caller.Role {
	case auth.RoleSuperadmin:
		return nil
	case auth.RoleAdmin:
		if !caller.InTenant(target.TenantID) {
			return ErrForbidden
		}
		return nil
	default:
		return ErrForbidden
	}
}

// ApplicationTenant decides the tenant of a new application. Only a
// superadmin may choose one, and it must exist.
func (p *Policy) ApplicationTenant(ctx context.Context, caller *auth.Identity, requested *uuid.UUID) (*uuid.UUID, error) {
	if caller.Role != auth.RoleSuperadmin || requested == nil {
		return caller.TenantID, nil
	}
	if _, err := p.tenants.GetByID(ctx, *requested); err != nil {
		return nil, err
	}
	return requested, nil
}

// Placement is where a new user lands.
type Placement struct {
	TenantID         *uuid.UUID
	CreatedByAdminID *uuid.UUID
}

// PlaceNewUser decides tenant and creator of a user created by caller.
// Admin-created users always join the admin's tenant. A superadmin may name
// a tenant, or an admin whose tenant the user inherits and who is recorded as
// creator; otherwise the user is unassigned.
func (p *Policy) PlaceNewUser(ctx context.Context, caller *auth.Identity, tenantID, assignedAdminID *uuid.UUID) (Placement, error) {
	creator := caller.UserID

	switch caller.Role {
	case auth.RoleAdmin:
		return Placement{TenantID: caller.TenantID, CreatedByAdminID: &creator}, nil
	case auth.RoleSuperadmin:
	default:
		return Placement{}, ErrForbidden
	}

	if tenantID != nil {
		if _, err := p.tenants.GetByID(ctx, *tenantID); err != nil {
			return Placement{}, err
		}
		placement := Placement{TenantID: tenantID, CreatedByAdminID: &creator}
		if assignedAdminID != nil {
			if _, err := p.users.GetByID(ctx, *assignedAdminID); err != nil {
				return Placement{}, err
			}
			placement.CreatedByAdminID = assignedAdminID
		}
		return placement, nil
	}

	if assignedAdminID != nil {
		admin, err := p.users.GetByID(ctx, *assignedAdminID)
		if err != nil {
			return Placement{}, err
		}
		return Placement{TenantID: admin.TenantID, CreatedByAdminID: &admin.ID}, nil
	}

	return Placement{CreatedByAdminID: &creator}, nil
}
