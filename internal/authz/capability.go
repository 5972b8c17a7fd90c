package authz

import (
	"net/http"
	"strings"
)

type Scope string

const (
	ScopeNone Scope = "none"
	ScopeOwn  Scope = "own"
	ScopeAll  Scope = "all"
)

type Decision struct {
	Allowed bool
	Scope   Scope
	// EmployeeID bounds "own"-scoped access to the caller's own calendar.
	EmployeeID string
}

// Identity is what the gateway resolved about the caller and forwarded as
// headers.
type Identity struct {
	OrgID  string
	UserID string
	Role   string
}

const (
	RoleOwner    = "owner"
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

func IdentityFromRequest(r *http.Request) Identity {
	return Identity{
		OrgID:  strings.TrimSpace(r.Header.Get("X-Org-Id")),
		UserID: strings.TrimSpace(r.Header.Get("X-User-Id")),
		Role:   strings.ToLower(strings.TrimSpace(r.Header.Get("X-Role"))),
	}
}

// Provider answers capability checks. One provider serves every feature so
// handlers never re-implement role mapping.
type Provider interface {
	Check(id Identity, feature, action string) Decision
}

// RoleProvider derives capabilities from the gateway-resolved role:
// owner/admin act org-wide, employees on their own calendar, everyone else
// not at all.
type RoleProvider struct{}

func NewRoleProvider() *RoleProvider { return &RoleProvider{} }

func (p *RoleProvider) Check(id Identity, feature, action string) Decision {
	if id.OrgID == "" {
		return Decision{Scope: ScopeNone}
	}
	switch id.Role {
	case RoleOwner, RoleAdmin:
		return Decision{Allowed: true, Scope: ScopeAll}
	case RoleEmployee:
		// Employees may not administer schedules or the directory.
		if feature == FeatureSchedule && action != ActionRead {
			return Decision{Scope: ScopeNone}
		}
		return Decision{Allowed: true, Scope: ScopeOwn, EmployeeID: id.UserID}
	}
	return Decision{Scope: ScopeNone}
}

const (
	FeatureAppointments = "appointments"
	FeatureSchedule     = "schedule"

	ActionRead  = "read"
	ActionWrite = "write"
)
