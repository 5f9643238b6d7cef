package domain

// Role is a membership role. The same names are used at every scope;
// which roles a scope accepts is decided by ValidFor.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// Scope identifies the tier a membership belongs to.
type Scope string

const (
	ScopeOrganization Scope = "organization"
	ScopeTeam         Scope = "team"
	ScopeProject      Scope = "project"
)

// Rank orders roles; a higher rank includes every permission of a lower one.
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 4
	case RoleAdmin:
		return 3
	case RoleMember:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r includes min.
func (r Role) AtLeast(min Role) bool {
	return r.Rank() > 0 && r.Rank() >= min.Rank()
}

// ValidFor reports whether r may be stored on a membership of the given scope.
func (r Role) ValidFor(scope Scope) bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	case RoleViewer:
		return scope == ScopeProject || scope == ScopeOrganization
	default:
		return false
	}
}
