package access

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"project-workspace-api/internal/domain"
)

// Filter is a row-level predicate generator bound to one caller.
// The zero value is unrestricted and is only handed to internal actors.
type Filter struct {
	userID     uuid.UUID
	restricted bool
}

// ForUser returns the filter for requests made by userID.
func ForUser(userID uuid.UUID) Filter {
	return Filter{userID: userID, restricted: true}
}

// System returns a filter that lets internal actors (automation, jobs) see every row.
func System() Filter {
	return Filter{}
}

func (f Filter) IsSystem() bool {
	return !f.restricted
}

func (f Filter) UserID() uuid.UUID {
	return f.userID
}

// Projects restricts column (a project id column) to projects where the caller
// holds at least min.
func (f Filter) Projects(column string, min domain.Role) func(*gorm.DB) *gorm.DB {
	return f.membership(column, "project_members", "project_id", domain.ScopeProject, min)
}

// Organizations restricts column to organizations where the caller holds at least min.
func (f Filter) Organizations(column string, min domain.Role) func(*gorm.DB) *gorm.DB {
	return f.membership(column, "organization_members", "org_id", domain.ScopeOrganization, min)
}

// Teams restricts column to teams where the caller holds at least min.
func (f Filter) Teams(column string, min domain.Role) func(*gorm.DB) *gorm.DB {
	return f.membership(column, "team_members", "team_id", domain.ScopeTeam, min)
}

// Readable restricts column to projects the caller may read.
func (f Filter) Readable(column string) func(*gorm.DB) *gorm.DB {
	min, _ := RequiredRole(domain.ScopeProject, ActionRead)
	return f.Projects(column, min)
}

// Writable restricts column to projects the caller may mutate.
func (f Filter) Writable(column string) func(*gorm.DB) *gorm.DB {
	min, _ := RequiredRole(domain.ScopeProject, ActionMutate)
	return f.Projects(column, min)
}

func (f Filter) membership(column, table, key string, scope domain.Scope, min domain.Role) func(*gorm.DB) *gorm.DB {
	if !f.restricted {
		return func(db *gorm.DB) *gorm.DB { return db }
	}
	roles := RolesAtLeast(scope, min)
	userID := f.userID
	return func(db *gorm.DB) *gorm.DB {
		sub := db.Session(&gorm.Session{NewDB: true}).
			Table(table).
			Select(key).
			Where("user_id = ? AND role IN ?", userID, roles)
		return db.Where(column+" IN (?)", sub)
	}
}

// RolesAtLeast lists the roles valid at scope that include min.
func RolesAtLeast(scope domain.Scope, min domain.Role) []string {
	var out []string
	for _, r := range []domain.Role{domain.RoleOwner, domain.RoleAdmin, domain.RoleMember, domain.RoleViewer} {
		if r.ValidFor(scope) && r.AtLeast(min) {
			out = append(out, string(r))
		}
	}
	return out
}
