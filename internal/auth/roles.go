package auth

import "strings"

// Role is an organization membership role. The set is closed.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// AllRoles lists every role in descending privilege order.
var AllRoles = []Role{RoleOwner, RoleAdmin, RoleMember}

// ParseRole normalizes free-form input into a Role. It is total: input is
// trimmed and case-folded, and anything unrecognized becomes RoleMember.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleOwner:
		return RoleOwner
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleMember
	}
}

// IsOwner reports whether r is the owner role.
func (r Role) IsOwner() bool {
	return r == RoleOwner
}

// CanManage reports whether r may manage invitations and members.
func (r Role) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}
