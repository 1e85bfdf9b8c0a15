package auth

// Role is a membership role within an organization. Roles are ordered:
// viewer < editor < admin < owner.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

var roleRank = map[Role]int{
	RoleViewer: 1,
	RoleEditor: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min] && roleRank[r] > 0
}
