package model

// Role of a requesting principal, resolved by the auth collaborator.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Principal identifies the authenticated caller of a booking operation.
type Principal struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the principal bypasses per-user booking caps
// and ownership checks.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
