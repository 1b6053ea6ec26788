package model

// Identity is the point-in-time claim set resolved from a credential token.
// It is what the lifecycle services authorize against; it is not re-checked
// against the user store on each call.
type Identity struct {
	UserID     string
	Role       string
	Department string
	Name       string
}

// IsAdmin reports whether the identity carries the admin role
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
