package models

// Actor is the authenticated caller as supplied by the identity provider.
type Actor struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

type Role string

const (
	RoleDonor   Role = "donor"
	RoleCharity Role = "charity"
	RoleAdmin   Role = "admin"
)

func (a Actor) Is(role Role) bool {
	return a.Role == role
}
