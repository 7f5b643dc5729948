package enums

import "strings"

// Role is the coarse authorization level carried in access tokens.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

var roles = newValueSet("role", RoleUser, RoleAdmin)

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool { return roles.has(r) }

// ParseRole ignores case and surrounding space, so tokens minted with "Admin"
// still resolve.
func ParseRole(value string) (Role, error) {
	return roles.parse(strings.ToLower(strings.TrimSpace(value)))
}
