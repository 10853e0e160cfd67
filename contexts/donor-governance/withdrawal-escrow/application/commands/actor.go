package commands

import "strings"

const (
	RoleAdmin  = "admin"
	RoleSystem = "system"
)

// Actor identifies who issues a command. Roles are asserted by the gateway
// in front of this service.
type Actor struct {
	UserID string
	Role   string
}

// SystemActor is used by schedulers and consumers.
var SystemActor = Actor{UserID: "system", Role: RoleSystem}

func (a Actor) IsAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(a.Role), RoleAdmin)
}

func (a Actor) IsSystem() bool {
	return strings.EqualFold(strings.TrimSpace(a.Role), RoleSystem)
}
