package domain

// ActorRole is the role an authenticated caller acts under.
type ActorRole string

const (
	RoleSeller     ActorRole = "seller"
	RoleContractor ActorRole = "contractor"
	RoleAdmin      ActorRole = "admin"
	// RoleSystem is used by internal triggers such as the settlement scheduler.
	RoleSystem ActorRole = "system"
)

// SystemActorID identifies writes made by internal triggers.
const SystemActorID = "system"

// Actor is the verified (actorId, role) pair supplied by the auth layer for every call.
type Actor struct {
	ID   string
	Role ActorRole
}

// SystemActor returns the actor used for internally triggered transitions.
func SystemActor() Actor {
	return Actor{ID: SystemActorID, Role: RoleSystem}
}

// IsValid reports whether the role is one the service understands.
func (r ActorRole) IsValid() bool {
	switch r {
	case RoleSeller, RoleContractor, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

func (a Actor) IsAdmin() bool  { return a.Role == RoleAdmin }
func (a Actor) IsSystem() bool { return a.Role == RoleSystem }
