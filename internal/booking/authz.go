package booking

import (
	"fmt"

	"github.com/EpicMandM/station-booking/internal/models"
)

// Role is the capacity in which an actor acts on a reservation.
type Role string

const (
	RoleRequester Role = "requester"
	RoleOwner     Role = "owner"
	// RoleSystem is used by the lifecycle sweeper; it is never accepted from clients.
	RoleSystem Role = "system"
)

// Actor is the identity performing an action.
type Actor struct {
	ID   string
	Role Role
}

// SystemActor drives time-based transitions.
var SystemActor = Actor{ID: "system", Role: RoleSystem}

// ParseRole converts a client-supplied role. The system role is rejected.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleRequester, RoleOwner:
		return r, nil
	}
	return "", fmt.Errorf("invalid actor role: %q", s)
}

var permittedRoles = map[Action][]Role{
	ActionAccept:   {RoleOwner},
	ActionRefuse:   {RoleOwner},
	ActionCancel:   {RoleRequester, RoleOwner},
	ActionUpdate:   {RoleRequester},
	ActionStart:    {RoleOwner, RoleSystem},
	ActionComplete: {RoleOwner, RoleSystem},
	ActionView:     {RoleRequester, RoleOwner},
}

// Authorize decides whether actor may perform action on res.
func Authorize(res *models.Reservation, actor Actor, action Action) error {
	if res.RequesterID == "" || res.OwnerID == "" {
		return &AuthorizationError{
			Kind:    MissingAssociation,
			Action:  action,
			ActorID: actor.ID,
			Reason:  fmt.Sprintf("reservation %d has no associated requester or station owner", res.ID),
		}
	}

	if !roleAllowed(action, actor.Role) {
		return &AuthorizationError{
			Kind:    ActorMismatch,
			Action:  action,
			ActorID: actor.ID,
			Reason:  fmt.Sprintf("role %q may not %s", actor.Role, action),
		}
	}

	var expected string
	switch actor.Role {
	case RoleRequester:
		expected = res.RequesterID
	case RoleOwner:
		expected = res.OwnerID
	case RoleSystem:
		return nil
	}

	if actor.ID == "" || actor.ID != expected {
		return &AuthorizationError{
			Kind:    ActorMismatch,
			Action:  action,
			ActorID: actor.ID,
			Reason:  fmt.Sprintf("actor %q is not the %s of reservation %d", actor.ID, actor.Role, res.ID),
		}
	}
	return nil
}

func roleAllowed(action Action, role Role) bool {
	for _, r := range permittedRoles[action] {
		if r == role {
			return true
		}
	}
	return false
}
