package booking

import (
	"fmt"
	"strings"

	"github.com/EpicMandM/station-booking/internal/models"
)

// ValidationError reports malformed or semantically invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ConflictError reports that a requested interval overlaps active bookings.
type ConflictError struct {
	StationID      string
	ConflictingIDs []int64
}

func (e *ConflictError) Error() string {
	if len(e.ConflictingIDs) == 0 {
		return "overlapping booking exists"
	}
	ids := make([]string, len(e.ConflictingIDs))
	for i, id := range e.ConflictingIDs {
		ids[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("overlapping booking exists: %s", strings.Join(ids, ","))
}

// UnavailableResourceError reports a station that is out of service or under maintenance.
type UnavailableResourceError struct {
	StationID string
	Status    models.StationStatus
}

func (e *UnavailableResourceError) Error() string {
	switch e.Status {
	case models.StationMaintenance:
		return fmt.Sprintf("station %s is under maintenance", e.StationID)
	case models.StationOutOfService:
		return fmt.Sprintf("station %s is out of service", e.StationID)
	}
	return fmt.Sprintf("station %s is unavailable (%s)", e.StationID, e.Status)
}

// NotFoundError reports a missing station or reservation.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// AuthorizationKind separates malformed reservations from wrong identities.
type AuthorizationKind string

const (
	MissingAssociation AuthorizationKind = "missing_association"
	ActorMismatch      AuthorizationKind = "actor_mismatch"
)

// AuthorizationError reports an actor that may not perform an action.
type AuthorizationError struct {
	Kind    AuthorizationKind
	Action  Action
	ActorID string
	Reason  string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not authorized to %s: %s", e.Action, e.Reason)
}

// IllegalStateTransitionError reports an action that is not valid from the current state.
type IllegalStateTransitionError struct {
	State  models.ReservationState
	Action Action
}

func (e *IllegalStateTransitionError) Error() string {
	return fmt.Sprintf("illegal transition: cannot %s a reservation in state %s", e.Action, e.State)
}

// Errors is a batch of admission errors reported together so a client can fix
// every problem in one round trip. errors.As and errors.Is see each member.
type Errors []error

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e Errors) Unwrap() []error {
	return e
}

// Add appends err, flattening nested batches. A nil err is ignored.
func (e Errors) Add(err error) Errors {
	if err == nil {
		return e
	}
	if batch, ok := err.(Errors); ok {
		return append(e, batch...)
	}
	return append(e, err)
}

// Err returns nil for an empty batch.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
