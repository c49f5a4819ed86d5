package booking

import (
	"math"
	"time"

	"github.com/EpicMandM/station-booking/internal/models"
)

// Action is an operation an actor requests on a reservation.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionRefuse   Action = "refuse"
	ActionCancel   Action = "cancel"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionUpdate   Action = "update"
	ActionView     Action = "view"
)

// InitialState is the state of every newly admitted reservation.
const InitialState = models.StatePending

// transitions is the only place lifecycle moves are defined.
var transitions = map[models.ReservationState]map[Action]models.ReservationState{
	models.StatePending: {
		ActionAccept: models.StateAccepted,
		ActionRefuse: models.StateRefused,
		ActionCancel: models.StateCancelled,
	},
	models.StateAccepted: {
		ActionStart:  models.StateInProgress,
		ActionCancel: models.StateCancelled,
	},
	models.StateInProgress: {
		ActionComplete: models.StateCompleted,
		ActionCancel:   models.StateCancelled,
	},
}

// Transition returns the state reached by applying action in state from.
func Transition(from models.ReservationState, action Action) (models.ReservationState, error) {
	next, ok := transitions[from][action]
	if !ok {
		return "", &IllegalStateTransitionError{State: from, Action: action}
	}
	return next, nil
}

// Apply runs action against res at time now and returns the updated copy.
// res itself is never modified, so a failed precondition leaves nothing half-applied.
func Apply(res *models.Reservation, action Action, now time.Time) (*models.Reservation, error) {
	next, err := Transition(res.State, action)
	if err != nil {
		return nil, err
	}

	switch action {
	case ActionStart:
		if now.Before(res.Start) {
			return nil, &ValidationError{Field: "start", Message: "reservation has not started yet"}
		}
	case ActionComplete:
		if now.Before(res.End) {
			return nil, &ValidationError{Field: "end", Message: "reservation has not ended yet"}
		}
	}

	out := *res
	out.State = next
	out.UpdatedAt = now

	switch action {
	case ActionAccept, ActionRefuse, ActionCancel:
		resolved := now
		out.ResolvedAt = &resolved
	case ActionComplete:
		price := Price(res.RateSnapshot, res.Start, res.End)
		out.TotalPrice = &price
	}

	return &out, nil
}

// Price charges rate for every started minute of [start, end), rounded to cents.
func Price(ratePerMinute float64, start, end time.Time) float64 {
	minutes := math.Ceil(end.Sub(start).Minutes())
	if minutes < 0 {
		minutes = 0
	}
	return math.Round(ratePerMinute*minutes*100) / 100
}
