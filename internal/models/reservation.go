package models

import "time"

// ReservationState is a stage in the reservation lifecycle.
type ReservationState string

const (
	StatePending    ReservationState = "PENDING"
	StateAccepted   ReservationState = "ACCEPTED"
	StateRefused    ReservationState = "REFUSED"
	StateInProgress ReservationState = "IN_PROGRESS"
	StateCompleted  ReservationState = "COMPLETED"
	StateCancelled  ReservationState = "CANCELLED"
)

// ActiveStates lists the states that participate in conflict checks.
var ActiveStates = []ReservationState{StatePending, StateAccepted, StateInProgress}

// Active reports whether a reservation in this state holds its slot on the station timeline.
func (s ReservationState) Active() bool {
	for _, active := range ActiveStates {
		if s == active {
			return true
		}
	}
	return false
}

// Reservation is a time-bounded claim on a station by a requester.
type Reservation struct {
	ID           int64            `json:"id"`
	RequesterID  string           `json:"requester_id"`
	StationID    string           `json:"station_id"`
	OwnerID      string           `json:"owner_id"`
	Start        time.Time        `json:"start"`
	End          time.Time        `json:"end"`
	State        ReservationState `json:"state"`
	RateSnapshot float64          `json:"rate_snapshot"`
	TotalPrice   *float64         `json:"total_price,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	ResolvedAt   *time.Time       `json:"resolved_at,omitempty"`
	Version      int64            `json:"version"`
}
