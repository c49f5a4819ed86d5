package models

import "fmt"

// StationStatus is the operational status of a charging station.
type StationStatus string

const (
	StationAvailable    StationStatus = "AVAILABLE"
	StationOutOfService StationStatus = "OUT_OF_SERVICE"
	StationMaintenance  StationStatus = "MAINTENANCE"
	StationOccupied     StationStatus = "OCCUPIED"
)

// Bookable reports whether new reservations may be admitted for a station in this status.
// OCCUPIED only describes the current moment; future slots stay bookable.
func (s StationStatus) Bookable() bool {
	return s == StationAvailable || s == StationOccupied
}

// ParseStationStatus converts a string to a StationStatus.
func ParseStationStatus(s string) (StationStatus, error) {
	switch st := StationStatus(s); st {
	case StationAvailable, StationOutOfService, StationMaintenance, StationOccupied:
		return st, nil
	}
	return "", fmt.Errorf("invalid station status: %q", s)
}

// Station is a bookable charging station.
type Station struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Status        StationStatus `json:"status"`
	OwnerID       string        `json:"owner_id"`
	RatePerMinute float64       `json:"rate_per_minute"`
}
