package store

import (
	"context"
	"errors"
	"time"

	"github.com/EpicMandM/station-booking/internal/models"
)

var (
	// ErrNotFound is returned when a station or reservation does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when a reservation changed since it was read.
	ErrVersionConflict = errors.New("reservation was modified concurrently")
	// ErrSlotTaken is returned when saving an active reservation would overlap
	// another active reservation on the same station.
	ErrSlotTaken = errors.New("time slot already taken")
)

// StationStore is the read-mostly registry of bookable stations.
type StationStore interface {
	GetStation(ctx context.Context, id string) (*models.Station, error)
	SaveStation(ctx context.Context, station *models.Station) error
	ListStations(ctx context.Context) ([]*models.Station, error)
}

// ReservationStore persists reservations. Reservations are never deleted.
type ReservationStore interface {
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	// FindActiveByStation returns PENDING, ACCEPTED and IN_PROGRESS reservations only.
	FindActiveByStation(ctx context.Context, stationID string) ([]*models.Reservation, error)
	// SaveReservation inserts when ID is 0, assigning the next ID and Version 1.
	// Otherwise it updates the row only if the stored Version matches and
	// returns the reservation with Version incremented. An active reservation
	// that would overlap another active one on its station is refused with
	// ErrSlotTaken.
	SaveReservation(ctx context.Context, r *models.Reservation) (*models.Reservation, error)
	ListByRequester(ctx context.Context, requesterID string) ([]*models.Reservation, error)
	ListByStation(ctx context.Context, stationID string) ([]*models.Reservation, error)
	// ListDue returns ACCEPTED reservations whose start is at or before now and
	// IN_PROGRESS reservations whose end is at or before now.
	ListDue(ctx context.Context, now time.Time) ([]*models.Reservation, error)
}

// Store defines the interface for database operations.
type Store interface {
	StationStore
	ReservationStore
	Close() error
}

// SeedStations upserts stations into the registry.
func SeedStations(ctx context.Context, s StationStore, stations []*models.Station) error {
	for _, st := range stations {
		if err := s.SaveStation(ctx, st); err != nil {
			return err
		}
	}
	return nil
}
