package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/EpicMandM/station-booking/internal/models"
)

// ActiveReservationFinder returns the reservations of a station that hold their slot.
type ActiveReservationFinder interface {
	FindActiveByStation(ctx context.Context, stationID string) ([]*models.Reservation, error)
}

// ConflictDetector finds active reservations overlapping a candidate interval.
type ConflictDetector struct {
	Reservations ActiveReservationFinder
}

// FindConflicts returns every active reservation on stationID that overlaps
// [start, end). excludeID removes one reservation from the candidates so a
// booking can be moved without conflicting with itself; 0 excludes nothing.
func (d *ConflictDetector) FindConflicts(ctx context.Context, stationID string, start, end time.Time, excludeID int64) ([]*models.Reservation, error) {
	existing, err := d.Reservations.FindActiveByStation(ctx, stationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active reservations for station %s: %w", stationID, err)
	}
	return FilterConflicts(existing, start, end, excludeID), nil
}

// FilterConflicts is the in-memory part of FindConflicts.
func FilterConflicts(existing []*models.Reservation, start, end time.Time, excludeID int64) []*models.Reservation {
	var conflicts []*models.Reservation
	for _, r := range existing {
		if excludeID != 0 && r.ID == excludeID {
			continue
		}
		if !r.State.Active() {
			continue
		}
		if Overlaps(start, end, r.Start, r.End) {
			conflicts = append(conflicts, r)
		}
	}
	return conflicts
}

// Overlaps reports whether half-open intervals [s1,e1) and [s2,e2) intersect.
// Touching endpoints do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// ConflictIDs extracts reservation identifiers for error reporting.
func ConflictIDs(conflicts []*models.Reservation) []int64 {
	ids := make([]int64, 0, len(conflicts))
	for _, r := range conflicts {
		ids = append(ids, r.ID)
	}
	return ids
}
