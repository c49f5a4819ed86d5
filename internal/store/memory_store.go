package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/EpicMandM/station-booking/internal/models"
)

// MemoryStore keeps stations and reservations in process memory.
// Returned values are copies; callers never share state with the store.
type MemoryStore struct {
	mu           sync.RWMutex
	stations     map[string]models.Station
	reservations map[int64]models.Reservation
	nextID       int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stations:     make(map[string]models.Station),
		reservations: make(map[int64]models.Reservation),
	}
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) GetStation(_ context.Context, id string) (*models.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &st, nil
}

func (s *MemoryStore) SaveStation(_ context.Context, st *models.Station) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stations[st.ID] = *st
	return nil
}

func (s *MemoryStore) ListStations(_ context.Context) ([]*models.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Station, 0, len(s.stations))
	for _, st := range s.stations {
		st := st
		out = append(out, &st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetReservation(_ context.Context, id int64) (*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) FindActiveByStation(_ context.Context, stationID string) ([]*models.Reservation, error) {
	return s.filter(func(r *models.Reservation) bool {
		return r.StationID == stationID && r.State.Active()
	}), nil
}

func (s *MemoryStore) ListByRequester(_ context.Context, requesterID string) ([]*models.Reservation, error) {
	return s.filter(func(r *models.Reservation) bool { return r.RequesterID == requesterID }), nil
}

func (s *MemoryStore) ListByStation(_ context.Context, stationID string) ([]*models.Reservation, error) {
	return s.filter(func(r *models.Reservation) bool { return r.StationID == stationID }), nil
}

func (s *MemoryStore) ListDue(_ context.Context, now time.Time) ([]*models.Reservation, error) {
	due := s.filter(func(r *models.Reservation) bool {
		switch r.State {
		case models.StateAccepted:
			return !r.Start.After(now)
		case models.StateInProgress:
			return !r.End.After(now)
		}
		return false
	})
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

func (s *MemoryStore) SaveReservation(_ context.Context, r *models.Reservation) (*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := *r
	if r.ID != 0 {
		current, ok := s.reservations[r.ID]
		if !ok {
			return nil, ErrNotFound
		}
		if current.Version != r.Version {
			return nil, ErrVersionConflict
		}
	}
	if out.State.Active() && s.overlapsActive(&out) {
		return nil, ErrSlotTaken
	}
	if r.ID == 0 {
		s.nextID++
		out.ID = s.nextID
		out.Version = 1
		s.reservations[out.ID] = out
		return &out, nil
	}

	out.Version = r.Version + 1
	s.reservations[out.ID] = out
	return &out, nil
}

// overlapsActive must be called with mu held.
func (s *MemoryStore) overlapsActive(r *models.Reservation) bool {
	for id, other := range s.reservations {
		if id == r.ID || other.StationID != r.StationID || !other.State.Active() {
			continue
		}
		if other.Start.Before(r.End) && r.Start.Before(other.End) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) filter(keep func(r *models.Reservation) bool) []*models.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Reservation
	for _, r := range s.reservations {
		r := r
		if keep(&r) {
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
