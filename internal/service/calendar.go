package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/EpicMandM/station-booking/internal/models"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type CalendarService struct {
	srv    *calendar.Service
	config CalendarConfig
}

func NewCalendarService(ctx context.Context, config CalendarConfig) (*CalendarService, error) {
	tokenJSON, err := config.LoadServiceAccountToken()
	if err != nil {
		return nil, err
	}
	return newCalendarService(ctx, config, option.WithAuthCredentialsJSON(option.ServiceAccount, tokenJSON))
}

func newCalendarService(ctx context.Context, config CalendarConfig, opts ...option.ClientOption) (*CalendarService, error) {
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &CalendarService{srv: srv, config: config}, nil
}

// InsertEvent adds ev to the configured calendar.
func (s *CalendarService) InsertEvent(ctx context.Context, ev *calendar.Event) error {
	_, err := s.srv.Events.Insert(s.config.CalendarID, ev).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to insert calendar event %s: %w", ev.Id, err)
	}
	return nil
}

// DeleteEvent removes an event. Events that are already gone are not an error.
func (s *CalendarService) DeleteEvent(ctx context.Context, eventID string) error {
	err := s.srv.Events.Delete(s.config.CalendarID, eventID).Context(ctx).Do()
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete calendar event %s: %w", eventID, err)
	}
	return nil
}

// EventID derives a calendar event id from a reservation id. Calendar ids
// must use base32hex characters (a-v, 0-9) and be at least five long.
func EventID(reservationID int64) string {
	return fmt.Sprintf("resv%08d", reservationID)
}

// ReservationEvent renders an accepted reservation as a calendar event.
func ReservationEvent(r *models.Reservation) *calendar.Event {
	return &calendar.Event{
		Id:          EventID(r.ID),
		Summary:     fmt.Sprintf("Charging at %s (%s)", r.StationID, r.RequesterID),
		Description: fmt.Sprintf("Reservation %d, rate %.2f per minute", r.ID, r.RateSnapshot),
		Start:       &calendar.EventDateTime{DateTime: r.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: r.End.Format(time.RFC3339)},
	}
}
