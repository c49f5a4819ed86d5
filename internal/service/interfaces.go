package service

import (
	"context"

	"google.golang.org/api/calendar/v3"
)

// CalendarClient abstracts Google Calendar operations for testability.
type CalendarClient interface {
	InsertEvent(ctx context.Context, ev *calendar.Event) error
	DeleteEvent(ctx context.Context, eventID string) error
}

var _ CalendarClient = (*CalendarService)(nil)
