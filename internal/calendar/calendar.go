package calendar

import (
	"context"
	"time"

	"google.golang.org/api/calendar/v3"
)

// CalendarClient is the set of calendar operations the sync needs.
type CalendarClient interface {
	ListEvents(ctx context.Context, calendarID, query string, timeMin, timeMax time.Time) ([]*calendar.Event, error)
	InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}
