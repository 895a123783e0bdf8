package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrEventGone is returned by DeleteEvent when the event was already deleted.
var ErrEventGone = errors.New("event already deleted")

// pageSize is the number of events requested per list call.
const pageSize = 200

// Client is a wrapper around the Google Calendar API service.
type Client struct {
	service *calendar.Service
}

// NewClient creates a new Google Calendar API client using the provided HTTP client.
// Extra options are appended after the HTTP client, e.g. a test endpoint.
func NewClient(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &Client{service: service}, nil
}

// ListEvents returns the events matching the free-text query between timeMin and timeMax.
// Recurring events are expanded and results are ordered by start time.
func (c *Client) ListEvents(ctx context.Context, calendarID, query string, timeMin, timeMax time.Time) ([]*calendar.Event, error) {
	var events []*calendar.Event

	err := c.service.Events.List(calendarID).
		Q(query).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		MaxResults(pageSize).
		SingleEvents(true). // Expand recurring events
		OrderBy("startTime").
		Pages(ctx, func(page *calendar.Events) error {
			events = append(events, page.Items...)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return events, nil
}

// InsertEvent inserts a new event into a calendar and returns the created event.
func (c *Client) InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	created, err := c.service.Events.Insert(calendarID, event).
		SendUpdates("none"). // Disable notifications
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	return created, nil
}

// DeleteEvent deletes an event from a calendar.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	err := c.service.Events.Delete(calendarID, eventID).
		SendUpdates("none"). // Disable notifications
		Context(ctx).
		Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusGone {
			return fmt.Errorf("%w: %s", ErrEventGone, eventID)
		}
		return fmt.Errorf("failed to delete event: %w", err)
	}

	return nil
}
