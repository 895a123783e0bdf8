package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/calendar/v3"

	calclient "github.com/beekhof/training-sync/internal/calendar"
	"github.com/beekhof/training-sync/internal/config"
	"github.com/beekhof/training-sync/internal/plan"
)

// Result counts what a sync run did.
type Result struct {
	Listed       int
	Deleted      int
	DeleteFailed int
	Inserted     int
	InsertFailed int
}

// Failed returns the number of calendar calls that failed.
func (r Result) Failed() int {
	return r.DeleteFailed + r.InsertFailed
}

// Syncer replaces the training events in a calendar with a freshly extracted plan.
type Syncer struct {
	client  calclient.CalendarClient
	config  *config.Config
	limiter *rate.Limiter
	verbose bool
}

// NewSyncer creates a new Syncer. Calendar calls are spaced at least
// cfg.CallDelay apart.
func NewSyncer(client calclient.CalendarClient, cfg *config.Config, verbose bool) *Syncer {
	limit := rate.Inf
	if cfg.CallDelay != nil && cfg.CallDelay.Duration > 0 {
		limit = rate.Every(cfg.CallDelay.Duration)
	}

	return &Syncer{
		client:  client,
		config:  cfg,
		limiter: rate.NewLimiter(limit, 1),
		verbose: verbose,
	}
}

// prepareEvent builds the calendar resource for a workout.
func (s *Syncer) prepareEvent(workout plan.WorkoutEvent) *calendar.Event {
	timeZone := ""
	if loc := workout.Start.Location(); loc != time.Local && loc.String() != "Local" {
		timeZone = loc.String()
	}

	return &calendar.Event{
		Summary:     workout.Summary,
		Description: workout.Description,
		Start: &calendar.EventDateTime{
			DateTime: workout.Start.Format(time.RFC3339),
			TimeZone: timeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: workout.End.Format(time.RFC3339),
			TimeZone: timeZone,
		},
		Reminders: &calendar.EventReminders{
			UseDefault: true,
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				"trainingKind":      workout.Kind.String(),
				"trainingIntensity": workout.Intensity,
			},
		},
	}
}

// Sync deletes the calendar's existing training events in the plan's date
// range and then inserts the plan's events.
//
// A failure to list existing events aborts the run before anything is
// deleted or inserted. Individual delete and insert failures are logged and
// counted, and the run carries on.
func (s *Syncer) Sync(ctx context.Context, events []plan.WorkoutEvent) (Result, error) {
	var result Result

	if len(events) == 0 {
		log.Println("No workouts in the plan, nothing to sync.")
		return result, nil
	}

	calendarID := s.config.CalendarID
	timeMin := events[0].Start
	timeMax := events[len(events)-1].End

	log.Printf("Starting sync of %d workouts (%s to %s)...",
		len(events), timeMin.Format("2006-01-02"), timeMax.Format("2006-01-02"))

	existing, err := s.client.ListEvents(ctx, calendarID, s.config.Summary, timeMin, timeMax)
	if err != nil {
		return result, fmt.Errorf("failed to find existing training events: %w", err)
	}
	result.Listed = len(existing)
	log.Printf("Found %d existing training events to remove", len(existing))

	for _, event := range existing {
		if err := s.limiter.Wait(ctx); err != nil {
			return result, err
		}

		err := s.client.DeleteEvent(ctx, calendarID, event.Id)
		switch {
		case err == nil:
			result.Deleted++
			log.Printf("Event removed: %s", event.Id)
		case errors.Is(err, calclient.ErrEventGone):
			result.Deleted++
			log.Printf("Event already removed: %s", event.Id)
		default:
			result.DeleteFailed++
			log.Printf("Warning: failed to delete event %s (summary: %v): %v", event.Id, event.Summary, err)
		}
	}

	for _, workout := range events {
		if err := s.limiter.Wait(ctx); err != nil {
			return result, err
		}

		created, err := s.client.InsertEvent(ctx, calendarID, s.prepareEvent(workout))
		if err != nil {
			result.InsertFailed++
			log.Printf("Warning: failed to insert event on %s (%v): %v", workout.Start.Format("2006-01-02"), workout.Description, err)
			continue
		}

		result.Inserted++
		if created != nil && created.HtmlLink != "" {
			log.Printf("New event created: %s", created.HtmlLink)
		} else {
			log.Printf("New event created on %s", workout.Start.Format("2006-01-02"))
		}
		if s.verbose {
			log.Printf("DEBUG: %s %s", workout.Start.Format(time.RFC3339), workout.Description)
		}
	}

	log.Printf("Sync complete: %d deleted (%d failed), %d inserted (%d failed).",
		result.Deleted, result.DeleteFailed, result.Inserted, result.InsertFailed)
	return result, nil
}
