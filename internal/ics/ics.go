// Package ics writes a training plan as an iCalendar file that any calendar
// application can import.
package ics

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/beekhof/training-sync/internal/plan"
)

const productID = "-//Training Sync//EN"

// ErrNoEvents is returned when there is nothing to export.
var ErrNoEvents = errors.New("no events to export")

// EventUID returns a stable UID for a workout, so importing the same plan twice
// updates events instead of duplicating them.
func EventUID(ev plan.WorkoutEvent) string {
	name := ev.Summary + "|" + ev.Start.UTC().Format(time.RFC3339)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String() + "@training-sync"
}

// Calendar converts the workouts into an iCalendar VCALENDAR.
func Calendar(events []plan.WorkoutEvent, now time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, ev := range events {
		vevent := ical.NewEvent()
		vevent.Props.SetText(ical.PropUID, EventUID(ev))
		vevent.Props.SetText(ical.PropSummary, ev.Summary)
		if ev.Description != "" {
			vevent.Props.SetText(ical.PropDescription, ev.Description)
		}
		if ev.Intensity != "" && ev.Kind != plan.Crosstrain {
			vevent.Props.SetText(ical.PropCategories, ev.Intensity)
		}
		vevent.Props.SetDateTime(ical.PropDateTimeStart, zoned(ev.Start))
		vevent.Props.SetDateTime(ical.PropDateTimeEnd, zoned(ev.End))
		vevent.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())

		cal.Children = append(cal.Children, vevent.Component)
	}

	return cal
}

// zoned returns t unchanged when its location has an IANA name, which becomes
// the TZID. Local times have no such name and are written in UTC.
func zoned(t time.Time) time.Time {
	if loc := t.Location(); loc == time.Local || loc.String() == "Local" {
		return t.UTC()
	}
	return t
}

// Encode writes the workouts to w in iCalendar format.
func Encode(w io.Writer, events []plan.WorkoutEvent) error {
	if len(events) == 0 {
		return ErrNoEvents
	}

	if err := ical.NewEncoder(w).Encode(Calendar(events, time.Now())); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

// WriteFile writes the workouts to an .ics file at path.
func WriteFile(path string, events []plan.WorkoutEvent) error {
	if len(events) == 0 {
		return ErrNoEvents
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := Encode(f, events); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
