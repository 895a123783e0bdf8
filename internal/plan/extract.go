// Package plan turns the rows of a marathon training plan worksheet into
// calendar-ready workout events.
package plan

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/beekhof/training-sync/internal/sheet"
)

// Rows of the worksheet that hold training weeks.
const (
	FirstRow = 9
	LastRow  = 27
)

// DefaultSummary is the title given to every workout event. It is also the
// query used to find events from earlier runs.
const DefaultSummary = "Marathon Training"

// ErrBadAnchor is returned when a row's week anchor cannot be read as a date.
var ErrBadAnchor = errors.New("invalid week anchor")

// WorkoutEvent is one day's workout, ready to be written to a calendar.
type WorkoutEvent struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Kind        Kind
	Intensity   string
}

// Extractor reads workout events from a plan worksheet.
type Extractor struct {
	Summary   string
	Location  *time.Location
	StartHour int
	EndHour   int
	Verbose   bool
}

// NewExtractor returns an Extractor with the default 07:00-08:00 slot in the local time zone.
func NewExtractor() *Extractor {
	return &Extractor{
		Summary:   DefaultSummary,
		Location:  time.Local,
		StartHour: 7,
		EndHour:   8,
	}
}

// Extract scans rows FirstRow..LastRow and columns FirstColumn..LastColumn of g
// and returns one event per workout cell, in row then column order.
func (e *Extractor) Extract(g sheet.Grid) ([]WorkoutEvent, error) {
	date1904 := false
	if wb, ok := g.(interface{ Date1904() bool }); ok {
		date1904 = wb.Date1904()
	}

	events := []WorkoutEvent{}
	for row := FirstRow; row <= LastRow; row++ {
		anchorCell, err := g.Cell(row, AnchorColumn)
		if err != nil {
			return nil, err
		}
		if anchorCell.IsBlank() {
			log.Printf("Warning: row %d has no week date, skipping", row)
			continue
		}

		anchor, err := e.weekAnchor(anchorCell, date1904)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		for col := FirstColumn; col <= LastColumn; col++ {
			c, err := g.Cell(row, col)
			if err != nil {
				return nil, err
			}

			kind := Classify(col, c)
			if kind == Skip {
				continue
			}

			intensity := Intensity(c)
			if intensity == UnknownIntensity {
				log.Printf("Warning: row %d column %d has unrecognized fill color %q", row, col, c.Fill)
			}
			if kind == Unlabelled && e.Verbose {
				log.Printf("DEBUG: row %d column %d value %q has no workout description", row, col, c.Value)
			}

			day := anchor.AddDate(0, 0, col-3)
			events = append(events, WorkoutEvent{
				Summary:     e.Summary,
				Description: Describe(kind, c.Value, intensity),
				Start:       e.at(day, e.StartHour),
				End:         e.at(day, e.EndHour),
				Kind:        kind,
				Intensity:   intensity,
			})
		}
	}

	return events, nil
}

func (e *Extractor) at(day time.Time, hour int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, e.location())
}

func (e *Extractor) location() *time.Location {
	if e.Location == nil {
		return time.Local
	}
	return e.Location
}

var anchorLayouts = []string{"2006-01-02", "1/2/2006", "2006/01/02", "2-Jan-2006"}

// weekAnchor reads a week's date from either an Excel serial number or text.
func (e *Extractor) weekAnchor(c sheet.Cell, date1904 bool) (time.Time, error) {
	var d time.Time
	if serial, ok := c.Number(); ok {
		t, err := sheet.SerialToTime(serial, date1904)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w %q: %v", ErrBadAnchor, c.Value, err)
		}
		d = t
	} else {
		value := strings.TrimSpace(c.Value)
		// Text cells may still hold a serial, e.g. a formula cached as a string.
		if serial, err := strconv.ParseFloat(value, 64); err == nil {
			t, err := sheet.SerialToTime(serial, date1904)
			if err != nil {
				return time.Time{}, fmt.Errorf("%w %q: %v", ErrBadAnchor, c.Value, err)
			}
			d = t
		} else {
			parsed := false
			for _, layout := range anchorLayouts {
				if t, err := time.Parse(layout, value); err == nil {
					d, parsed = t, true
					break
				}
			}
			if !parsed {
				return time.Time{}, fmt.Errorf("%w %q", ErrBadAnchor, c.Value)
			}
		}
	}

	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, e.location()), nil
}
