package plan

import (
	"github.com/beekhof/training-sync/internal/sheet"
)

// Kind is the type of workout a plan cell describes.
type Kind int

const (
	Skip Kind = iota
	Miles
	Minutes
	Bike
	Recovery
	Bootcamp
	Crosstrain
	// Unlabelled cells still produce an event, but with an empty description.
	Unlabelled
)

func (k Kind) String() string {
	switch k {
	case Skip:
		return "skip"
	case Miles:
		return "miles"
	case Minutes:
		return "minutes"
	case Bike:
		return "bike"
	case Recovery:
		return "recovery"
	case Bootcamp:
		return "bootcamp"
	case Crosstrain:
		return "crosstrain"
	case Unlabelled:
		return "unlabelled"
	}
	return "unknown"
}

// Column layout of a plan row (1-based, as shown in the spreadsheet).
const (
	AnchorColumn = 1
	FirstColumn  = 4
	LastColumn   = 10
)

const (
	// Off marks a rest day.
	Off = "OFF"
	// CrossTraining marks a cross-training day.
	CrossTraining = "XT"
)

// Intensity tags.
const (
	DefaultIntensity = "HR3"
	UnknownIntensity = "unknown"
)

var intensities = map[string]string{
	"FFBFBFBF": "HR1",
	"FFC0C0C0": "HR1",
	"FF00FFFF": "HR2",
	"FFFFFF00": "HR4",
	"FFFF99CC": "HR5a",
	"FFFF0000": "HR5b",
	"FF00FF00": "HR various",
}

// LookupIntensity returns the heart-rate zone for a fill color and whether
// the color is a known one.
func LookupIntensity(color string) (string, bool) {
	tag, ok := intensities[sheet.NormalizeColor(color)]
	return tag, ok
}

// Intensity returns the heart-rate zone a cell's fill encodes. Unfilled cells
// are HR3; filled cells with an unrecognized color are UnknownIntensity.
func Intensity(c sheet.Cell) string {
	if !c.Filled {
		return DefaultIntensity
	}
	if tag, ok := LookupIntensity(c.Fill); ok {
		return tag
	}
	return UnknownIntensity
}

// Classify decides what kind of workout the cell in column col holds.
//
// Column checks come before the XT check, so an "XT" in column 7 is a
// recovery workout rather than cross-training.
func Classify(col int, c sheet.Cell) Kind {
	if col < FirstColumn || col > LastColumn {
		return Skip
	}
	if c.Value == Off || c.IsBlank() {
		return Skip
	}

	switch {
	case col == 4 || col == 9:
		return Miles
	case col == 5:
		return Minutes
	case col == 6:
		return Bike
	case col == 7 && !isOne(c):
		return Recovery
	case col == 7:
		return Bootcamp
	case c.Value == CrossTraining:
		return Crosstrain
	}
	return Unlabelled
}

func isOne(c sheet.Cell) bool {
	f, ok := c.Number()
	return ok && f == 1
}

// Describe renders the calendar description for a classified cell.
func Describe(kind Kind, value, intensity string) string {
	switch kind {
	case Miles:
		return "Run " + value + " miles at " + intensity
	case Minutes:
		return "Run " + value + " minutes at " + intensity
	case Bike:
		return "Bike " + value + " hour at " + intensity
	case Recovery:
		return "low intensity recovery workout " + value + " minutes at " + intensity
	case Bootcamp:
		return "Bootcamp or track " + value + " hour at " + intensity
	case Crosstrain:
		return "Crosstrain"
	}
	return ""
}
