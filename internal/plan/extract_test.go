package plan

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beekhof/training-sync/internal/sheet"
)

// 2023-01-02 as an Excel serial date.
const jan2 = 44928

func newTestExtractor() *Extractor {
	e := NewExtractor()
	e.Location = time.UTC
	return e
}

func TestExtract_SingleCell(t *testing.T) {
	table := sheet.Table{}
	table.Set(9, 1, sheet.NumberCell(jan2))
	table.Set(9, 4, sheet.NumberCell(10))

	events, err := newTestExtractor().Extract(table)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "Marathon Training", ev.Summary)
	assert.Equal(t, "Run 10 miles at HR3", ev.Description)
	assert.Equal(t, Miles, ev.Kind)
	assert.Equal(t, "HR3", ev.Intensity)
	assert.Equal(t, time.Date(2023, 1, 3, 7, 0, 0, 0, time.UTC), ev.Start)
	assert.Equal(t, time.Date(2023, 1, 3, 8, 0, 0, 0, time.UTC), ev.End)
}

func TestExtract_DayOffsets(t *testing.T) {
	table := sheet.Table{}
	table.Set(9, 1, sheet.NumberCell(jan2))
	table.Set(9, 6, sheet.NumberCell(1).WithFill("FF00FFFF"))

	events, err := newTestExtractor().Extract(table)
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, "Bike 1 hour at HR2", events[0].Description)
	assert.Equal(t, time.Date(2023, 1, 5, 7, 0, 0, 0, time.UTC), events[0].Start)
	assert.Equal(t, time.Date(2023, 1, 5, 8, 0, 0, 0, time.UTC), events[0].End)
}

func TestExtract_TextAnchor(t *testing.T) {
	table := sheet.Table{}
	table.Set(9, 1, sheet.TextCell("2023-01-02"))
	table.Set(9, 10, sheet.TextCell("XT"))

	events, err := newTestExtractor().Extract(table)
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, "Crosstrain", events[0].Description)
	assert.Equal(t, time.Date(2023, 1, 9, 7, 0, 0, 0, time.UTC), events[0].Start)
}

func TestExtract_OrderAndRowBounds(t *testing.T) {
	table := sheet.Table{}
	// Rows 8 and 28 are outside the plan.
	table.Set(8, 1, sheet.NumberCell(jan2-7))
	table.Set(8, 4, sheet.NumberCell(3))
	table.Set(28, 1, sheet.NumberCell(jan2+7*19))
	table.Set(28, 4, sheet.NumberCell(3))

	table.Set(9, 1, sheet.NumberCell(jan2))
	table.Set(9, 4, sheet.NumberCell(5))
	table.Set(9, 5, sheet.TextCell(Off))
	table.Set(9, 7, sheet.NumberCell(30))
	table.Set(9, 11, sheet.NumberCell(99))
	table.Set(27, 1, sheet.NumberCell(jan2+7*18))
	table.Set(27, 9, sheet.NumberCell(26.2).WithFill("FFFF0000"))

	events, err := newTestExtractor().Extract(table)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "Run 5 miles at HR3", events[0].Description)
	assert.Equal(t, "low intensity recovery workout 30 minutes at HR3", events[1].Description)
	assert.Equal(t, "Run 26.2 miles at HR5b", events[2].Description)

	for i := 1; i < len(events); i++ {
		assert.True(t, events[i-1].Start.Before(events[i].Start), "events out of order at %d", i)
	}
}

func TestExtract_AllOffIsEmpty(t *testing.T) {
	table := sheet.Table{}
	for row := FirstRow; row <= LastRow; row++ {
		table.Set(row, 1, sheet.NumberCell(float64(jan2+7*(row-FirstRow))))
		for col := FirstColumn; col <= LastColumn; col++ {
			table.Set(row, col, sheet.TextCell(Off))
		}
	}

	events, err := newTestExtractor().Extract(table)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NotNil(t, events)
}

func TestExtract_UnknownColor(t *testing.T) {
	table := sheet.Table{}
	table.Set(9, 1, sheet.NumberCell(jan2))
	table.Set(9, 4, sheet.NumberCell(8).WithFill("FF123456"))

	events, err := newTestExtractor().Extract(table)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, UnknownIntensity, events[0].Intensity)
	assert.Equal(t, "Run 8 miles at unknown", events[0].Description)
}

func TestExtract_BlankAnchorSkipsRow(t *testing.T) {
	table := sheet.Table{}
	table.Set(9, 4, sheet.NumberCell(10))

	events, err := newTestExtractor().Extract(table)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestExtract_BadAnchor(t *testing.T) {
	table := sheet.Table{}
	table.Set(12, 1, sheet.TextCell("Week 4"))

	_, err := newTestExtractor().Extract(table)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadAnchor))
	assert.Contains(t, err.Error(), "row 12")
}

func TestExtract_CustomHours(t *testing.T) {
	table := sheet.Table{}
	table.Set(9, 1, sheet.NumberCell(jan2))
	table.Set(9, 5, sheet.NumberCell(40))

	e := newTestExtractor()
	e.StartHour, e.EndHour = 18, 19
	events, err := e.Extract(table)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 18, events[0].Start.Hour())
	assert.Equal(t, 19, events[0].End.Hour())
}
