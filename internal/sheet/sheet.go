// Package sheet exposes a worksheet as a grid of cells addressed by 1-based
// row and column numbers, the way they appear in a spreadsheet application.
package sheet

import (
	"errors"
	"strconv"
	"strings"
)

// ErrSheetNotFound is returned when a workbook has no worksheet with the requested name.
var ErrSheetNotFound = errors.New("worksheet not found")

// Cell is a single worksheet cell.
type Cell struct {
	// Value is the raw cell value. Numbers are rendered without trailing zeros.
	Value string
	// Numeric reports whether the cell holds a number (dates included).
	Numeric bool
	// Filled reports whether the cell has a pattern fill.
	Filled bool
	// Fill is the fill foreground color as an ARGB hex string, e.g. "FF00FFFF".
	// It may be empty for filled cells whose color cannot be resolved.
	Fill string
}

// Number returns the numeric value of the cell.
func (c Cell) Number() (float64, bool) {
	if !c.Numeric {
		return 0, false
	}
	f, err := strconv.ParseFloat(c.Value, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// IsBlank reports whether the cell has no value.
func (c Cell) IsBlank() bool {
	return strings.TrimSpace(c.Value) == ""
}

// Grid is a read-only view of a worksheet.
type Grid interface {
	Cell(row, col int) (Cell, error)
}

// Table is an in-memory Grid.
type Table map[[2]int]Cell

// Set stores a cell at row, col.
func (t Table) Set(row, col int, c Cell) {
	t[[2]int{row, col}] = c
}

// Cell returns the cell at row, col. Missing cells are blank.
func (t Table) Cell(row, col int) (Cell, error) {
	return t[[2]int{row, col}], nil
}

// NumberCell builds a numeric cell.
func NumberCell(f float64) Cell {
	return Cell{Value: FormatNumber(f), Numeric: true}
}

// TextCell builds a text cell.
func TextCell(s string) Cell {
	return Cell{Value: s}
}

// WithFill returns a copy of c filled with the given color.
func (c Cell) WithFill(color string) Cell {
	c.Filled = true
	c.Fill = NormalizeColor(color)
	return c
}

// FormatNumber renders f in its shortest form, so 10.0 prints as "10" and 1.50 as "1.5".
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// NormalizeColor converts "#00ffff", "00FFFF" or "ff00ffff" to "FF00FFFF".
// Anything that is not 6 or 8 hex digits is returned upper-cased but otherwise unchanged.
func NormalizeColor(color string) string {
	c := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(color), "#"))
	if len(c) == 6 && isHex(c) {
		return "FF" + c
	}
	return c
}

func isHex(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("0123456789ABCDEF", r) {
			return false
		}
	}
	return true
}
