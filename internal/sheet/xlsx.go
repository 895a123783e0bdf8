package sheet

import (
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

// Workbook is a Grid over one worksheet of a local .xlsx file.
type Workbook struct {
	file     *excelize.File
	sheet    string
	date1904 bool
}

// OpenWorkbook opens the workbook at path and selects the named worksheet.
// The caller must Close the returned Workbook.
func OpenWorkbook(path, sheetName string) (*Workbook, error) {
	f, err := excelize.OpenFile(path, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}

	idx, err := f.GetSheetIndex(sheetName)
	if err != nil || idx < 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %q in %s", ErrSheetNotFound, sheetName, path)
	}

	wb := &Workbook{file: f, sheet: sheetName}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		wb.date1904 = *props.Date1904
	}

	return wb, nil
}

// Close releases the underlying file.
func (w *Workbook) Close() error {
	return w.file.Close()
}

// Date1904 reports whether serial dates in this workbook use the 1904 epoch.
func (w *Workbook) Date1904() bool {
	return w.date1904
}

// Cell reads the value, type and fill of a single cell.
func (w *Workbook) Cell(row, col int) (Cell, error) {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return Cell{}, err
	}

	value, err := w.file.GetCellValue(w.sheet, ref, excelize.Options{RawCellValue: true})
	if err != nil {
		return Cell{}, fmt.Errorf("failed to read %s!%s: %w", w.sheet, ref, err)
	}

	cellType, err := w.file.GetCellType(w.sheet, ref)
	if err != nil {
		return Cell{}, fmt.Errorf("failed to read type of %s!%s: %w", w.sheet, ref, err)
	}

	cell := Cell{Value: value}
	if cellType != excelize.CellTypeSharedString && cellType != excelize.CellTypeInlineString {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			cell.Value = FormatNumber(f)
			cell.Numeric = true
		}
	}

	styleID, err := w.file.GetCellStyle(w.sheet, ref)
	if err != nil {
		return Cell{}, fmt.Errorf("failed to read style of %s!%s: %w", w.sheet, ref, err)
	}
	if styleID == 0 {
		return cell, nil
	}

	style, err := w.file.GetStyle(styleID)
	if err != nil {
		return Cell{}, fmt.Errorf("failed to read style %d: %w", styleID, err)
	}
	// Pattern 0 is "none".
	if style.Fill.Type == "pattern" && style.Fill.Pattern > 0 {
		cell.Filled = true
		if len(style.Fill.Color) > 0 {
			cell.Fill = NormalizeColor(style.Fill.Color[0])
		}
	}

	return cell, nil
}

// SerialToTime converts an Excel serial date to a calendar date.
func SerialToTime(serial float64, date1904 bool) (time.Time, error) {
	return excelize.ExcelDateToTime(serial, date1904)
}
