package sheet

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var spreadsheetURL = regexp.MustCompile(`^https://docs.google.com/spreadsheets/d/(.*?)(?:/.*)?$`)

// SpreadsheetID extracts the spreadsheet ID from a Google Sheets URL.
func SpreadsheetID(url string) (string, error) {
	match := spreadsheetURL.FindStringSubmatch(url)
	if len(match) < 2 || match[1] == "" {
		return "", fmt.Errorf("invalid spreadsheet URL %q - expected something like 'https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms'", url)
	}
	return match[1], nil
}

// LoadGoogleSheet fetches rows 1..lastRow and columns 1..lastCol of the named
// worksheet from a Google Sheets spreadsheet into an in-memory Table.
func LoadGoogleSheet(ctx context.Context, httpClient *http.Client, url, sheetName string, lastRow, lastCol int, opts ...option.ClientOption) (Table, error) {
	id, err := SpreadsheetID(url)
	if err != nil {
		return nil, err
	}

	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	area := fmt.Sprintf("'%s'!A1:%s%d", strings.ReplaceAll(sheetName, "'", "''"), columnName(lastCol), lastRow)
	spreadsheet, err := service.Spreadsheets.Get(id).
		Ranges(area).
		IncludeGridData(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get spreadsheet %s: %w", id, err)
	}

	for _, s := range spreadsheet.Sheets {
		if s.Properties == nil || s.Properties.Title != sheetName {
			continue
		}

		table := Table{}
		for _, data := range s.Data {
			for r, rowData := range data.RowData {
				for c, cellData := range rowData.Values {
					row := int(data.StartRow) + r + 1
					col := int(data.StartColumn) + c + 1
					table.Set(row, col, googleCell(cellData))
				}
			}
		}
		return table, nil
	}

	return nil, fmt.Errorf("%w: %q in spreadsheet %s", ErrSheetNotFound, sheetName, id)
}

func googleCell(data *sheets.CellData) Cell {
	var cell Cell
	if data == nil {
		return cell
	}

	if v := data.EffectiveValue; v != nil {
		switch {
		case v.NumberValue != nil:
			cell.Value = FormatNumber(*v.NumberValue)
			cell.Numeric = true
		case v.StringValue != nil:
			cell.Value = *v.StringValue
		case v.BoolValue != nil:
			cell.Value = fmt.Sprintf("%t", *v.BoolValue)
		}
	}

	// Only explicitly applied fills count; the effective format reports white for every cell.
	if f := data.UserEnteredFormat; f != nil {
		color := f.BackgroundColor
		if f.BackgroundColorStyle != nil && f.BackgroundColorStyle.RgbColor != nil {
			color = f.BackgroundColorStyle.RgbColor
		}
		if color != nil {
			cell.Filled = true
			cell.Fill = fmt.Sprintf("FF%02X%02X%02X", channel(color.Red), channel(color.Green), channel(color.Blue))
		}
	}

	return cell
}

func channel(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

// columnName converts a 1-based column number to its letter form (1 -> A, 27 -> AA).
func columnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}
