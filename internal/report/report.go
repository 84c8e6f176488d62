// Package report encodes export records as downloadable documents.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tealeg/xlsx/v2"

	"github.com/couchcryptid/ispu-monitor-service/internal/domain"
)

// Format is an export document format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// Sheet names used for XLSX exports.
const (
	SheetStations   = "Stasiun"
	SheetAirQuality = "Kualitas Udara"
	defaultSheet    = "Sheet1"
)

// Table is one export dataset. Headers fix the column order; when empty they
// default to the keys of the first record. Sheet names the XLSX worksheet.
type Table struct {
	Sheet   string
	Headers []string
	Records []domain.Record
}

// ParseFormat resolves a format name. Empty input means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (allowed: csv, json, xlsx)", s)
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Filename joins a basename with the format's extension.
func (f Format) Filename(basename string) string {
	return basename + "." + string(f)
}

// Encode writes the table to w in the given format.
func Encode(w io.Writer, f Format, t Table) error {
	switch f {
	case FormatCSV:
		_, err := io.WriteString(w, domain.ToCSV(t.Records, t.Headers...))
		return err
	case FormatJSON:
		return encodeJSON(w, t.Records)
	case FormatXLSX:
		return encodeXLSX(w, t)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

func encodeJSON(w io.Writer, records []domain.Record) error {
	if records == nil {
		records = []domain.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode json export: %w", err)
	}
	return nil
}

func encodeXLSX(w io.Writer, t Table) error {
	headers, records := t.Headers, t.Records
	if len(headers) == 0 && len(records) > 0 {
		headers = records[0].Keys()
	}
	name := t.Sheet
	if name == "" {
		name = defaultSheet
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(name)
	if err != nil {
		return fmt.Errorf("add sheet %q: %w", name, err)
	}

	header := sheet.AddRow()
	for _, h := range headers {
		header.AddCell().SetString(h)
	}
	for _, rec := range records {
		row := sheet.AddRow()
		for _, h := range headers {
			v, _ := rec.Get(h)
			setCell(row.AddCell(), v)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx export: %w", err)
	}
	return nil
}

func setCell(cell *xlsx.Cell, v any) {
	switch x := v.(type) {
	case nil:
	case string:
		cell.SetString(x)
	case float64:
		cell.SetFloat(x)
	case int:
		cell.SetInt(x)
	case int64:
		cell.SetInt64(x)
	case bool:
		cell.SetBool(x)
	case domain.Number:
		if x.Valid {
			cell.SetFloat(x.Value)
		}
	default:
		cell.SetString(fmt.Sprint(x))
	}
}
