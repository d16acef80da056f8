// Package export writes client records as CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/allaspectsdev/legalsmart/internal/store"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SheetName is the worksheet that holds the clients in an XLSX export.
const SheetName = "Clients"

// Columns is the fixed column order of every export.
var Columns = []string{"id", "name", "age", "legal_issue"}

// ParseFormat accepts "csv" or "xlsx" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("export: unknown format %q (want csv or xlsx)", s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Filename returns the download name for an export taken at t.
func Filename(f Format, t time.Time) string {
	return fmt.Sprintf("legal_clients_%s.%s", t.Format("20060102_150405"), f)
}

// Write encodes clients to w in format f.
func Write(w io.Writer, f Format, clients []store.Client) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, clients)
	case FormatXLSX:
		return WriteXLSX(w, clients)
	default:
		return fmt.Errorf("export: unknown format %q", f)
	}
}

// WriteCSV writes a header row followed by one row per client.
func WriteCSV(w io.Writer, clients []store.Client) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("export: csv header: %w", err)
	}
	for _, c := range clients {
		rec := []string{strconv.FormatInt(c.ID, 10), c.Name, strconv.Itoa(c.Age), c.LegalIssue}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("export: csv row %d: %w", c.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: csv flush: %w", err)
	}
	return nil
}

// WriteXLSX writes a workbook with a single Clients sheet.
func WriteXLSX(w io.Writer, clients []store.Client) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("export: xlsx sheet: %w", err)
	}

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("export: xlsx header: %w", err)
	}
	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(SheetName, 1, 1, bold)
	}

	for i, c := range clients {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export: xlsx cell: %w", err)
		}
		row := []interface{}{c.ID, c.Name, c.Age, c.LegalIssue}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("export: xlsx row %d: %w", c.ID, err)
		}
	}
	_ = f.SetColWidth(SheetName, "B", "B", 24)
	_ = f.SetColWidth(SheetName, "D", "D", 28)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: xlsx write: %w", err)
	}
	return nil
}
