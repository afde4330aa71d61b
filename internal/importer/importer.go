// Package importer reads bank statements exported as .xlsx workbooks.
package importer

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"assofin/internal/core"

	"github.com/xuri/excelize/v2"
)

// PreviewSize is the number of rows shown before an import is confirmed.
const PreviewSize = 5

var ErrNoHeader = errors.New("no amount column found in the first row")

// Header candidates per field, in lookup order. For each row the first
// candidate column holding a value is used.
var (
	dateHeaders        = []string{"Date", "date", "DATE", "Date de valeur"}
	descriptionHeaders = []string{"Description", "description", "Libellé", "Opération"}
	amountHeaders      = []string{"Montant", "montant", "Amount", "amount", "Crédit", "Débit"}
)

// debitHeader holds outgoing amounts that banks often write without a sign.
const debitHeader = "Débit"

// Row is one statement line ready to become a transaction.
type Row struct {
	Line        int // 1-based sheet row
	Date        core.Date
	Description string
	Amount      core.Money
	Type        core.TransactionType
}

// Result lists the usable rows and how many lines were dropped.
type Result struct {
	Rows    []Row
	Skipped int
}

// Preview returns at most PreviewSize rows.
func (r Result) Preview() []Row {
	if len(r.Rows) > PreviewSize {
		return r.Rows[:PreviewSize]
	}
	return r.Rows
}

// Parse reads the first sheet of an .xlsx workbook. Lines without a
// description or with a zero or unreadable amount are skipped. Missing or
// unreadable dates default to the day of today.
func Parse(r io.Reader, today time.Time) (Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Result{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return Result{}, errors.New("workbook has no sheet")
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return Result{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return parseRows(rows, today)
}

type columns struct {
	date, description, amount []column
}

type column struct {
	index int
	name  string
}

func locate(header []string, candidates []string) []column {
	var out []column
	for _, want := range candidates {
		for i, h := range header {
			if strings.TrimSpace(h) == want {
				out = append(out, column{index: i, name: want})
				break
			}
		}
	}
	return out
}

func parseRows(rows [][]string, today time.Time) (Result, error) {
	if len(rows) == 0 {
		return Result{}, ErrNoHeader
	}
	cols := columns{
		date:        locate(rows[0], dateHeaders),
		description: locate(rows[0], descriptionHeaders),
		amount:      locate(rows[0], amountHeaders),
	}
	if len(cols.amount) == 0 {
		return Result{}, ErrNoHeader
	}

	var res Result
	for i, raw := range rows[1:] {
		row, ok := parseRow(raw, cols, today)
		if !ok {
			if !blank(raw) {
				res.Skipped++
			}
			continue
		}
		row.Line = i + 2
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

func parseRow(raw []string, cols columns, today time.Time) (Row, bool) {
	desc, _ := first(raw, cols.description)
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return Row{}, false
	}

	rawAmount, from := first(raw, cols.amount)
	cents, err := ParseAmount(rawAmount)
	if err != nil || cents == 0 {
		return Row{}, false
	}
	if from == debitHeader && cents > 0 {
		cents = -cents
	}

	typ := core.Income
	if cents < 0 {
		typ = core.Expense
		cents = -cents
	}

	rawDate, _ := first(raw, cols.date)
	return Row{
		Date:        ParseDate(rawDate, today),
		Description: desc,
		Amount:      core.Money{Cents: cents},
		Type:        typ,
	}, true
}

// first returns the first non-empty cell among cols and its header.
func first(raw []string, cols []column) (string, string) {
	for _, c := range cols {
		if c.index < len(raw) {
			if v := strings.TrimSpace(raw[c.index]); v != "" {
				return v, c.name
			}
		}
	}
	return "", ""
}

func blank(raw []string) bool {
	for _, v := range raw {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ParseAmount reads a signed statement amount into cents. Currency symbols
// and spaces are ignored and a lone comma is a decimal separator. When both
// separators appear, the last one is the decimal separator and the other
// groups thousands: "1.234,56" and "1,234.56" are the same amount.
func ParseAmount(s string) (int64, error) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	comma, dot := strings.LastIndex(clean, ","), strings.LastIndex(clean, ".")
	if comma >= 0 && dot >= 0 {
		if comma > dot {
			clean = strings.ReplaceAll(clean, ".", "")
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	}
	return core.ParseSignedCents(clean)
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2/1/2006", "02-01-2006", "02/01/06", "2006-01-02 15:04:05"}

// ParseDate accepts Excel serial numbers and the common day-first layouts,
// falling back to the day of today.
func ParseDate(s string, today time.Time) core.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.DateOf(today)
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return core.DateOf(t)
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t)
		}
	}
	return core.DateOf(today)
}

// WriteTemplate writes an example workbook with the expected headers.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	values := [][]any{
		{"Date", "Description", "Montant"},
		{"2024-01-15", "Cotisation annuelle", 50},
		{"2024-01-20", "CB SUPERMARCHE CARREFOUR", -32.5},
	}
	for i, row := range values {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write template row %d: %w", i+1, err)
		}
	}
	if err := f.SetColWidth(sheet, "B", "B", 36); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	return nil
}
