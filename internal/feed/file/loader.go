// Package file loads sales rows from local CSV and XLSX exports of the feed.
package file

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/salesroom/salesroom/internal/sales"
)

// Format is a supported export format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnsupportedFormat is returned for unknown file extensions.
var ErrUnsupportedFormat = errors.New("file: unsupported format")

const (
	utf8BOM          = "\ufeff"
	serialDateLayout = "2006-01-02 15:04:05"
)

// FormatOf infers the format from a path extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Loader reads one export file as a feed source.
type Loader struct {
	path       string
	format     Format
	sheet      string
	dateLabels []string
}

// Option customises a Loader.
type Option func(*Loader)

// WithSheet selects the worksheet of an XLSX file. The first sheet is used by default.
func WithSheet(name string) Option {
	return func(l *Loader) { l.sheet = name }
}

// WithAliases sets the alias rules whose date labels mark serial-date columns.
func WithAliases(rules []sales.AliasRule) Option {
	return func(l *Loader) { l.dateLabels = dateLabels(rules) }
}

// NewLoader builds a Loader for path.
func NewLoader(path string, opts ...Option) (*Loader, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	l := &Loader{path: path, format: format, dateLabels: dateLabels(sales.DefaultAliases())}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Fetch reads the file. Every call re-reads it from disk.
func (l *Loader) Fetch(ctx context.Context) ([]sales.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("file: open %s: %w", l.path, err)
	}
	defer f.Close()

	switch l.format {
	case FormatXLSX:
		return ReadXLSX(f, l.sheet, l.dateLabels)
	default:
		return ReadCSV(f)
	}
}

// ReadCSV parses a CSV export whose first row holds the column labels.
func ReadCSV(r io.Reader) ([]sales.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("file: parse csv: %w", err)
	}
	return records(rows, nil), nil
}

// ReadXLSX parses one worksheet. Numeric cells under a date label are read as
// spreadsheet serial dates and returned as "YYYY-MM-DD hh:mm:ss" strings.
func ReadXLSX(r io.Reader, sheet string, dateLabels []string) ([]sales.RawRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("file: open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("file: read sheet %q: %w", sheet, err)
	}
	dates := make(map[string]bool, len(dateLabels))
	for _, label := range dateLabels {
		dates[label] = true
	}
	return records(rows, func(label, value string) any {
		if !dates[label] {
			return value
		}
		serial, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return value
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return value
		}
		// Serial dates are wall-clock values; keep them zone-less so the
		// reporting location does not shift the calendar day.
		return t.Format(serialDateLayout)
	}), nil
}

func records(rows [][]string, convert func(label, value string) any) []sales.RawRecord {
	out := []sales.RawRecord{}
	if len(rows) == 0 {
		return out
	}
	header := make([]string, len(rows[0]))
	for i, label := range rows[0] {
		if i == 0 {
			label = strings.TrimPrefix(label, utf8BOM)
		}
		header[i] = strings.TrimSpace(label)
	}
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		rec := make(sales.RawRecord, len(header))
		for i, label := range header {
			if label == "" || i >= len(row) {
				continue
			}
			if convert != nil {
				rec[label] = convert(label, row[i])
				continue
			}
			rec[label] = row[i]
		}
		out = append(out, rec)
	}
	return out
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func dateLabels(rules []sales.AliasRule) []string {
	var out []string
	for _, rule := range rules {
		if rule.Field == sales.FieldDate {
			out = append(out, rule.Labels...)
		}
	}
	return out
}
