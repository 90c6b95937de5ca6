package file

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/salesroom/salesroom/internal/sales"
)

func TestReadCSV(t *testing.T) {
	input := "\ufeff日期,金額,品牌,\n2024-01-02,\"1,200\",Acme,x\n,,,\n2024-02-03,300\n"
	records, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2024-01-02", records[0]["日期"])
	assert.Equal(t, "1,200", records[0]["金額"])
	assert.Equal(t, "Acme", records[0]["品牌"])
	assert.NotContains(t, records[0], "")
	assert.NotContains(t, records[1], "品牌")
}

func TestReadCSVEmpty(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestReadXLSXConvertsSerialDates(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Date", "Amount", "Brand"}))
	require.NoError(t, f.SetCellValue(sheet, "A2", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, f.SetCellValue(sheet, "B2", 1234.5))
	require.NoError(t, f.SetCellValue(sheet, "C2", "Acme"))
	require.NoError(t, f.SetCellValue(sheet, "A3", "2024-04-01"))
	require.NoError(t, f.SetCellValue(sheet, "B3", "900"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	records, err := ReadXLSX(bytes.NewReader(buf.Bytes()), "", []string{"Date"})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "2024-03-15 00:00:00", records[0]["Date"])
	assert.Equal(t, "2024-04-01", records[1]["Date"])

	txns := sales.NewNormalizer().NormalizeAll(records)
	assert.Equal(t, "2024-03-15", txns[0].Date.String())
	assert.Equal(t, 1234.5, txns[0].Amount)
	assert.Equal(t, "2024-04-01", txns[1].Date.String())
}

func TestReadXLSXSerialDatesKeepCalendarDayWestOfUTC(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"日期", "金額"}))
	require.NoError(t, f.SetCellValue(sheet, "A2", 45306))
	require.NoError(t, f.SetCellValue(sheet, "B2", 100))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	records, err := ReadXLSX(bytes.NewReader(buf.Bytes()), "", []string{"日期"})
	require.NoError(t, err)
	require.Len(t, records, 1)

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	opts := sales.DefaultOptions()
	opts.Location = loc
	report := sales.Run(records, opts)

	require.Len(t, report.Transactions, 1)
	txn := report.Transactions[0]
	assert.Equal(t, "2024-01-15", txn.Date.String())
	assert.Equal(t, "2024-01-15", txn.RawDate)
	require.Len(t, report.Monthly, 1)
	assert.Equal(t, "2024-01", report.Monthly[0].Month)
}

func TestLoaderFetch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feed.csv")
	require.NoError(t, os.WriteFile(path, []byte("Date,Amount\n2024-01-01,10\n"), 0o600))

	loader, err := NewLoader(path)
	require.NoError(t, err)
	records, err := loader.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "10", records[0]["Amount"])

	missing, err := NewLoader(filepath.Join(dir, "missing.csv"))
	require.NoError(t, err)
	_, err = missing.Fetch(context.Background())
	require.Error(t, err)
}

func TestFormatOf(t *testing.T) {
	format, err := FormatOf("Sales.XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, format)

	_, err = FormatOf("sales.json")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}
