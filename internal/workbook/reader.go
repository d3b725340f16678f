package workbook

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/JonMunkholm/esgmap/internal/table"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	// ErrHeaderRowMissing is returned when the file has fewer rows than the header offset.
	ErrHeaderRowMissing = errors.New("header row not found")

	// ErrSheetNotFound is returned when a named sheet does not exist.
	ErrSheetNotFound = errors.New("sheet not found")
)

// ReadOptions controls where the header sits and which sheet is read.
type ReadOptions struct {
	// HeaderRow is the 1-based row holding column names. Rows above it are skipped.
	// Zero means 1.
	HeaderRow int

	// Sheet names the worksheet to read. Empty means the first sheet. Ignored for CSV.
	Sheet string

	// DetectKinds keeps numeric xlsx cells as Number cells so they are written
	// back as numbers. Without it every non-empty cell reads as Text, which is
	// all a reference table needs.
	DetectKinds bool

	// CaseSensitiveHeaders is copied to the table; see table.Table.
	CaseSensitiveHeaders bool
}

func (o ReadOptions) headerIndex() int {
	if o.HeaderRow <= 1 {
		return 0
	}
	return o.HeaderRow - 1
}

// Read parses r as the format implied by name.
func Read(r io.Reader, name string, opts ReadOptions) (*table.Table, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return nil, err
	}

	var t *table.Table
	switch format {
	case FormatCSV:
		t, err = readCSV(r, name, opts)
	default:
		t, err = readXLSX(r, name, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	t.CaseSensitiveHeaders = opts.CaseSensitiveHeaders
	return t, nil
}

// ReadFile opens path and reads it with Read.
func ReadFile(path string, opts ReadOptions) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, path, opts)
}

func readXLSX(r io.Reader, name string, opts ReadOptions) (*table.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrSheetNotFound
		}
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	hdr := opts.headerIndex()
	if hdr >= len(rows) {
		return nil, fmt.Errorf("%w: row %d of %d", ErrHeaderRowMissing, hdr+1, len(rows))
	}

	var kinds *cellKinds
	if opts.DetectKinds {
		if kinds, err = scanCellKinds(data, sheet); err != nil {
			return nil, err
		}
	}

	t := table.New(name, rows[hdr])
	for i := hdr + 1; i < len(rows); i++ {
		cells := make([]table.Cell, len(rows[i]))
		for j, raw := range rows[i] {
			cells[j] = xlsxCell(raw, kinds != nil && kinds.numeric(i+1, j+1))
		}
		t.AppendRow(cells...)
	}
	return t, nil
}

// xlsxCell keeps numeric cells numeric when their stored value parses.
func xlsxCell(raw string, numeric bool) table.Cell {
	if raw == "" {
		return table.Empty()
	}
	if numeric {
		if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return table.Number(v)
		}
	}
	return table.Text(raw)
}

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}
)

// readCSV keeps cell bytes as they are in the file, whatever their encoding,
// so untouched columns are written back unchanged. Only a leading BOM is
// removed and recorded.
func readCSV(r io.Reader, name string, opts ReadOptions) (*table.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	bom := false
	switch {
	case bytes.HasPrefix(data, utf8BOM):
		data, bom = data[len(utf8BOM):], true
	case bytes.HasPrefix(data, utf16LEBOM), bytes.HasPrefix(data, utf16BEBOM):
		// UTF-16 text is transcoded; it is written back as UTF-8 with a BOM.
		if data, _, err = transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data); err != nil {
			return nil, err
		}
		bom = true
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	hdr := opts.headerIndex()
	if hdr >= len(records) {
		return nil, fmt.Errorf("%w: row %d of %d", ErrHeaderRowMissing, hdr+1, len(records))
	}

	t := table.New(name, records[hdr])
	t.BOM = bom
	if nl := bytes.IndexByte(data, '\n'); nl > 0 && data[nl-1] == '\r' {
		t.CRLF = true
	}
	for _, rec := range records[hdr+1:] {
		cells := make([]table.Cell, len(rec))
		for j, raw := range rec {
			cells[j] = table.Text(raw)
		}
		t.AppendRow(cells...)
	}
	return t, nil
}
