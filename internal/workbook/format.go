// Package workbook reads spreadsheet files into tables and writes them back in the
// same format. XLSX goes through excelize; CSV through encoding/csv behind an x/text
// decoder that drops a byte-order mark and repairs invalid UTF-8.
package workbook

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for file extensions the reader cannot open.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Format identifies a spreadsheet encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// DetectFormat picks a format from the file extension.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	case ".xls":
		return "", fmt.Errorf("%w: legacy .xls workbooks must be re-saved as .xlsx", ErrUnsupportedFormat)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// Ext returns the file extension written for f, including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
}

// OutputName derives the download name for a filled file: "EquityRef.xlsx" with
// suffix "_filled" becomes "EquityRef_filled.xlsx". A macro-enabled input is
// written as plain xlsx.
func OutputName(name, suffix string, f Format) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "output"
	}
	return base + suffix + f.Ext()
}
