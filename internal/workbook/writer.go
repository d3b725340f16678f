package workbook

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/JonMunkholm/esgmap/internal/table"
	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the worksheet name used for written workbooks.
const DefaultSheet = "Sheet1"

// Write serializes t to w. Only values are written; source styles are not kept.
func Write(w io.Writer, t *table.Table, format Format) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, t)
	case FormatXLSX:
		return writeXLSX(w, t)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func writeXLSX(w io.Writer, t *table.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(DefaultSheet)
	if err != nil {
		return err
	}

	header := make([]interface{}, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range t.Rows {
		ref, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, c := range row {
			values[j] = xlsxValue(c)
		}
		if err := sw.SetRow(ref, values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return err
	}
	return f.Write(w)
}

// xlsxValue maps a cell to the value type excelize stores it as.
func xlsxValue(c table.Cell) interface{} {
	switch c.Kind {
	case table.KindEmpty:
		return nil
	case table.KindNumber:
		if n, err := strconv.ParseInt(c.Raw, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(c.Raw, 64); err == nil {
			return f
		}
	}
	return c.Raw
}

// writeCSV writes cell text byte for byte, restoring the source's BOM and
// line endings.
func writeCSV(w io.Writer, t *table.Table) error {
	if t.BOM {
		if _, err := w.Write(utf8BOM); err != nil {
			return err
		}
	}

	cw := csv.NewWriter(w)
	cw.UseCRLF = t.CRLF
	if err := cw.Write(t.Columns); err != nil {
		return err
	}

	record := make([]string, 0, len(t.Columns))
	for i, row := range t.Rows {
		record = record[:0]
		for j := range max(len(t.Columns), len(row)) {
			record = append(record, t.Cell(i, j).Raw)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
