package workbook

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// cellKinds records which cells of one worksheet are stored as numbers,
// indexed by 1-based row and column.
type cellKinds struct {
	rows [][]bool
}

func (k *cellKinds) set(row, col int, numeric bool) {
	if row < 1 || col < 1 {
		return
	}
	for len(k.rows) < row {
		k.rows = append(k.rows, nil)
	}
	r := k.rows[row-1]
	for len(r) < col {
		r = append(r, false)
	}
	r[col-1] = numeric
	k.rows[row-1] = r
}

func (k *cellKinds) numeric(row, col int) bool {
	if row < 1 || row > len(k.rows) {
		return false
	}
	r := k.rows[row-1]
	return col >= 1 && col <= len(r) && r[col-1]
}

// scanCellKinds reads the cell type attributes of sheet in one streaming pass
// over the worksheet part. excelize only exposes types cell by cell, and each
// lookup walks the sheet from its first row.
func scanCellKinds(data []byte, sheet string) (*cellKinds, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	parts := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		parts[strings.ToLower(strings.TrimPrefix(f.Name, "/"))] = f
	}

	sheetPath, err := worksheetPath(parts, sheet)
	if err != nil {
		return nil, err
	}
	part, ok := parts[strings.ToLower(sheetPath)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}

	rc, err := part.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	kinds := &cellKinds{}
	dec := xml.NewDecoder(rc)
	inData := false
	row, col := 0, 0

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", sheetPath, err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch {
			case el.Name.Local == "sheetData":
				inData = true
			case !inData:
			case el.Name.Local == "row":
				row++
				col = 0
				if v := attrValue(el, "r"); v != "" {
					if n, err := strconv.Atoi(v); err == nil {
						row = n
					}
				}
			case el.Name.Local == "c":
				col++
				if ref := attrValue(el, "r"); ref != "" {
					if c, r, err := excelize.CellNameToCoordinates(ref); err == nil {
						col, row = c, r
					}
				}
				// An absent type means number in the OOXML model.
				switch attrValue(el, "t") {
				case "", "n":
					kinds.set(row, col, true)
				}
			}
		case xml.EndElement:
			if el.Name.Local == "sheetData" {
				return kinds, nil
			}
		}
	}
	return kinds, nil
}

// worksheetPath resolves a sheet name to its part through the package and
// workbook relationships.
func worksheetPath(parts map[string]*zip.File, sheet string) (string, error) {
	wbPath := "xl/workbook.xml"
	if rels, err := readRels(parts, "_rels/.rels"); err == nil {
		for _, rel := range rels.Rels {
			if strings.HasSuffix(rel.Type, "/officeDocument") {
				wbPath = resolveTarget("", rel.Target)
				break
			}
		}
	}

	var wb struct {
		Sheets []struct {
			Name  string     `xml:"name,attr"`
			Attrs []xml.Attr `xml:",any,attr"`
		} `xml:"sheets>sheet"`
	}
	if err := decodePart(parts, wbPath, &wb); err != nil {
		return "", err
	}

	rid := ""
	for _, s := range wb.Sheets {
		if strings.EqualFold(s.Name, sheet) {
			for _, a := range s.Attrs {
				if a.Name.Local == "id" && a.Name.Space != "" {
					rid = a.Value
				}
			}
			break
		}
	}
	if rid == "" {
		return "", fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}

	dir := path.Dir(wbPath)
	rels, err := readRels(parts, path.Join(dir, "_rels", path.Base(wbPath)+".rels"))
	if err != nil {
		return "", err
	}
	for _, rel := range rels.Rels {
		if rel.ID == rid {
			return resolveTarget(dir, rel.Target), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
}

type relationships struct {
	Rels []struct {
		ID     string `xml:"Id,attr"`
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

func readRels(parts map[string]*zip.File, name string) (*relationships, error) {
	var rels relationships
	if err := decodePart(parts, name, &rels); err != nil {
		return nil, err
	}
	return &rels, nil
}

func decodePart(parts map[string]*zip.File, name string, v any) error {
	f, ok := parts[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("workbook part %s: %w", name, zip.ErrFormat)
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return xml.NewDecoder(rc).Decode(v)
}

// resolveTarget turns a relationship target into a package path. Absolute
// targets start at the package root.
func resolveTarget(base, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join(base, target)
}

func attrValue(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name && a.Name.Space == "" {
			return a.Value
		}
	}
	return ""
}
