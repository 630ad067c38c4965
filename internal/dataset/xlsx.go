package dataset

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// LoadXLSX reads one sheet of an Excel workbook. opt.Sheet picks the sheet by
// name; otherwise the first sheet in workbook order is used.
func LoadXLSX(filename string, opt Options) (*Table, error) {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer zr.Close()

	sheets, err := workbookSheets(&zr.Reader)
	if err != nil {
		return nil, err
	}
	target, err := pickSheet(sheets, opt.Sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(filename), err)
	}
	data, err := zipEntry(&zr.Reader, target)
	if err != nil {
		return nil, err
	}
	sharedXML, err := zipEntry(&zr.Reader, "xl/sharedStrings.xml")
	if err != nil && !errors.Is(err, errNoEntry) {
		return nil, err
	}
	shared, err := sharedStrings(sharedXML)
	if err != nil {
		return nil, err
	}

	rows := &sheetRows{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared}
	t, err := build(rows.next, opt)
	if err != nil {
		return nil, err
	}
	t.Name = filepath.Base(filename)
	return t, nil
}

var errNoEntry = errors.New("entry not found")

type sheetRef struct {
	name string
	path string
}

// workbookSheets lists sheets in workbook order with their part paths.
func workbookSheets(zr *zip.Reader) ([]sheetRef, error) {
	wb, err := zipEntry(zr, "xl/workbook.xml")
	if err != nil {
		return nil, err
	}
	rels, err := zipEntry(zr, "xl/_rels/workbook.xml.rels")
	if err != nil && !errors.Is(err, errNoEntry) {
		return nil, err
	}

	targets := map[string]string{}
	err = eachStart(rels, func(se xml.StartElement) {
		if se.Name.Local == "Relationship" {
			targets[attr(se, "Id")] = attr(se, "Target")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("parse workbook rels: %w", err)
	}

	var out []sheetRef
	err = eachStart(wb, func(se xml.StartElement) {
		if se.Name.Local != "sheet" {
			return
		}
		ref := sheetRef{name: attr(se, "name")}
		if t, ok := targets[attr(se, "id")]; ok {
			ref.path = partPath(t)
		} else {
			ref.path = "xl/worksheets/sheet" + attr(se, "sheetId") + ".xml"
		}
		out = append(out, ref)
	})
	if err != nil {
		return nil, fmt.Errorf("parse workbook: %w", err)
	}
	return out, nil
}

func pickSheet(sheets []sheetRef, name string) (string, error) {
	if len(sheets) == 0 {
		return "", errors.New("workbook has no sheets")
	}
	if name == "" {
		return sheets[0].path, nil
	}
	names := make([]string, len(sheets))
	for i, s := range sheets {
		if strings.EqualFold(s.name, name) {
			return s.path, nil
		}
		names[i] = s.name
	}
	return "", fmt.Errorf("sheet %q not found, available sheets: %s", name, strings.Join(names, ", "))
}

// partPath turns a relationship target into a zip entry name.
func partPath(target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join("xl", target)
}

func zipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("%s: %w", name, errNoEntry)
}

func eachStart(data []byte, fn func(xml.StartElement)) error {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if se, ok := tok.(xml.StartElement); ok {
			fn(se)
		}
	}
}

func attr(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// sharedStrings concatenates every <t> run inside each <si> item.
func sharedStrings(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out []string
	var buf strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse shared strings: %w", err)
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "si":
				buf.Reset()
			case "t":
				inText = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inText = false
			case "si":
				out = append(out, buf.String())
			}
		case xml.CharData:
			if inText {
				buf.Write(se)
			}
		}
	}
}

// sheetRows streams worksheet rows; cells are placed by their A1 reference.
type sheetRows struct {
	dec    *xml.Decoder
	shared []string
}

func (r *sheetRows) next() ([]string, error) {
	var row []string
	inRow := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) && !inRow {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("parse sheet: %w", err)
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch {
			case se.Name.Local == "row":
				inRow, row = true, nil
			case inRow && se.Name.Local == "c":
				col := len(row)
				if i := columnIndex(attr(se, "r")); i >= 0 {
					col = i
				}
				val, err := r.cellValue(attr(se, "t"))
				if err != nil {
					return nil, err
				}
				for len(row) <= col {
					row = append(row, "")
				}
				row[col] = val
			}
		case xml.EndElement:
			if se.Name.Local == "row" {
				return row, nil
			}
		}
	}
}

// cellValue reads up to the closing </c>, taking the <v> or inline <t> text.
func (r *sheetRows) cellValue(typ string) (string, error) {
	var val strings.Builder
	capture := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return "", fmt.Errorf("parse cell: %w", err)
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				capture = true
			}
		case xml.CharData:
			if capture {
				val.Write(se)
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "v", "t":
				capture = false
			case "c":
				if typ != "s" {
					return val.String(), nil
				}
				idx, err := strconv.Atoi(strings.TrimSpace(val.String()))
				if err != nil || idx < 0 || idx >= len(r.shared) {
					return "", nil
				}
				return r.shared[idx], nil
			}
		}
	}
}

// columnIndex converts the letters of an A1 reference to a 0-based column.
func columnIndex(ref string) int {
	idx := 0
	for _, c := range strings.ToUpper(ref) {
		if c < 'A' || c > 'Z' {
			break
		}
		idx = idx*26 + int(c-'A'+1)
	}
	return idx - 1
}
