// Package dataset loads delimited tabular files into typed, column-oriented tables.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Column kinds.
const (
	KindNumber   = "number"
	KindDatetime = "datetime"
	KindString   = "string"
	KindBoolean  = "boolean"
)

// ErrEmptyFile is returned when the input has no header row.
var ErrEmptyFile = errors.New("dataset has no header row")

// Options controls how a dataset is read.
type Options struct {
	// MaxRows limits rows read; 0 means unlimited.
	MaxRows int
	// Delimiter for CSV. If 0, derived from the file extension (.tsv → tab, else comma).
	Delimiter rune
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// Sheet selects a workbook sheet by name; empty means the first sheet.
	Sheet string
}

// DefaultOptions returns the options used by the pipeline.
func DefaultOptions() Options {
	return Options{DecimalSeparator: '.'}
}

// Column is one named column with raw cells and values typed by Kind.
type Column struct {
	Name string
	Kind string
	// Raw holds trimmed cells, one per row.
	Raw []string
	// Values holds float64 (number), RFC3339 string (datetime), bool (boolean)
	// or string (string); nil marks a missing or unparsable cell.
	Values []any
}

// Table is an in-memory dataset.
type Table struct {
	Name    string
	Columns []*Column
	Rows    int
}

// ColumnNames returns names in file order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Column looks a column up by exact name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Records returns one map per row keyed by column name.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, t.Rows)
	for i := 0; i < t.Rows; i++ {
		rec := make(map[string]any, len(t.Columns))
		for _, c := range t.Columns {
			rec[c.Name] = c.Values[i]
		}
		out[i] = rec
	}
	return out
}

// NonNull returns the typed values that are present.
func (c *Column) NonNull() []any {
	out := make([]any, 0, len(c.Values))
	for _, v := range c.Values {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

// LoadCSV reads a CSV file and infers a kind per column.
func LoadCSV(path string, opt Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(path)
	}
	t, err := Read(f, delim, opt)
	if err != nil {
		return nil, err
	}
	t.Name = filepath.Base(path)
	return t, nil
}

// Read parses delimited text from r.
func Read(r io.Reader, delim rune, opt Options) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if delim != 0 {
		cr.Comma = delim
	}
	return build(cr.Read, opt)
}

// Load reads path as a workbook when it ends in .xlsx and as delimited text otherwise.
func Load(path string, opt Options) (*Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return LoadXLSX(path, opt)
	}
	return LoadCSV(path, opt)
}

// build consumes a header row and then data rows from next until io.EOF.
func build(next func() ([]string, error), opt Options) (*Table, error) {
	header, err := next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	ncol := len(header)
	t := &Table{Columns: make([]*Column, ncol)}
	for i, h := range header {
		name := strings.TrimSpace(h)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		t.Columns[i] = &Column{Name: name}
	}

	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	for t.Rows < maxRows {
		rec, err := next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", t.Rows+1, err)
		}
		for j := 0; j < ncol; j++ {
			v := ""
			if j < len(rec) {
				v = strings.TrimSpace(rec[j])
			}
			t.Columns[j].Raw = append(t.Columns[j].Raw, v)
		}
		t.Rows++
	}

	for _, c := range t.Columns {
		c.infer(opt)
	}
	return t, nil
}

// infer picks the predominant parsed type and fills Values accordingly.
func (c *Column) infer(opt Options) {
	var numCnt, dtCnt, boolCnt, txtCnt int
	for _, v := range c.Raw {
		if v == "" {
			continue
		}
		if _, ok := parseBool(v); ok {
			boolCnt++
			continue
		}
		if _, ok := parseNumeric(v, opt); ok {
			numCnt++
			continue
		}
		if _, ok := parseTimeMaybe(v); ok {
			dtCnt++
			continue
		}
		txtCnt++
	}

	switch {
	case numCnt > 0 && numCnt >= dtCnt && numCnt >= txtCnt && numCnt >= boolCnt:
		c.Kind = KindNumber
	case dtCnt > 0 && dtCnt >= txtCnt && dtCnt >= boolCnt:
		c.Kind = KindDatetime
	case boolCnt > 0 && boolCnt >= txtCnt:
		c.Kind = KindBoolean
	default:
		c.Kind = KindString
	}

	c.Values = make([]any, len(c.Raw))
	for i, v := range c.Raw {
		if v == "" {
			continue
		}
		switch c.Kind {
		case KindNumber:
			if x, ok := parseNumeric(v, opt); ok {
				c.Values[i] = x
			}
		case KindDatetime:
			if ts, ok := parseTimeMaybe(v); ok {
				c.Values[i] = ts.Format(time.RFC3339)
			}
		case KindBoolean:
			if b, ok := parseBool(v); ok {
				c.Values[i] = b
			}
		default:
			c.Values[i] = v
		}
	}
}
