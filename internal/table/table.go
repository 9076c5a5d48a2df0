// Package table holds the in-memory representation of a delimited text
// dataset: an ordered list of rows with a remembered column order, loaded
// from and saved to CSV.
//
// Design notes, carried over from hard experience with enrichment jobs:
//   - All values are text. No interpreting cells as numbers; too many id
//     columns have been ruined by truncated leading zeros.
//   - A header line is mandatory and column names are unique keys.
//   - All data is read into memory. Not designed for gigabyte files.
package table

import (
	"encoding/csv"
	"io"
	"os"
)

// Table is an ordered collection of Rows sharing a column order.
// Rows may be sparse; Fieldnames unions the column order with any extra
// keys present in the rows so saving always produces a rectangular file.
type Table struct {
	rows    []Row
	columns []string
}

// New returns an empty table with the given column order.
func New(columns ...string) *Table {
	return &Table{columns: columns}
}

// Load parses a CSV file with a header line into a Table.
// Any read or parse failure is reported as a *ParseError.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return t, nil
}

// Read parses CSV data with a header line into a Table.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	t := New(header...)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(Row, len(header))
		for i, name := range header {
			row[name] = record[i]
		}
		t.Append(row)
	}
	return t, nil
}

// Save writes the table to a CSV file at path, header first.
func (t *Table) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := t.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write writes the table as CSV: the full field name set as header, then
// each row in order. A value a row does not have is written as an explicit
// empty string, never omitted, so the output is always rectangular.
func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	fields := t.Fieldnames()
	if err := cw.Write(fields); err != nil {
		return err
	}
	record := make([]string, len(fields))
	for _, row := range t.rows {
		for i, name := range fields {
			record[i] = row[name]
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Append adds a row to the table.
func (t *Table) Append(row Row) {
	t.rows = append(t.rows, row)
}

// Len is the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Row returns the row at index i.
func (t *Table) Row(i int) Row { return t.rows[i] }

// Rows returns the underlying rows in order.
func (t *Table) Rows() []Row { return t.rows }

// Columns returns a copy of the remembered column order.
func (t *Table) Columns() []string {
	c := make([]string, len(t.columns))
	copy(c, t.columns)
	return c
}

// Fieldnames returns the remembered column order extended with any extra
// keys found in rows, in row order then first-seen order within a row's
// introduction. The result covers every key of every row.
func (t *Table) Fieldnames() []string {
	fields := t.Columns()
	seen := make(map[string]struct{}, len(fields))
	for _, name := range fields {
		seen[name] = struct{}{}
	}
	for _, row := range t.rows {
		for name := range row {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				fields = append(fields, name)
			}
		}
	}
	return fields
}

// AddColumn extends the column order with name if not already present.
// The task runner uses this so that columns introduced by an operation are
// appended in introduction order rather than map iteration order.
func (t *Table) AddColumn(name string) {
	for _, c := range t.columns {
		if c == name {
			return
		}
	}
	t.columns = append(t.columns, name)
}

// Slice returns a new table sharing the column order and holding rows [i, j).
func (t *Table) Slice(i, j int) *Table {
	s := New(t.columns...)
	s.rows = append(s.rows, t.rows[i:j]...)
	return s
}

// Concat appends all rows of other to this table and merges the column
// orders, keeping this table's columns first.
func (t *Table) Concat(other *Table) {
	for _, name := range other.Fieldnames() {
		t.AddColumn(name)
	}
	t.rows = append(t.rows, other.rows...)
}

// Normalize back-fills every row with an empty string for each field name it
// lacks, making the table rectangular in memory and not just on save.
func (t *Table) Normalize() {
	fields := t.Fieldnames()
	for _, row := range t.rows {
		for _, name := range fields {
			if _, ok := row[name]; !ok {
				row[name] = ""
			}
		}
	}
	t.columns = fields
}
