package table

// Row is a single record of a Table, mapping column names to text values.
// Values are opaque text; nothing is ever parsed as a number or date.
// A row may be sparse: columns introduced later in a run are simply absent
// until normalization or save fills them with empty strings.
type Row map[string]string

// Value returns the value for the named column. A missing column yields a
// *MissingColumnError, which the task runner classifies as a row-level
// recoverable failure rather than a fatal one.
func (r Row) Value(name string) (string, error) {
	v, ok := r[name]
	if !ok {
		return "", &MissingColumnError{Column: name, Row: r}
	}
	return v, nil
}

// Has reports whether the row contains the named column.
func (r Row) Has(name string) bool {
	_, ok := r[name]
	return ok
}

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}
