package table

import (
	"fmt"
	"sort"
	"strings"
)

// MissingColumnError is returned by Row.Value when a column is absent.
// It lists the columns the row does have, so a typo in an operation's
// column name is obvious from the message alone.
type MissingColumnError struct {
	Column string
	Row    Row
}

func (e *MissingColumnError) Error() string {
	names := make([]string, 0, len(e.Row))
	for k := range e.Row {
		names = append(names, k)
	}
	sort.Strings(names)
	return fmt.Sprintf("missing column %q, columns in row: %s",
		e.Column, strings.Join(names, ", "))
}

// ParseError indicates that an input file could not be parsed into a Table.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parsing table: %v", e.Err)
	}
	return fmt.Sprintf("parsing table %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
