// Package ops bundles ready-made operations for common enrichment tasks:
// joining columns, looking up replacement ids in a database, and fetching
// values from an HTTP endpoint.
package ops

import (
	"strings"

	"tabletask/internal/table"
)

// Concat joins the values of Columns, in order, into the Target column.
type Concat struct {
	Columns   []string
	Separator string
	// Target is the output column, "concatenated" when empty.
	Target string
}

func (c *Concat) target() string {
	if c.Target == "" {
		return "concatenated"
	}
	return c.Target
}

func (c *Concat) Apply(row table.Row) (map[string]string, error) {
	parts := make([]string, 0, len(c.Columns))
	for _, name := range c.Columns {
		v, err := row.Value(name)
		if err != nil {
			return nil, err
		}
		parts = append(parts, v)
	}
	return map[string]string{c.target(): strings.Join(parts, c.Separator)}, nil
}

// HasPreviousResult treats a non-empty target column as already done.
func (c *Concat) HasPreviousResult(row table.Row) bool {
	return row[c.target()] != ""
}
