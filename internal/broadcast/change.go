// Package broadcast fans committed row changes out to in-process subscribers
// and, when configured, to Redis and NATS for other instances.
package broadcast

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Op is the kind of row mutation.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change describes one committed row mutation.
type Change struct {
	Table       string      `json:"table"`
	Op          Op          `json:"op"`
	RowID       uuid.UUID   `json:"row_id"`
	ProjectID   *uuid.UUID  `json:"project_id,omitempty"`
	New         interface{} `json:"new,omitempty"`
	Old         interface{} `json:"old,omitempty"`
	CommittedAt time.Time   `json:"committed_at"`
}

// NewChange builds a change for a row that belongs to projectID (uuid.Nil for none).
func NewChange(table string, op Op, rowID, projectID uuid.UUID, newRow, oldRow interface{}) Change {
	c := Change{Table: table, Op: op, RowID: rowID, New: newRow, Old: oldRow, CommittedAt: time.Now().UTC()}
	if projectID != uuid.Nil {
		c.ProjectID = &projectID
	}
	return c
}

// Filter is a single equality predicate in the form <column>=eq.<value>.
type Filter struct {
	Column string
	Value  string
}

// ParseFilter parses "<column>=eq.<value>". An empty string yields nil.
func ParseFilter(s string) (*Filter, error) {
	if s == "" {
		return nil, nil
	}
	column, rest, ok := strings.Cut(s, "=")
	if !ok || column == "" {
		return nil, fmt.Errorf("filter %q: missing '='", s)
	}
	value, ok := strings.CutPrefix(rest, "eq.")
	if !ok {
		return nil, fmt.Errorf("filter %q: only eq is supported", s)
	}
	if value == "" {
		return nil, fmt.Errorf("filter %q: empty value", s)
	}
	return &Filter{Column: column, Value: value}, nil
}

// Matches reports whether c satisfies f. Columns other than id and project_id
// are read from the new row, or the old row for deletes.
func (f *Filter) Matches(c Change) bool {
	if f == nil {
		return true
	}
	switch f.Column {
	case "id", "row_id":
		return c.RowID.String() == f.Value
	case "project_id":
		if c.ProjectID != nil {
			return c.ProjectID.String() == f.Value
		}
	}
	row := c.New
	if c.Op == OpDelete || row == nil {
		row = c.Old
	}
	v, ok := column(row, f.Column)
	return ok && v == f.Value
}

func column(row interface{}, name string) (string, bool) {
	if row == nil {
		return "", false
	}
	m, ok := row.(map[string]interface{})
	if !ok {
		raw, err := json.Marshal(row)
		if err != nil {
			return "", false
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			return "", false
		}
	}
	v, ok := m[name]
	if !ok || v == nil {
		return "", false
	}
	return fmt.Sprint(v), true
}

// Subscription selects changes of one table, optionally filtered.
type Subscription struct {
	Table  string
	Filter *Filter
}

func (s Subscription) Matches(c Change) bool {
	return s.Table == c.Table && s.Filter.Matches(c)
}
