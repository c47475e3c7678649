package model

import (
	"time"

	"github.com/google/uuid"
)

// Column names of the categorical fields, shared by the encoder and the writers.
const (
	ColumnSource      = "source_ip"
	ColumnDestination = "destination_ip"
	ColumnProtocol    = "protocol"
)

// Table is the result snapshot of one pipeline run. It is built once and
// never mutated afterwards; the next run produces a new Table.
type Table struct {
	RunID     uuid.UUID
	CreatedAt time.Time
	Rows      []ScoredRow
	Stats     RunStats

	// Categories holds, per categorical column, the sorted distinct values of
	// this run. A value's index in its slice is its encoded code.
	Categories map[string][]string
}

// Anomalies returns the rows labelled as anomalous, in table order.
func (t *Table) Anomalies() []ScoredRow {
	var out []ScoredRow
	for _, row := range t.Rows {
		if row.Label == LabelAnomaly {
			out = append(out, row)
		}
	}
	return out
}
