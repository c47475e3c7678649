package model

import "context"

// Writer defines a generic interface for persisting a scored table.
type Writer interface {
	// Name returns the writer type, used in logs and metrics.
	Name() string

	// Write persists the table. Implementations must not modify it.
	Write(ctx context.Context, table *Table) error

	// Close releases any connection held by the writer.
	Close() error
}
