package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"TrafficSentinel/internal/config"
	"TrafficSentinel/internal/model"

	"go.uber.org/zap"
)

// CSVWriter writes the scored table as a CSV file with the output columns.
type CSVWriter struct {
	path   string
	logger *zap.Logger
}

// NewCSVWriter creates a new CSV writer.
func NewCSVWriter(cfg config.CSVConfig, logger *zap.Logger) (*CSVWriter, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("csv writer: path is required")
	}
	return &CSVWriter{path: cfg.Path, logger: logger.With(zap.String("writer", "csv"))}, nil
}

func (w *CSVWriter) Name() string { return "csv" }

// Write replaces the file at the configured path. The table is first written
// to a temporary file in the same directory and then renamed into place.
func (w *CSVWriter) Write(ctx context.Context, table *model.Table) error {
	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(w.path), ".analyzed-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temporary output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(ctx, tmp, table); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("failed to move output file into place: %w", err)
	}

	w.logger.Info("wrote scored table", zap.String("path", w.path), zap.Int("rows", len(table.Rows)))
	return nil
}

func (w *CSVWriter) Close() error { return nil }

// WriteCSV encodes the table to f: one header line followed by one line per row.
func WriteCSV(ctx context.Context, f io.Writer, table *model.Table) error {
	cw := csv.NewWriter(f)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for i, row := range table.Rows {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := cw.Write(Record(row)); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}
