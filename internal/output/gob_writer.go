package output

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"TrafficSentinel/internal/config"
	"TrafficSentinel/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	rowsFileName    = "rows.dat"
	summaryFileName = "summary.json"

	snapshotDirLayout = "2006-01-02_15-04-05"
)

// SummaryData holds the metadata of a snapshot.
type SummaryData struct {
	RunID          string              `json:"run_id"`
	PacketsSeen    int                 `json:"packets_seen"`
	RecordsSkipped int                 `json:"records_skipped"`
	Rows           int                 `json:"rows"`
	Anomalies      int                 `json:"anomalies"`
	Categories     map[string][]string `json:"categories"`
	Timestamp      string              `json:"timestamp"`
}

// GobWriter writes scored tables to disk as gob snapshots.
type GobWriter struct {
	rootPath string
	logger   *zap.Logger
}

// NewGobWriter creates a new snapshot writer rooted at cfg.RootPath.
func NewGobWriter(cfg config.GobConfig, logger *zap.Logger) (*GobWriter, error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("gob writer: root_path is required")
	}
	return &GobWriter{rootPath: cfg.RootPath, logger: logger.With(zap.String("writer", "gob"))}, nil
}

func (w *GobWriter) Name() string { return "gob" }

// Write creates <root>/<timestamp>/<run id>/ holding the rows and a summary.
func (w *GobWriter) Write(ctx context.Context, table *model.Table) error {
	// 1. Create timestamped directory
	dir := SnapshotDir(w.rootPath, table)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// 2. Write the rows
	rowsPath := filepath.Join(dir, rowsFileName)
	file, err := os.Create(rowsPath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file '%s': %w", rowsPath, err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(table.Rows); err != nil {
		return fmt.Errorf("failed to encode rows to gob for file '%s': %w", rowsPath, err)
	}

	// 3. Write summary file
	summary := SummaryData{
		RunID:          table.RunID.String(),
		PacketsSeen:    table.Stats.PacketsSeen,
		RecordsSkipped: table.Stats.RecordsSkipped,
		Rows:           len(table.Rows),
		Anomalies:      table.Stats.Anomalies,
		Categories:     table.Categories,
		Timestamp:      table.CreatedAt.UTC().Format(time.RFC3339),
	}
	summaryFile, err := os.Create(filepath.Join(dir, summaryFileName))
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer summaryFile.Close()

	jsonEncoder := json.NewEncoder(summaryFile)
	jsonEncoder.SetIndent("", "  ")
	if err := jsonEncoder.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}

	w.logger.Info("wrote snapshot", zap.String("dir", dir), zap.Int("rows", len(table.Rows)))
	return nil
}

func (w *GobWriter) Close() error { return nil }

// SnapshotDir returns the directory a table is written to under rootPath.
func SnapshotDir(rootPath string, table *model.Table) string {
	return filepath.Join(rootPath, table.CreatedAt.UTC().Format(snapshotDirLayout), table.RunID.String())
}

// ReadSnapshot loads a table previously written by GobWriter from dir.
func ReadSnapshot(dir string) (*model.Table, error) {
	data, err := os.ReadFile(filepath.Join(dir, summaryFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}
	var summary SummaryData
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w", err)
	}
	runID, err := uuid.Parse(summary.RunID)
	if err != nil {
		return nil, fmt.Errorf("invalid run id in summary: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339, summary.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp in summary: %w", err)
	}

	file, err := os.Open(filepath.Join(dir, rowsFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot rows: %w", err)
	}
	defer file.Close()

	var rows []model.ScoredRow
	if err := gob.NewDecoder(file).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot rows: %w", err)
	}

	return &model.Table{
		RunID:      runID,
		CreatedAt:  createdAt,
		Rows:       rows,
		Categories: summary.Categories,
		Stats: model.RunStats{
			PacketsSeen:    summary.PacketsSeen,
			RecordsSkipped: summary.RecordsSkipped,
			Rows:           summary.Rows,
			Anomalies:      summary.Anomalies,
		},
	}, nil
}
