package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"TrafficSentinel/internal/config"
	"TrafficSentinel/internal/encoder"
	"TrafficSentinel/internal/engine/scorer"
	"TrafficSentinel/internal/extractor"
	"TrafficSentinel/internal/metrics"
	"TrafficSentinel/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrEmptyInput is returned when extraction yields no usable rows.
var ErrEmptyInput = errors.New("no usable packet records in input")

// Pipeline runs extraction, encoding and scoring over one batch of packets.
type Pipeline struct {
	scorer         *scorer.Scorer
	logger         *zap.Logger
	vocabularyPath string
}

// New creates a Pipeline from the analyzer and encoder configuration.
func New(cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	s, err := scorer.New(scorer.Config{
		Contamination: cfg.Analyzer.Contamination,
		EnsembleSize:  cfg.Analyzer.EnsembleSize,
		RandomSeed:    cfg.Analyzer.Seed(),
		MaxSamples:    cfg.Analyzer.MaxSamples,
		Workers:       cfg.Analyzer.NumWorkers,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid analyzer configuration: %w", err)
	}
	return &Pipeline{
		scorer:         s,
		logger:         logger.With(zap.String("component", "pipeline")),
		vocabularyPath: cfg.Encoder.VocabularyPath,
	}, nil
}

// Run consumes packets once and returns the scored table. It returns
// ErrEmptyInput, and no table, when no record carries the required fields.
func (p *Pipeline) Run(ctx context.Context, packets iter.Seq[model.RawPacket]) (*model.Table, error) {
	start := time.Now()
	table, err := p.run(ctx, packets, start)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues(status(err)).Inc()
		return nil, err
	}
	metrics.PipelineRuns.WithLabelValues("ok").Inc()
	metrics.PipelineDuration.Observe(table.Stats.Duration.Seconds())

	p.logger.Info("pipeline run complete",
		zap.String("run_id", table.RunID.String()),
		zap.Int("packets", table.Stats.PacketsSeen),
		zap.Int("skipped", table.Stats.RecordsSkipped),
		zap.Int("rows", table.Stats.Rows),
		zap.Int("anomalies", table.Stats.Anomalies),
		zap.Duration("duration", table.Stats.Duration),
	)
	return table, nil
}

func (p *Pipeline) run(ctx context.Context, packets iter.Seq[model.RawPacket], start time.Time) (*model.Table, error) {
	// 1. Extract
	ext := extractor.New(p.logger)
	rows := slices.Collect(ext.Extract(packets))
	stats := ext.Stats()
	if stats.Skipped > 0 {
		p.logger.Info("skipped packet records without IP/transport fields",
			zap.Int("skipped", stats.Skipped),
			zap.Any("by_field", stats.SkippedByField),
		)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 2. Encode
	codebook := encoder.FitCodebook(rows)
	encoded, err := codebook.EncodeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rows: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 3. Score
	results, err := p.scorer.Score(scorer.FeatureMatrix(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to score rows: %w", err)
	}

	// 4. Emit
	table := &model.Table{
		RunID:      uuid.New(),
		CreatedAt:  time.Now().UTC(),
		Rows:       make([]model.ScoredRow, len(encoded)),
		Categories: codebook.Categories(),
	}
	anomalies := 0
	for i, row := range encoded {
		table.Rows[i] = model.ScoredRow{EncodedRow: row, Score: results[i].Score, Label: results[i].Label}
		if results[i].Label == model.LabelAnomaly {
			anomalies++
		}
	}
	table.Stats = model.RunStats{
		PacketsSeen:    stats.Seen,
		RecordsSkipped: stats.Skipped,
		Rows:           len(table.Rows),
		Anomalies:      anomalies,
		Duration:       time.Since(start),
	}

	if p.vocabularyPath != "" {
		if err := encoder.SaveCodebook(p.vocabularyPath, table.RunID, codebook); err != nil {
			return nil, fmt.Errorf("failed to save codebook: %w", err)
		}
		p.logger.Info("codebook saved", zap.String("path", p.vocabularyPath))
	}

	return table, nil
}

func status(err error) string {
	var invalid *scorer.InvalidFeatureError
	var unknown *encoder.UnknownCategoryError
	switch {
	case errors.Is(err, ErrEmptyInput):
		return "empty_input"
	case errors.As(err, &invalid):
		return "invalid_feature"
	case errors.As(err, &unknown):
		return "unknown_category"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
