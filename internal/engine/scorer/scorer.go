package scorer

import (
	"fmt"
	"math"
	"sort"

	"TrafficSentinel/internal/engine/iforest"
	"TrafficSentinel/internal/metrics"
	"TrafficSentinel/internal/model"

	"go.uber.org/zap"
)

// quotaTolerance absorbs binary rounding in contamination × rows, so that
// e.g. 0.29 × 100 yields 29 rather than 28.
const quotaTolerance = 1e-9

// FeatureNames lists the columns of the matrix built by FeatureMatrix.
var FeatureNames = []string{"Packet_Length", "Source_IP_Encoded", "Destination_IP_Encoded", "Protocol_Encoded"}

// InvalidFeatureError reports a non-finite value in the feature matrix.
type InvalidFeatureError struct {
	Row    int
	Column int
	Value  float64
}

func (e *InvalidFeatureError) Error() string {
	return fmt.Sprintf("invalid feature value %v at row %d, column %d", e.Value, e.Row, e.Column)
}

// Config holds the scorer options.
type Config struct {
	// Contamination is the fraction of rows labelled Anomaly, in (0, 1).
	Contamination float64
	EnsembleSize  int
	RandomSeed    int64
	MaxSamples    int
	Workers       int
}

// Result is the outcome for one row.
type Result struct {
	Score float64
	Label model.Label
}

// Scorer labels rows of a numeric feature matrix with an isolation forest and
// a fixed anomaly quota.
type Scorer struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a Scorer.
func New(cfg Config, logger *zap.Logger) (*Scorer, error) {
	if cfg.Contamination <= 0 || cfg.Contamination >= 1 || math.IsNaN(cfg.Contamination) {
		return nil, fmt.Errorf("contamination must be in (0, 1), got %v", cfg.Contamination)
	}
	if cfg.EnsembleSize <= 0 {
		cfg.EnsembleSize = iforest.DefaultTrees
	}
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = iforest.DefaultMaxSamples
	}
	return &Scorer{cfg: cfg, logger: logger.With(zap.String("component", "scorer"))}, nil
}

// Score fits a fresh forest on matrix and labels every row. Exactly
// AnomalyQuota(contamination, len(matrix)) rows with the highest scores are
// labelled Anomaly; ties are broken by row order. With fewer than two rows
// every row is Normal.
func (s *Scorer) Score(matrix [][]float64) ([]Result, error) {
	for i, row := range matrix {
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &InvalidFeatureError{Row: i, Column: j, Value: v}
			}
		}
	}

	results := make([]Result, len(matrix))
	for i := range results {
		results[i].Label = model.LabelNormal
	}
	if len(matrix) < 2 {
		s.logger.Debug("too few rows for an isolation forest, labelling all normal", zap.Int("rows", len(matrix)))
		return results, nil
	}

	forest, err := iforest.Fit(matrix, iforest.Options{
		Trees:      s.cfg.EnsembleSize,
		MaxSamples: s.cfg.MaxSamples,
		Seed:       s.cfg.RandomSeed,
		Workers:    s.cfg.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fit isolation forest: %w", err)
	}

	scores, err := forest.Scores(matrix)
	if err != nil {
		return nil, fmt.Errorf("failed to score rows: %w", err)
	}
	for i, score := range scores {
		results[i].Score = score
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	quota := AnomalyQuota(s.cfg.Contamination, len(matrix))
	for _, i := range order[:quota] {
		results[i].Label = model.LabelAnomaly
	}

	metrics.RowsScored.Add(float64(len(results)))
	metrics.AnomaliesFlagged.Add(float64(quota))
	s.logger.Debug("scored feature matrix",
		zap.Int("rows", len(matrix)),
		zap.Int("trees", forest.NumTrees()),
		zap.Int("sample_size", forest.SampleSize()),
		zap.Int("anomalies", quota),
	)
	return results, nil
}

// AnomalyQuota returns floor(contamination × rows).
func AnomalyQuota(contamination float64, rows int) int {
	q := int(math.Floor(contamination*float64(rows) + quotaTolerance))
	return max(0, min(q, rows))
}

// FeatureMatrix builds the numeric matrix [length, src, dst, protocol] of rows.
func FeatureMatrix(rows []model.EncodedRow) [][]float64 {
	matrix := make([][]float64, len(rows))
	for i, row := range rows {
		matrix[i] = []float64{
			float64(row.PacketLength),
			float64(row.SrcEncoded),
			float64(row.DstEncoded),
			float64(row.ProtocolEncoded),
		}
	}
	return matrix
}
