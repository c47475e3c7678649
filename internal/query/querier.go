package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"TrafficSentinel/internal/config"
	"TrafficSentinel/internal/output"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"
)

// DefaultLimit caps result sets when the request does not.
const DefaultLimit = 100

// RunSummary describes one stored pipeline run.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Rows      uint64    `json:"rows"`
	Anomalies uint64    `json:"anomalies"`
	MaxScore  float64   `json:"max_score"`
}

// AnomalyRecord is one stored anomalous row.
type AnomalyRecord struct {
	RowIndex     uint32    `json:"row_index"`
	Timestamp    time.Time `json:"timestamp"`
	FlowID       string    `json:"flow_id"`
	SrcIP        string    `json:"source_ip"`
	DstIP        string    `json:"destination_ip"`
	Protocol     string    `json:"protocol"`
	PacketLength uint32    `json:"packet_length"`
	TCPFlags     *string   `json:"tcp_flags"`
	Score        float64   `json:"score"`
}

// RunsRequest filters the run listing.
type RunsRequest struct {
	Since time.Time
	Limit int
}

// AnomaliesRequest selects the anomalies of one run.
type AnomaliesRequest struct {
	RunID    string
	Filters  map[string]string
	MinScore float64
	Limit    int
}

// Querier defines the interface for querying stored results.
type Querier interface {
	Runs(ctx context.Context, req RunsRequest) ([]RunSummary, error)
	Anomalies(ctx context.Context, req AnomaliesRequest) ([]AnomalyRecord, error)
}

// clickhouseQuerier implements the Querier interface for ClickHouse.
type clickhouseQuerier struct {
	conn driver.Conn
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := output.ConnectClickHouse(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
}

// Runs lists stored runs, newest first.
func (q *clickhouseQuerier) Runs(ctx context.Context, req RunsRequest) ([]RunSummary, error) {
	sql, args := buildRunsQuery(req)
	rows, err := q.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var runID uuid.UUID
		if err := rows.Scan(&runID, &s.CreatedAt, &s.Rows, &s.Anomalies, &s.MaxScore); err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		s.RunID = runID.String()
		out = append(out, s)
	}
	return out, rows.Err()
}

// Anomalies returns the anomalous rows of a run, highest score first.
func (q *clickhouseQuerier) Anomalies(ctx context.Context, req AnomaliesRequest) ([]AnomalyRecord, error) {
	sql, args, err := buildAnomaliesQuery(req)
	if err != nil {
		return nil, err
	}
	rows, err := q.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var out []AnomalyRecord
	for rows.Next() {
		var a AnomalyRecord
		if err := rows.Scan(&a.RowIndex, &a.Timestamp, &a.FlowID, &a.SrcIP, &a.DstIP, &a.Protocol, &a.PacketLength, &a.TCPFlags, &a.Score); err != nil {
			return nil, fmt.Errorf("failed to scan anomaly: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func limit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	return n
}

func buildRunsQuery(req RunsRequest) (string, []any) {
	var b strings.Builder
	b.WriteString(`
		SELECT
			RunID,
			any(CreatedAt) AS Created,
			count() AS Rows,
			countIf(Label = 'Anomaly') AS Anomalies,
			max(Score) AS MaxScore
		FROM scored_packets`)

	var args []any
	if !req.Since.IsZero() {
		b.WriteString(" WHERE CreatedAt >= ?")
		args = append(args, req.Since)
	}
	fmt.Fprintf(&b, `
		GROUP BY RunID
		ORDER BY Created DESC
		LIMIT %d`, limit(req.Limit))
	return b.String(), args
}

// filterColumns maps the accepted filter keys to their columns.
var filterColumns = map[string]string{
	"source_ip":      "SrcIP",
	"destination_ip": "DstIP",
	"protocol":       "Protocol",
	"flow_id":        "FlowID",
}

func buildAnomaliesQuery(req AnomaliesRequest) (string, []any, error) {
	runID, err := uuid.Parse(req.RunID)
	if err != nil {
		return "", nil, fmt.Errorf("invalid run id '%s': %w", req.RunID, err)
	}

	whereClauses := []string{"RunID = ?", "Label = 'Anomaly'"}
	args := []any{runID}

	// Basic validation to prevent arbitrary column injection
	for _, key := range []string{"source_ip", "destination_ip", "protocol", "flow_id"} {
		if value, ok := req.Filters[key]; ok {
			whereClauses = append(whereClauses, filterColumns[key]+" = ?")
			args = append(args, value)
		}
	}
	for key := range req.Filters {
		if _, ok := filterColumns[key]; !ok {
			return "", nil, fmt.Errorf("unsupported filter: %s, only source_ip, destination_ip, protocol, flow_id are allowed", key)
		}
	}
	if req.MinScore > 0 {
		whereClauses = append(whereClauses, "Score >= ?")
		args = append(args, req.MinScore)
	}

	sql := fmt.Sprintf(`
		SELECT RowIndex, Timestamp, FlowID, SrcIP, DstIP, Protocol, PacketLength, TCPFlags, Score
		FROM scored_packets
		WHERE %s
		ORDER BY Score DESC, RowIndex ASC
		LIMIT %d`, strings.Join(whereClauses, " AND "), limit(req.Limit))
	return sql, args, nil
}
