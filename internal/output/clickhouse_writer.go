package output

import (
	"context"
	"fmt"

	"TrafficSentinel/internal/config"
	"TrafficSentinel/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const createScoredPacketsTable = `
CREATE TABLE IF NOT EXISTS scored_packets (
    RunID                 UUID,
    CreatedAt             DateTime,
    RowIndex              UInt32,
    PacketLength          UInt32,
    Timestamp             DateTime64(9),
    TCPFlags              Nullable(String),
    FlowID                String,
    SrcIP                 String,
    DstIP                 String,
    Protocol              LowCardinality(String),
    SrcIPEncoded          UInt32,
    DstIPEncoded          UInt32,
    ProtocolEncoded       UInt32,
    Score                 Float64,
    Label                 LowCardinality(String)
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(CreatedAt)
ORDER BY (RunID, RowIndex);
`

// ClickHouseWriter inserts scored rows into the scored_packets table.
type ClickHouseWriter struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewClickHouseWriter connects to ClickHouse and ensures the table exists.
func NewClickHouseWriter(cfg config.ClickHouseConfig, logger *zap.Logger) (*ClickHouseWriter, error) {
	conn, err := ConnectClickHouse(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createScoredPacketsTable); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	logger = logger.With(zap.String("writer", "clickhouse"))
	logger.Info("connected to ClickHouse and ensured table exists", zap.String("host", cfg.Host))

	return &ClickHouseWriter{conn: conn, logger: logger}, nil
}

// ConnectClickHouse opens and pings a ClickHouse connection.
func ConnectClickHouse(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

func (w *ClickHouseWriter) Name() string { return "clickhouse" }

// Write inserts every row of the table in a single batch.
func (w *ClickHouseWriter) Write(ctx context.Context, table *model.Table) error {
	if len(table.Rows) == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO scored_packets")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for i, row := range table.Rows {
		if err := batch.Append(clickHouseValues(table, i, row)...); err != nil {
			return fmt.Errorf("failed to append row %d to batch: %w", i, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	w.logger.Info("wrote rows", zap.String("run_id", table.RunID.String()), zap.Int("rows", len(table.Rows)))
	return nil
}

func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}

// clickHouseValues returns the column values of one scored_packets row.
func clickHouseValues(table *model.Table, index int, row model.ScoredRow) []any {
	return []any{
		table.RunID,
		table.CreatedAt,
		uint32(index),
		uint32(row.PacketLength),
		row.Timestamp,
		nullableFlags(row.Flags),
		row.FlowID,
		row.SrcAddr,
		row.DstAddr,
		row.Protocol,
		uint32(row.SrcEncoded),
		uint32(row.DstEncoded),
		uint32(row.ProtocolEncoded),
		row.Score,
		string(row.Label),
	}
}
