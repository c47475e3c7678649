package output

import (
	"context"
	"fmt"

	"TrafficSentinel/internal/config"
	"TrafficSentinel/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const createScoredPacketsRelation = `
CREATE TABLE IF NOT EXISTS scored_packets (
    run_id            UUID             NOT NULL,
    created_at        TIMESTAMPTZ      NOT NULL,
    row_index         INTEGER          NOT NULL,
    packet_length     INTEGER          NOT NULL,
    ts                TIMESTAMPTZ      NOT NULL,
    tcp_flags         TEXT,
    flow_id           TEXT             NOT NULL,
    src_ip            TEXT             NOT NULL,
    dst_ip            TEXT             NOT NULL,
    protocol          TEXT             NOT NULL,
    src_ip_encoded    INTEGER          NOT NULL,
    dst_ip_encoded    INTEGER          NOT NULL,
    protocol_encoded  INTEGER          NOT NULL,
    score             DOUBLE PRECISION NOT NULL,
    label             TEXT             NOT NULL,
    PRIMARY KEY (run_id, row_index)
)`

// postgresColumns lists the columns filled by CopyFrom, in value order.
var postgresColumns = []string{
	"run_id", "created_at", "row_index", "packet_length", "ts", "tcp_flags",
	"flow_id", "src_ip", "dst_ip", "protocol",
	"src_ip_encoded", "dst_ip_encoded", "protocol_encoded", "score", "label",
}

// PostgresWriter copies scored rows into PostgreSQL.
type PostgresWriter struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresWriter opens a connection pool and ensures the table exists.
func NewPostgresWriter(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*PostgresWriter, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createScoredPacketsRelation); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	logger = logger.With(zap.String("writer", "postgres"))
	logger.Info("connected to PostgreSQL and ensured table exists")
	return &PostgresWriter{pool: pool, logger: logger}, nil
}

func (w *PostgresWriter) Name() string { return "postgres" }

// Write copies every row of the table inside one transaction.
func (w *PostgresWriter) Write(ctx context.Context, table *model.Table) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"scored_packets"}, postgresColumns, pgx.CopyFromRows(postgresRows(table)))
	if err != nil {
		return fmt.Errorf("failed to copy rows: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	w.logger.Info("wrote rows", zap.String("run_id", table.RunID.String()), zap.Int64("rows", n))
	return nil
}

func (w *PostgresWriter) Close() error {
	w.pool.Close()
	return nil
}

func postgresRows(table *model.Table) [][]any {
	rows := make([][]any, len(table.Rows))
	for i, row := range table.Rows {
		rows[i] = []any{
			table.RunID,
			table.CreatedAt,
			int32(i),
			int32(row.PacketLength),
			row.Timestamp,
			nullableFlags(row.Flags),
			row.FlowID,
			row.SrcAddr,
			row.DstAddr,
			row.Protocol,
			int32(row.SrcEncoded),
			int32(row.DstEncoded),
			int32(row.ProtocolEncoded),
			row.Score,
			string(row.Label),
		}
	}
	return rows
}
