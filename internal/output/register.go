package output

import (
	"context"

	"TrafficSentinel/internal/config"
	"TrafficSentinel/internal/factory"
	"TrafficSentinel/internal/model"

	"go.uber.org/zap"
)

func init() {
	factory.RegisterWriter("csv", func(_ context.Context, def config.WriterDef, logger *zap.Logger) (model.Writer, error) {
		return NewCSVWriter(def.CSV, logger)
	})
	factory.RegisterWriter("gob", func(_ context.Context, def config.WriterDef, logger *zap.Logger) (model.Writer, error) {
		return NewGobWriter(def.Gob, logger)
	})
	factory.RegisterWriter("clickhouse", func(_ context.Context, def config.WriterDef, logger *zap.Logger) (model.Writer, error) {
		return NewClickHouseWriter(def.ClickHouse, logger)
	})
	factory.RegisterWriter("postgres", func(ctx context.Context, def config.WriterDef, logger *zap.Logger) (model.Writer, error) {
		return NewPostgresWriter(ctx, def.Postgres, logger)
	})
}
