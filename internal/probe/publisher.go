package probe

import (
	"context"
	"fmt"

	"TrafficSentinel/internal/config"
	"TrafficSentinel/internal/model"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher publishes anomaly events to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.PublisherConfig, logger *zap.Logger) (*Publisher, error) {
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("trafficsentinel-publisher"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	logger = logger.With(zap.String("component", "publisher"))
	logger.Info("connected to NATS server", zap.String("url", cfg.NATSURL))
	return &Publisher{nc: nc, subject: cfg.Subject, logger: logger}, nil
}

// Publish sends one event per anomalous row of the table and flushes the
// connection. It returns the number of events published.
func (p *Publisher) Publish(ctx context.Context, table *model.Table) (int, error) {
	events := Events(table)
	for _, ev := range events {
		data, err := ev.Encode()
		if err != nil {
			return 0, err
		}
		if err := p.nc.Publish(p.subject, data); err != nil {
			return 0, fmt.Errorf("failed to publish event: %w", err)
		}
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return 0, fmt.Errorf("failed to flush nats connection: %w", err)
	}

	p.logger.Info("published anomaly events",
		zap.String("subject", p.subject),
		zap.String("run_id", table.RunID.String()),
		zap.Int("events", len(events)),
	)
	return len(events), nil
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.logger.Info("NATS connection drained and closed")
	}
}
