package manager

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"TrafficSentinel/internal/alerter"
	"TrafficSentinel/internal/config"
	"TrafficSentinel/internal/factory"
	"TrafficSentinel/internal/metrics"
	"TrafficSentinel/internal/model"
	"TrafficSentinel/internal/notification"
	_ "TrafficSentinel/internal/output" // Registers csv, gob, clickhouse and postgres writers
	"TrafficSentinel/internal/pipeline"
	"TrafficSentinel/internal/probe"

	"go.uber.org/zap"
)

// Publisher sends the anomalies of a table to subscribers.
type Publisher interface {
	Publish(ctx context.Context, table *model.Table) (int, error)
	Close()
}

// Manager runs the pipeline and hands each resulting table to the writers,
// the anomaly publisher and the alerter.
type Manager struct {
	pipeline  *pipeline.Pipeline
	writers   []model.Writer
	publisher Publisher
	alerter   *alerter.Alerter
	logger    *zap.Logger
}

// NewManager creates a Manager and every output enabled in cfg.
func NewManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Manager, error) {
	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	writers, err := factory.Create(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		pipeline: p,
		writers:  writers,
		logger:   logger.With(zap.String("component", "manager")),
	}

	if cfg.Publisher.Enabled {
		pub, err := probe.NewPublisher(cfg.Publisher, logger)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("failed to create publisher: %w", err)
		}
		m.publisher = pub
	}

	if cfg.Alerter.Enabled {
		if cfg.SMTP.Host != "" {
			m.alerter, err = alerter.NewAlerter(cfg.Alerter, notification.NewEmailNotifier(cfg.SMTP), logger)
			if err != nil {
				m.Close()
				return nil, fmt.Errorf("failed to create alerter: %w", err)
			}
			m.logger.Info("alerter enabled")
		} else {
			m.logger.Warn("alerter is enabled in config, but no notifier is configured; alerts will not be sent")
		}
	}

	return m, nil
}

// New assembles a Manager from already constructed parts. publisher and
// alert may be nil.
func New(p *pipeline.Pipeline, writers []model.Writer, publisher Publisher, alert *alerter.Alerter, logger *zap.Logger) *Manager {
	return &Manager{
		pipeline:  p,
		writers:   writers,
		publisher: publisher,
		alerter:   alert,
		logger:    logger.With(zap.String("component", "manager")),
	}
}

// Analyze runs the pipeline only. The table is not handed to any output.
func (m *Manager) Analyze(ctx context.Context, packets iter.Seq[model.RawPacket]) (*model.Table, error) {
	return m.pipeline.Run(ctx, packets)
}

// Run runs the pipeline and delivers the table. Pipeline errors are returned
// without a table. Output failures do not stop the other outputs; they are
// joined into the returned error together with the table.
func (m *Manager) Run(ctx context.Context, packets iter.Seq[model.RawPacket]) (*model.Table, error) {
	table, err := m.pipeline.Run(ctx, packets)
	if err != nil {
		return nil, err
	}
	return table, m.Deliver(ctx, table)
}

// Deliver writes the table through every writer concurrently, then publishes
// its anomalies and evaluates the alert rule.
func (m *Manager) Deliver(ctx context.Context, table *model.Table) error {
	errs := make([]error, len(m.writers))

	var wg sync.WaitGroup
	wg.Add(len(m.writers))
	for i, w := range m.writers {
		go func(i int, w model.Writer) {
			defer wg.Done()
			errs[i] = m.write(ctx, w, table)
		}(i, w)
	}
	wg.Wait()

	if m.publisher != nil {
		if _, err := m.publisher.Publish(ctx, table); err != nil {
			m.logger.Error("failed to publish anomalies", zap.Error(err))
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if m.alerter != nil {
		if _, err := m.alerter.Evaluate(table); err != nil {
			m.logger.Error("failed to send alert", zap.Error(err))
			errs = append(errs, fmt.Errorf("alerter: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (m *Manager) write(ctx context.Context, w model.Writer, table *model.Table) error {
	start := time.Now()
	err := w.Write(ctx, table)

	status := "ok"
	if err != nil {
		status = "error"
		m.logger.Error("error writing table",
			zap.String("writer", w.Name()),
			zap.String("run_id", table.RunID.String()),
			zap.Error(err),
		)
		err = fmt.Errorf("writer %s: %w", w.Name(), err)
	}
	metrics.WriterDuration.WithLabelValues(w.Name(), status).Observe(time.Since(start).Seconds())
	return err
}

// Close releases every writer and the publisher connection.
func (m *Manager) Close() {
	for _, w := range m.writers {
		if err := w.Close(); err != nil {
			m.logger.Warn("error closing writer", zap.String("writer", w.Name()), zap.Error(err))
		}
	}
	if m.publisher != nil {
		m.publisher.Close()
	}
	m.logger.Info("manager stopped")
}
