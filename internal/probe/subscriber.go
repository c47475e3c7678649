package probe

import (
	"fmt"

	"TrafficSentinel/internal/config"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// EventHandler processes a received anomaly event.
type EventHandler func(ev AnomalyEvent)

// Subscriber receives anomaly events from a NATS subject.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
	logger  *zap.Logger
}

// NewSubscriber creates a new NATS subscriber.
func NewSubscriber(cfg config.PublisherConfig, logger *zap.Logger) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("trafficsentinel-watch"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	logger = logger.With(zap.String("component", "subscriber"))
	logger.Info("connected to NATS server", zap.String("url", cfg.NATSURL))
	return &Subscriber{nc: nc, subject: cfg.Subject, logger: logger}, nil
}

// Start subscribes to the subject and passes every decoded event to handler.
// Payloads that fail to decode are logged and dropped.
func (s *Subscriber) Start(handler EventHandler) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		ev, err := DecodeEvent(msg.Data)
		if err != nil {
			s.logger.Warn("dropping malformed event", zap.Error(err))
			return
		}
		handler(ev)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to '%s': %w", s.subject, err)
	}
	s.sub = sub
	s.logger.Info("subscribed, waiting for events", zap.String("subject", s.subject))
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		s.logger.Info("NATS connection closed")
	}
}
