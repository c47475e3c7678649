package alerter

import (
	"fmt"
	"strings"

	"TrafficSentinel/internal/config"
	"TrafficSentinel/internal/model"

	"github.com/gomarkdown/markdown"
	"go.uber.org/zap"
)

// Alerter sends an anomaly summary of a scored table through a notifier.
type Alerter struct {
	minAnomalies int
	maxRows      int
	notifier     model.Notifier
	logger       *zap.Logger
}

// NewAlerter creates a new Alerter.
func NewAlerter(cfg config.AlerterConfig, notifier model.Notifier, logger *zap.Logger) (*Alerter, error) {
	if notifier == nil {
		return nil, fmt.Errorf("alerter requires a notifier")
	}
	return &Alerter{
		minAnomalies: cfg.MinAnomalies,
		maxRows:      cfg.MaxRows,
		notifier:     notifier,
		logger:       logger.With(zap.String("component", "alerter")),
	}, nil
}

// Evaluate notifies when the table holds at least the configured number of
// anomalies. It reports whether a notification was sent.
func (a *Alerter) Evaluate(table *model.Table) (bool, error) {
	anomalies := table.Anomalies()
	if len(anomalies) == 0 || len(anomalies) < a.minAnomalies {
		return false, nil
	}

	body := markdown.ToHTML([]byte(Summary(table, anomalies, a.maxRows)), nil, nil)
	subject := fmt.Sprintf("TrafficSentinel Alert Summary (%d anomalies)", len(anomalies))
	if err := a.notifier.Send(subject, string(body)); err != nil {
		return false, fmt.Errorf("failed to send alert notification: %w", err)
	}

	a.logger.Info("alert notification sent",
		zap.String("run_id", table.RunID.String()),
		zap.Int("anomalies", len(anomalies)),
	)
	return true, nil
}

// Summary renders the markdown body of an alert. At most maxRows anomalies
// are listed, highest score first in table order of equal scores.
func Summary(table *model.Table, anomalies []model.ScoredRow, maxRows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# TrafficSentinel Alert Summary\n\n")
	fmt.Fprintf(&b, "Run `%s` flagged **%d** of %d rows as anomalous", table.RunID, len(anomalies), len(table.Rows))
	if table.Stats.RecordsSkipped > 0 {
		fmt.Fprintf(&b, " (%d packet records skipped)", table.Stats.RecordsSkipped)
	}
	b.WriteString(".\n\n")

	b.WriteString("| Score | Flow | Length | Flags | Timestamp |\n")
	b.WriteString("|---|---|---|---|---|\n")

	listed := topByScore(anomalies, maxRows)
	for _, row := range listed {
		fmt.Fprintf(&b, "| %.4f | `%s` | %d | %s | %s |\n",
			row.Score, row.FlowID, row.PacketLength, row.Flags.String(), row.Timestamp.UTC().Format("2006-01-02 15:04:05.000"))
	}
	if rest := len(anomalies) - len(listed); rest > 0 {
		fmt.Fprintf(&b, "\n_%d more anomalies not shown._\n", rest)
	}
	return b.String()
}
