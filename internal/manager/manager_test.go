package manager

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"TrafficSentinel/internal/alerter"
	"TrafficSentinel/internal/config"
	"TrafficSentinel/internal/model"
	"TrafficSentinel/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingWriter struct {
	name   string
	err    error
	mu     sync.Mutex
	tables []*model.Table
	closed bool
}

func (w *recordingWriter) Name() string { return w.name }

func (w *recordingWriter) Write(_ context.Context, t *model.Table) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tables = append(w.tables, t)
	return w.err
}

func (w *recordingWriter) Close() error { w.closed = true; return nil }

type recordingPublisher struct {
	published int
	closed    bool
}

func (p *recordingPublisher) Publish(_ context.Context, t *model.Table) (int, error) {
	p.published += len(t.Anomalies())
	return len(t.Anomalies()), nil
}

func (p *recordingPublisher) Close() { p.closed = true }

type recordingNotifier struct{ subjects []string }

func (n *recordingNotifier) Send(subject, _ string) error {
	n.subjects = append(n.subjects, subject)
	return nil
}

func packets() []model.RawPacket {
	var out []model.RawPacket
	for i := 0; i < 9; i++ {
		out = append(out, model.RawPacket{Length: 60 + i%3, Protocol: "TCP", SrcAddr: "10.0.0.1", DstAddr: "10.0.0.2"})
	}
	return append(out, model.RawPacket{Length: 1500, Protocol: "UDP", SrcAddr: "10.0.0.66", DstAddr: "10.0.0.99"})
}

func newPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(config.Default(), zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestRun_DeliversToEveryOutput(t *testing.T) {
	a, b := &recordingWriter{name: "a"}, &recordingWriter{name: "b"}
	pub := &recordingPublisher{}
	n := &recordingNotifier{}
	alert, err := alerter.NewAlerter(config.AlerterConfig{MinAnomalies: 1, MaxRows: 5}, n, zap.NewNop())
	require.NoError(t, err)

	m := New(newPipeline(t), []model.Writer{a, b}, pub, alert, zap.NewNop())
	table, err := m.Run(context.Background(), slices.Values(packets()))
	require.NoError(t, err)

	require.Len(t, a.tables, 1)
	require.Len(t, b.tables, 1)
	assert.Same(t, table, a.tables[0])
	assert.Same(t, table, b.tables[0])
	assert.Equal(t, 1, pub.published)
	assert.Len(t, n.subjects, 1)

	m.Close()
	assert.True(t, a.closed)
	assert.True(t, pub.closed)
}

func TestRun_WriterFailureDoesNotStopOthers(t *testing.T) {
	boom := errors.New("disk full")
	bad, good := &recordingWriter{name: "bad", err: boom}, &recordingWriter{name: "good"}

	m := New(newPipeline(t), []model.Writer{bad, good}, nil, nil, zap.NewNop())
	table, err := m.Run(context.Background(), slices.Values(packets()))

	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "writer bad")
	require.NotNil(t, table)
	assert.Len(t, good.tables, 1)
}

func TestRun_EmptyInputWritesNothing(t *testing.T) {
	w := &recordingWriter{name: "w"}
	m := New(newPipeline(t), []model.Writer{w}, nil, nil, zap.NewNop())

	table, err := m.Run(context.Background(), slices.Values([]model.RawPacket{{Length: 10}}))
	assert.ErrorIs(t, err, pipeline.ErrEmptyInput)
	assert.Nil(t, table)
	assert.Empty(t, w.tables)
}

func TestAnalyze_SkipsOutputs(t *testing.T) {
	w := &recordingWriter{name: "w"}
	m := New(newPipeline(t), []model.Writer{w}, nil, nil, zap.NewNop())

	table, err := m.Analyze(context.Background(), slices.Values(packets()))
	require.NoError(t, err)
	assert.Len(t, table.Rows, 10)
	assert.Empty(t, w.tables)
}

func TestNewManager_FromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Writers = []config.WriterDef{
		{Type: "csv", Enabled: true, CSV: config.CSVConfig{Path: t.TempDir() + "/out.csv"}},
		{Type: "clickhouse", Enabled: false},
	}
	cfg.Alerter.Enabled = true

	m, err := NewManager(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer m.Close()

	require.Len(t, m.writers, 1)
	assert.Equal(t, "csv", m.writers[0].Name())
	assert.Nil(t, m.alerter, "no smtp host configured")
}
