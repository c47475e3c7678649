package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"TrafficSentinel/internal/config"
	"TrafficSentinel/internal/encoder"
	"TrafficSentinel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPipeline(t *testing.T, mutate func(*config.Config)) *Pipeline {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	p, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	return p
}

// outlierCapture returns nine ~60 byte TCP packets of one flow and a single
// 1500 byte UDP packet of a flow seen nowhere else.
func outlierCapture() []model.RawPacket {
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	var packets []model.RawPacket
	for i, length := range []int{60, 61, 59, 60, 62, 58, 60, 61, 59} {
		packets = append(packets, model.RawPacket{
			Timestamp: base.Add(time.Duration(i) * time.Millisecond),
			Length:    length,
			Protocol:  "TCP",
			SrcAddr:   "10.0.0.1",
			DstAddr:   "10.0.0.2",
			Flags:     model.NewFlags("0x0010"),
		})
	}
	packets = append(packets, model.RawPacket{
		Timestamp: base.Add(time.Second),
		Length:    1500,
		Protocol:  "UDP",
		SrcAddr:   "203.0.113.66",
		DstAddr:   "198.51.100.99",
	})
	return packets
}

func TestRun_FlagsTheOutlier(t *testing.T) {
	p := newPipeline(t, nil)

	table, err := p.Run(context.Background(), slices.Values(outlierCapture()))
	require.NoError(t, err)
	require.Len(t, table.Rows, 10)

	anomalies := table.Anomalies()
	require.Len(t, anomalies, 1)
	assert.Equal(t, 1500, anomalies[0].PacketLength)
	assert.Equal(t, "203.0.113.66_198.51.100.99_UDP", anomalies[0].FlowID)
	assert.Equal(t, model.LabelAnomaly, table.Rows[9].Label)

	assert.Equal(t, 10, table.Stats.PacketsSeen)
	assert.Equal(t, 10, table.Stats.Rows)
	assert.Equal(t, 1, table.Stats.Anomalies)
	assert.NotEqual(t, [16]byte{}, [16]byte(table.RunID))
}

func TestRun_Reproducible(t *testing.T) {
	in := outlierCapture()
	for i := 0; i < 20; i++ {
		in = append(in, model.RawPacket{
			Length:   40 + (i*37)%900,
			Protocol: []string{"TCP", "UDP"}[i%2],
			SrcAddr:  fmt.Sprintf("10.1.0.%d", i%4),
			DstAddr:  fmt.Sprintf("10.2.0.%d", i%3),
		})
	}

	a, err := newPipeline(t, nil).Run(context.Background(), slices.Values(in))
	require.NoError(t, err)
	b, err := newPipeline(t, nil).Run(context.Background(), slices.Values(in))
	require.NoError(t, err)

	require.Len(t, b.Rows, len(a.Rows))
	for i := range a.Rows {
		assert.Equal(t, a.Rows[i].Label, b.Rows[i].Label)
		assert.Equal(t, a.Rows[i].Score, b.Rows[i].Score)
	}
	assert.Equal(t, 3, a.Stats.Anomalies)
}

func TestRun_EmptyInput(t *testing.T) {
	p := newPipeline(t, nil)

	table, err := p.Run(context.Background(), slices.Values([]model.RawPacket(nil)))
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Nil(t, table)
}

func TestRun_OnlyMalformedRecords(t *testing.T) {
	p := newPipeline(t, nil)
	in := []model.RawPacket{
		{Length: 42},
		{Length: 98, SrcAddr: "10.0.0.1", DstAddr: "10.0.0.2"},
	}

	table, err := p.Run(context.Background(), slices.Values(in))
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Nil(t, table)
}

func TestRun_SkipsMalformedRecords(t *testing.T) {
	p := newPipeline(t, nil)
	in := append(outlierCapture(), model.RawPacket{Length: 64}, model.RawPacket{Length: 98, SrcAddr: "a", DstAddr: "b"})

	table, err := p.Run(context.Background(), slices.Values(in))
	require.NoError(t, err)
	assert.Equal(t, 12, table.Stats.PacketsSeen)
	assert.Equal(t, 2, table.Stats.RecordsSkipped)
	assert.Len(t, table.Rows, 10)
}

func TestRun_SingleRowIsNormal(t *testing.T) {
	p := newPipeline(t, nil)
	table, err := p.Run(context.Background(), slices.Values(outlierCapture()[9:]))
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, model.LabelNormal, table.Rows[0].Label)
}

func TestRun_CategoriesRoundTrip(t *testing.T) {
	p := newPipeline(t, nil)
	table, err := p.Run(context.Background(), slices.Values(outlierCapture()))
	require.NoError(t, err)

	cb, err := encoder.FromCategories(table.Categories)
	require.NoError(t, err)
	for _, row := range table.Rows {
		src, dst, proto, err := cb.DecodeRow(row.EncodedRow)
		require.NoError(t, err)
		assert.Equal(t, row.SrcAddr, src)
		assert.Equal(t, row.DstAddr, dst)
		assert.Equal(t, row.Protocol, proto)
	}
}

func TestRun_SavesCodebook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codebook.json")
	p := newPipeline(t, func(c *config.Config) { c.Encoder.VocabularyPath = path })

	table, err := p.Run(context.Background(), slices.Values(outlierCapture()))
	require.NoError(t, err)

	cb, runID, err := encoder.LoadCodebook(path)
	require.NoError(t, err)
	assert.Equal(t, table.RunID, runID)
	assert.Equal(t, table.Categories, cb.Categories())
}

func TestRun_Canceled(t *testing.T) {
	p := newPipeline(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, slices.Values(outlierCapture()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Analyzer.Contamination = 2
	_, err := New(cfg, zap.NewNop())
	assert.Error(t, err)
}
