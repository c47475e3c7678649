package extractor

import (
	"errors"
	"slices"
	"testing"
	"time"

	"TrafficSentinel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func packet(length int, src, dst, proto string) model.RawPacket {
	return model.RawPacket{
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Length:    length,
		SrcAddr:   src,
		DstAddr:   dst,
		Protocol:  proto,
	}
}

func TestExtract_FlowIDAndOrder(t *testing.T) {
	in := []model.RawPacket{
		packet(60, "10.0.0.1", "10.0.0.2", "TCP"),
		packet(70, "10.0.0.3", "10.0.0.4", "UDP"),
		packet(60, "10.0.0.1", "10.0.0.2", "TCP"),
	}
	in[0].Flags = model.NewFlags("0x0002")

	e := New(zap.NewNop())
	rows := slices.Collect(e.Extract(slices.Values(in)))

	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.Equal(t, row.SrcAddr+"_"+row.DstAddr+"_"+row.Protocol, row.FlowID)
		assert.Equal(t, in[i].Length, row.PacketLength, "order must follow capture order")
	}
	assert.Equal(t, "10.0.0.1_10.0.0.2_TCP", rows[0].FlowID)
	assert.Equal(t, rows[0].FlowID, rows[2].FlowID, "duplicates are kept")
	assert.Equal(t, model.NewFlags("0x0002"), rows[0].Flags)
	assert.Equal(t, model.NoFlags, rows[1].Flags)
}

func TestExtract_SkipsMalformedRecords(t *testing.T) {
	in := []model.RawPacket{
		packet(60, "a", "b", "TCP"),
		packet(model.UnknownLength, "a", "b", "TCP"),
		packet(42, "", "", ""), // link-layer frame
		packet(42, "a", "", "UDP"),
		packet(98, "a", "b", ""), // ICMP
		packet(0, "c", "d", "UDP"),
	}

	var skipped []*MalformedRecordError
	e := New(zap.NewNop())
	e.OnSkip = func(err *MalformedRecordError) { skipped = append(skipped, err) }

	rows := slices.Collect(e.Extract(slices.Values(in)))

	require.Len(t, rows, 2)
	assert.Equal(t, 60, rows[0].PacketLength)
	assert.Equal(t, 0, rows[1].PacketLength, "zero length is a valid length")

	stats := e.Stats()
	assert.Equal(t, 6, stats.Seen)
	assert.Equal(t, 4, stats.Skipped)
	assert.Equal(t, map[string]int{
		FieldLength:      1,
		FieldSource:      1,
		FieldDestination: 1,
		FieldProtocol:    1,
	}, stats.SkippedByField)

	require.Len(t, skipped, 4)
	assert.Equal(t, 1, skipped[0].Index)
	assert.Equal(t, FieldLength, skipped[0].Field)
	assert.Equal(t, 4, skipped[3].Index)

	var target *MalformedRecordError
	assert.True(t, errors.As(error(skipped[2]), &target))
	assert.Equal(t, "packet record 3: missing destination", target.Error())
}

func TestExtract_IsLazy(t *testing.T) {
	pulled := 0
	source := func(yield func(model.RawPacket) bool) {
		for i := 0; i < 100; i++ {
			pulled++
			if !yield(packet(i, "a", "b", "TCP")) {
				return
			}
		}
	}

	e := New(zap.NewNop())
	for row := range e.Extract(source) {
		if row.PacketLength == 2 {
			break
		}
	}
	assert.Equal(t, 3, pulled)
}

func TestExtract_StatsResetPerIteration(t *testing.T) {
	in := []model.RawPacket{packet(1, "", "b", "TCP"), packet(2, "a", "b", "TCP")}
	e := New(zap.NewNop())
	seq := e.Extract(slices.Values(in))

	_ = slices.Collect(seq)
	_ = slices.Collect(seq)
	assert.Equal(t, 2, e.Stats().Seen)
	assert.Equal(t, 1, e.Stats().Skipped)
}
