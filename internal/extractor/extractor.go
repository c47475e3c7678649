package extractor

import (
	"fmt"
	"iter"

	"TrafficSentinel/internal/metrics"
	"TrafficSentinel/internal/model"

	"go.uber.org/zap"
)

// Required fields of a raw packet record.
const (
	FieldLength      = "length"
	FieldSource      = "source"
	FieldDestination = "destination"
	FieldProtocol    = "protocol"
)

// MalformedRecordError describes a packet record that lacks a required field.
// The extractor recovers from it by skipping the record.
type MalformedRecordError struct {
	Index int    // position of the record in the input sequence
	Field string // first missing field
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("packet record %d: missing %s", e.Index, e.Field)
}

// Stats counts the records seen and skipped by the last extraction.
type Stats struct {
	Seen    int
	Skipped int
	// SkippedByField counts skips per missing field.
	SkippedByField map[string]int
}

// Extractor turns raw packet records into flow feature rows.
type Extractor struct {
	logger *zap.Logger
	stats  Stats

	// OnSkip, when set, is called for every skipped record.
	OnSkip func(*MalformedRecordError)
}

// New creates an Extractor.
func New(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger.With(zap.String("component", "extractor"))}
}

// Extract returns a lazy sequence with one FlowRow per usable record, in
// input order. Records missing a required field are skipped and counted.
// Stats are reset each time the returned sequence is iterated.
func (e *Extractor) Extract(packets iter.Seq[model.RawPacket]) iter.Seq[model.FlowRow] {
	return func(yield func(model.FlowRow) bool) {
		e.stats = Stats{SkippedByField: make(map[string]int)}
		index := 0
		for p := range packets {
			i := index
			index++
			e.stats.Seen++
			metrics.PacketsSeen.Inc()

			if field := missingField(p); field != "" {
				e.skip(&MalformedRecordError{Index: i, Field: field})
				continue
			}
			if !yield(toFlowRow(p)) {
				return
			}
		}
	}
}

// Stats returns the counters of the most recent extraction.
func (e *Extractor) Stats() Stats {
	return e.stats
}

func (e *Extractor) skip(err *MalformedRecordError) {
	e.stats.Skipped++
	e.stats.SkippedByField[err.Field]++
	metrics.RecordsSkipped.WithLabelValues(err.Field).Inc()
	e.logger.Debug("skipping packet record", zap.Error(err))
	if e.OnSkip != nil {
		e.OnSkip(err)
	}
}

func missingField(p model.RawPacket) string {
	switch {
	case p.Length < 0:
		return FieldLength
	case p.SrcAddr == "":
		return FieldSource
	case p.DstAddr == "":
		return FieldDestination
	case p.Protocol == "":
		return FieldProtocol
	}
	return ""
}

func toFlowRow(p model.RawPacket) model.FlowRow {
	return model.FlowRow{
		PacketLength: p.Length,
		Timestamp:    p.Timestamp,
		Flags:        p.Flags,
		FlowID:       model.FlowID(p.SrcAddr, p.DstAddr, p.Protocol),
		SrcAddr:      p.SrcAddr,
		DstAddr:      p.DstAddr,
		Protocol:     p.Protocol,
	}
}
