package probe

import (
	"fmt"
	"time"

	"TrafficSentinel/internal/model"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// AnomalyEvent is published once for every row labelled Anomaly.
type AnomalyEvent struct {
	RunID        string
	RowIndex     int
	Timestamp    time.Time
	FlowID       string
	SrcAddr      string
	DstAddr      string
	Protocol     string
	PacketLength int
	Flags        string
	Score        float64
}

// Events returns the anomaly events of a table, in row order.
func Events(table *model.Table) []AnomalyEvent {
	var events []AnomalyEvent
	for i, row := range table.Rows {
		if row.Label != model.LabelAnomaly {
			continue
		}
		events = append(events, AnomalyEvent{
			RunID:        table.RunID.String(),
			RowIndex:     i,
			Timestamp:    row.Timestamp,
			FlowID:       row.FlowID,
			SrcAddr:      row.SrcAddr,
			DstAddr:      row.DstAddr,
			Protocol:     row.Protocol,
			PacketLength: row.PacketLength,
			Flags:        row.Flags.String(),
			Score:        row.Score,
		})
	}
	return events
}

// Encode serializes the event as a protobuf Struct.
func (e AnomalyEvent) Encode() ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"run_id":         e.RunID,
		"row_index":      e.RowIndex,
		"timestamp":      e.Timestamp.UTC().Format(time.RFC3339Nano),
		"flow_id":        e.FlowID,
		"source_ip":      e.SrcAddr,
		"destination_ip": e.DstAddr,
		"protocol":       e.Protocol,
		"packet_length":  e.PacketLength,
		"tcp_flags":      e.Flags,
		"score":          e.Score,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build event struct: %w", err)
	}
	return proto.Marshal(s)
}

// DecodeEvent parses a payload produced by AnomalyEvent.Encode.
func DecodeEvent(data []byte) (AnomalyEvent, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return AnomalyEvent{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	f := s.GetFields()

	ts, err := time.Parse(time.RFC3339Nano, f["timestamp"].GetStringValue())
	if err != nil {
		return AnomalyEvent{}, fmt.Errorf("invalid event timestamp: %w", err)
	}
	return AnomalyEvent{
		RunID:        f["run_id"].GetStringValue(),
		RowIndex:     int(f["row_index"].GetNumberValue()),
		Timestamp:    ts,
		FlowID:       f["flow_id"].GetStringValue(),
		SrcAddr:      f["source_ip"].GetStringValue(),
		DstAddr:      f["destination_ip"].GetStringValue(),
		Protocol:     f["protocol"].GetStringValue(),
		PacketLength: int(f["packet_length"].GetNumberValue()),
		Flags:        f["tcp_flags"].GetStringValue(),
		Score:        f["score"].GetNumberValue(),
	}, nil
}
