package output

import (
	"strconv"
	"time"

	"TrafficSentinel/internal/model"
)

// Output table columns, in order.
var Columns = []string{
	"Packet_Length",
	"Timestamp",
	"TCP_Flags",
	"Flow_ID",
	"Source_IP",
	"Destination_IP",
	"Protocol",
	"Source_IP_Encoded",
	"Destination_IP_Encoded",
	"Protocol_Encoded",
	"Anomaly",
}

// TimestampLayout is the layout used for every textual timestamp column.
const TimestampLayout = time.RFC3339Nano

// Record renders a scored row as the fields of one output table line.
// Absent flags become an empty field.
func Record(row model.ScoredRow) []string {
	return []string{
		strconv.Itoa(row.PacketLength),
		row.Timestamp.UTC().Format(TimestampLayout),
		row.Flags.String(),
		row.FlowID,
		row.SrcAddr,
		row.DstAddr,
		row.Protocol,
		strconv.Itoa(row.SrcEncoded),
		strconv.Itoa(row.DstEncoded),
		strconv.Itoa(row.ProtocolEncoded),
		string(row.Label),
	}
}

// nullableFlags maps absent flags to a SQL NULL.
func nullableFlags(f model.Flags) *string {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}
