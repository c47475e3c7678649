package model

import (
	"time"
)

// UnknownLength marks a packet record whose byte length could not be determined.
const UnknownLength = -1

// Flags holds the optional transport-layer flags of a packet.
// The zero value is NoFlags.
type Flags struct {
	Value string
	Valid bool
}

// NoFlags is the explicit marker for a packet that carries no transport flags.
var NoFlags = Flags{}

// NewFlags returns a present Flags value.
func NewFlags(v string) Flags {
	return Flags{Value: v, Valid: true}
}

// String returns the flags value, or "" when absent.
func (f Flags) String() string {
	if !f.Valid {
		return ""
	}
	return f.Value
}

// RawPacket holds the metadata of a single captured frame, as delivered by a
// capture reader or an input table. Any of the address, protocol and length
// fields may be missing for frames that are not IP/transport packets.
type RawPacket struct {
	Timestamp time.Time
	Length    int
	Protocol  string // transport layer name, e.g. "TCP"
	SrcAddr   string
	DstAddr   string
	Flags     Flags
}

// FlowRow is the feature row derived from one RawPacket.
type FlowRow struct {
	PacketLength int
	Timestamp    time.Time
	Flags        Flags
	FlowID       string
	SrcAddr      string
	DstAddr      string
	Protocol     string
}

// FlowID builds the flow identifier shared by all packets of one
// (source, destination, protocol) triple.
func FlowID(src, dst, protocol string) string {
	return src + "_" + dst + "_" + protocol
}

// EncodedRow is a FlowRow with integer codes for its categorical fields.
// Codes are only meaningful within the run that produced them.
type EncodedRow struct {
	FlowRow
	SrcEncoded      int
	DstEncoded      int
	ProtocolEncoded int
}

// Label is the outcome of anomaly scoring for one row.
type Label string

const (
	LabelNormal  Label = "Normal"
	LabelAnomaly Label = "Anomaly"
)

// ScoredRow is an EncodedRow with its isolation score and label.
type ScoredRow struct {
	EncodedRow
	Score float64
	Label Label
}

// RunStats summarises a single pipeline run.
type RunStats struct {
	PacketsSeen    int
	RecordsSkipped int
	Rows           int
	Anomalies      int
	Duration       time.Duration
}
