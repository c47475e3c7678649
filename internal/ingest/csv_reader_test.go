package ingest

import (
	"strings"
	"testing"
	"time"

	"TrafficSentinel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `Packet_Length,Timestamp,TCP_Flags,Flow_ID,Source_IP,Destination_IP,Protocol
60,2024-03-01 10:00:00.250000,0x0018,x,10.0.0.1,10.0.0.2,TCP
1500,2024-03-01T10:00:01Z,,x,10.0.0.3,10.0.0.4,UDP
,2024-03-01T10:00:02Z,,,10.0.0.5,10.0.0.6,
`

func collect(r *CSVReader) []model.RawPacket {
	var out []model.RawPacket
	for p := range r.Packets() {
		out = append(out, p)
	}
	return out
}

func TestCSVReader_Packets(t *testing.T) {
	r := NewCSVReader(strings.NewReader(sample))
	packets := collect(r)
	require.NoError(t, r.Err())
	require.Len(t, packets, 3)

	first := packets[0]
	assert.Equal(t, 60, first.Length)
	assert.Equal(t, "10.0.0.1", first.SrcAddr)
	assert.Equal(t, "TCP", first.Protocol)
	assert.Equal(t, model.NewFlags("0x0018"), first.Flags)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 250000000, time.UTC), first.Timestamp)

	second := packets[1]
	assert.Equal(t, 1500, second.Length)
	assert.Equal(t, model.NoFlags, second.Flags)

	third := packets[2]
	assert.Equal(t, model.UnknownLength, third.Length)
	assert.Empty(t, third.Protocol)
}

func TestCSVReader_ColumnOrderIndependent(t *testing.T) {
	doc := "Protocol,Source_IP,Destination_IP,Packet_Length\nUDP,a,b,42\n"
	packets := collect(NewCSVReader(strings.NewReader(doc)))
	require.Len(t, packets, 1)
	assert.Equal(t, model.RawPacket{Length: 42, SrcAddr: "a", DstAddr: "b", Protocol: "UDP"}, packets[0])
}

func TestCSVReader_MissingColumn(t *testing.T) {
	r := NewCSVReader(strings.NewReader("Packet_Length,Source_IP\n1,a\n"))
	assert.Empty(t, collect(r))
	assert.ErrorContains(t, r.Err(), "Destination_IP")
}

func TestCSVReader_Empty(t *testing.T) {
	r := NewCSVReader(strings.NewReader(""))
	assert.Empty(t, collect(r))
	assert.NoError(t, r.Err())
}

func TestParseTimestamp(t *testing.T) {
	_, err := ParseTimestamp("2024-03-01T10:00:00.123456789+02:00")
	assert.NoError(t, err)
	_, err = ParseTimestamp("yesterday")
	assert.Error(t, err)
}
