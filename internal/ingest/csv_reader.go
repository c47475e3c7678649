package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
	"time"

	"TrafficSentinel/internal/model"
)

// Input table column names.
const (
	ColPacketLength  = "Packet_Length"
	ColTimestamp     = "Timestamp"
	ColTCPFlags      = "TCP_Flags"
	ColFlowID        = "Flow_ID"
	ColSourceIP      = "Source_IP"
	ColDestinationIP = "Destination_IP"
	ColProtocol      = "Protocol"
)

// timestampLayouts are tried in order when parsing the Timestamp column.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
}

// CSVReader reads raw packet records from a tabular file with a header row.
// Columns are located by name; Flow_ID is ignored because the extractor
// recomputes it. Empty cells become missing fields, never errors.
type CSVReader struct {
	r   *csv.Reader
	err error
}

// NewCSVReader creates a reader over r.
func NewCSVReader(r io.Reader) *CSVReader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return &CSVReader{r: cr}
}

// Packets returns a lazy sequence of records in file order. A malformed
// header or a CSV syntax error ends the sequence and is reported by Err.
func (c *CSVReader) Packets() iter.Seq[model.RawPacket] {
	return func(yield func(model.RawPacket) bool) {
		header, err := c.r.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			c.err = fmt.Errorf("failed to read header: %w", err)
			return
		}
		index := make(map[string]int, len(header))
		for i, name := range header {
			index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
		}
		for _, required := range []string{ColPacketLength, ColSourceIP, ColDestinationIP, ColProtocol} {
			if _, ok := index[required]; !ok {
				c.err = fmt.Errorf("input table has no %s column", required)
				return
			}
		}

		for {
			record, err := c.r.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				c.err = fmt.Errorf("failed to read record: %w", err)
				return
			}
			if !yield(parseRecord(record, index)) {
				return
			}
		}
	}
}

// Err returns the error that ended the last iteration, if any.
func (c *CSVReader) Err() error {
	return c.err
}

func parseRecord(record []string, index map[string]int) model.RawPacket {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	p := model.RawPacket{
		Length:   model.UnknownLength,
		SrcAddr:  field(ColSourceIP),
		DstAddr:  field(ColDestinationIP),
		Protocol: field(ColProtocol),
	}
	if v := field(ColPacketLength); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.Length = n
		}
	}
	if v := field(ColTimestamp); v != "" {
		p.Timestamp, _ = ParseTimestamp(v)
	}
	if v := field(ColTCPFlags); v != "" {
		p.Flags = model.NewFlags(v)
	}
	return p
}

// ParseTimestamp parses an ISO-style instant.
func ParseTimestamp(v string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", v)
}
