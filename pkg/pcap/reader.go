package pcap

import (
	"fmt"
	"io"
	"iter"

	"TrafficSentinel/internal/engine/protocol"
	"TrafficSentinel/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/pcapgo"
)

// Reader reads packets from a pcap capture.
type Reader struct {
	source   gopacket.PacketDataSource
	linkType layers.LinkType
	closer   func()
	err      error
}

// NewReader opens a pcap file through libpcap.
func NewReader(filePath string) (*Reader, error) {
	handle, err := pcap.OpenOffline(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap file '%s': %w", filePath, err)
	}
	return &Reader{source: handle, linkType: handle.LinkType(), closer: handle.Close}, nil
}

// NewStreamReader reads a classic pcap stream from r without libpcap,
// e.g. an uploaded request body.
func NewStreamReader(r io.Reader) (*Reader, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read pcap header: %w", err)
	}
	return &Reader{source: pr, linkType: pr.LinkType(), closer: func() {}}, nil
}

// Close releases the underlying capture handle.
func (r *Reader) Close() {
	r.closer()
}

// Packets returns a lazy sequence of raw packet records in capture order.
// Frames are decoded one at a time as the sequence is consumed; stopping the
// iteration early stops reading. A read error other than end of file ends the
// sequence and is reported by Err.
func (r *Reader) Packets() iter.Seq[model.RawPacket] {
	return func(yield func(model.RawPacket) bool) {
		packetSource := gopacket.NewPacketSource(r.source, r.linkType)
		packetSource.Lazy = true
		for {
			packet, err := packetSource.NextPacket()
			if err == io.EOF {
				return
			}
			if err != nil {
				r.err = fmt.Errorf("failed to read packet: %w", err)
				return
			}
			if !yield(protocol.ParsePacket(packet)) {
				return
			}
		}
	}
}

// Err returns the read error that ended the last iteration, if any.
func (r *Reader) Err() error {
	return r.err
}
