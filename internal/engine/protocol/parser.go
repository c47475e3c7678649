package protocol

import (
	"fmt"
	"time"

	"TrafficSentinel/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// TCP flag bits in header order, as rendered by capture tools.
const (
	flagFIN = 1 << iota
	flagSYN
	flagRST
	flagPSH
	flagACK
	flagURG
	flagECE
	flagCWR
	flagNS
)

// ParsePacket extracts the packet metadata needed for feature extraction.
// It never fails: fields that the frame does not carry (network addresses for
// non-IP frames, a transport protocol for ICMP) are left empty, and the
// extractor decides whether the record is usable.
func ParsePacket(packet gopacket.Packet) model.RawPacket {
	info := model.RawPacket{
		Timestamp: time.Now(), // overwritten by capture metadata when present
		Length:    len(packet.Data()),
	}

	if meta := packet.Metadata(); meta != nil {
		if !meta.Timestamp.IsZero() {
			info.Timestamp = meta.Timestamp
		}
		if meta.Length > 0 {
			info.Length = meta.Length
		}
	}

	switch ip := packet.NetworkLayer().(type) {
	case *layers.IPv4:
		info.SrcAddr = ip.SrcIP.String()
		info.DstAddr = ip.DstIP.String()
	case *layers.IPv6:
		info.SrcAddr = ip.SrcIP.String()
		info.DstAddr = ip.DstIP.String()
	}

	if transport := packet.TransportLayer(); transport != nil {
		info.Protocol = transport.LayerType().String()
	}

	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		info.Flags = model.NewFlags(FormatTCPFlags(l.(*layers.TCP)))
	}

	return info
}

// ParseData decodes an Ethernet frame and extracts its metadata.
func ParseData(data []byte, ci gopacket.CaptureInfo) model.RawPacket {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	md := packet.Metadata()
	md.CaptureInfo = ci
	return ParsePacket(packet)
}

// FormatTCPFlags renders the TCP flags as a hex bitmask, e.g. "0x0018" for PSH|ACK.
func FormatTCPFlags(tcp *layers.TCP) string {
	var bits uint16
	set := func(on bool, bit uint16) {
		if on {
			bits |= bit
		}
	}
	set(tcp.FIN, flagFIN)
	set(tcp.SYN, flagSYN)
	set(tcp.RST, flagRST)
	set(tcp.PSH, flagPSH)
	set(tcp.ACK, flagACK)
	set(tcp.URG, flagURG)
	set(tcp.ECE, flagECE)
	set(tcp.CWR, flagCWR)
	set(tcp.NS, flagNS)
	return fmt.Sprintf("0x%04x", bits)
}
