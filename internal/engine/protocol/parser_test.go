package protocol

import (
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	srcMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	dstMAC = net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA}
)

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return buf.Bytes()
}

func ipv4(proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		TTL:      64,
		SrcIP:    net.IP{10, 0, 0, 1},
		DstIP:    net.IP{10, 0, 0, 2},
		Protocol: proto,
	}
}

func TestParseData_TCP(t *testing.T) {
	ip := ipv4(layers.IPProtocolTCP)
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 443, PSH: true, ACK: true, Window: 14600}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	data := serialize(t, eth, ip, tcp, gopacket.Payload([]byte("hello")))

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	info := ParseData(data, gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(data), Length: len(data)})

	assert.Equal(t, "10.0.0.1", info.SrcAddr)
	assert.Equal(t, "10.0.0.2", info.DstAddr)
	assert.Equal(t, "TCP", info.Protocol)
	assert.Equal(t, len(data), info.Length)
	assert.True(t, ts.Equal(info.Timestamp))
	assert.True(t, info.Flags.Valid)
	assert.Equal(t, "0x0018", info.Flags.Value)
}

func TestParseData_UDPHasNoFlags(t *testing.T) {
	ip := ipv4(layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: 5353, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	data := serialize(t, eth, ip, udp, gopacket.Payload([]byte{1, 2, 3}))

	info := ParseData(data, gopacket.CaptureInfo{Timestamp: time.Now(), Length: 1200})

	assert.Equal(t, "UDP", info.Protocol)
	assert.Equal(t, 1200, info.Length, "wire length from capture metadata wins")
	assert.False(t, info.Flags.Valid)
}

func TestParseData_ICMPHasNoTransport(t *testing.T) {
	ip := ipv4(layers.IPProtocolICMPv4)
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)}
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	data := serialize(t, eth, ip, icmp)

	info := ParseData(data, gopacket.CaptureInfo{Timestamp: time.Now(), Length: len(data)})

	assert.Equal(t, "10.0.0.1", info.SrcAddr)
	assert.Empty(t, info.Protocol)
}

func TestParseData_ARPHasNoAddresses(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: layers.EthernetBroadcast, EthernetType: layers.EthernetTypeARP}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   srcMAC,
		SourceProtAddress: []byte{10, 0, 0, 1},
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte{10, 0, 0, 2},
	}
	data := serialize(t, eth, arp)

	info := ParseData(data, gopacket.CaptureInfo{Timestamp: time.Now(), Length: len(data)})

	assert.Empty(t, info.SrcAddr)
	assert.Empty(t, info.DstAddr)
	assert.Empty(t, info.Protocol)
	assert.Positive(t, info.Length)
}

func TestParseData_IPv6(t *testing.T) {
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolUDP,
		SrcIP:      net.ParseIP("2001:db8::1"),
		DstIP:      net.ParseIP("2001:db8::2"),
	}
	udp := &layers.UDP{SrcPort: 1000, DstPort: 2000}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv6}
	data := serialize(t, eth, ip, udp)

	info := ParseData(data, gopacket.CaptureInfo{Timestamp: time.Now(), Length: len(data)})

	assert.Equal(t, "2001:db8::1", info.SrcAddr)
	assert.Equal(t, "2001:db8::2", info.DstAddr)
	assert.Equal(t, "UDP", info.Protocol)
}

func TestFormatTCPFlags(t *testing.T) {
	assert.Equal(t, "0x0002", FormatTCPFlags(&layers.TCP{SYN: true}))
	assert.Equal(t, "0x0012", FormatTCPFlags(&layers.TCP{SYN: true, ACK: true}))
	assert.Equal(t, "0x0011", FormatTCPFlags(&layers.TCP{FIN: true, ACK: true}))
	assert.Equal(t, "0x0104", FormatTCPFlags(&layers.TCP{RST: true, NS: true}))
	assert.Equal(t, "0x0000", FormatTCPFlags(&layers.TCP{}))
}
