package main

import (
	"flag"
	"math/rand/v2"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"go.uber.org/zap"
)

// pcapgen writes a synthetic capture of steady client/server TCP traffic with
// a configurable number of outlier packets: large UDP frames from hosts that
// appear nowhere else in the capture.
func main() {
	outputFile := flag.String("o", "test.pcap", "Output pcap file path")
	packetCount := flag.Int("c", 1000, "Number of normal packets to generate")
	outliers := flag.Int("outliers", 5, "Number of outlier packets to mix in")
	seed := flag.Uint64("seed", 42, "Random seed")
	flag.Parse()

	log, _ := zap.NewDevelopment()
	defer log.Sync()

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatal("failed to create output file", zap.Error(err))
	}
	defer f.Close()

	pcapWriter := pcapgo.NewWriter(f)
	if err := pcapWriter.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		log.Fatal("failed to write pcap header", zap.Error(err))
	}

	rng := rand.New(rand.NewPCG(*seed, 0))
	total := *packetCount + *outliers
	outlierAt := make(map[int]bool, *outliers)
	for len(outlierAt) < *outliers && len(outlierAt) < total {
		outlierAt[rng.IntN(total)] = true
	}

	clients := []net.IP{{192, 168, 1, 10}, {192, 168, 1, 11}, {192, 168, 1, 12}, {192, 168, 1, 13}}
	servers := []net.IP{{10, 0, 0, 80}, {10, 0, 0, 44}}

	log.Info("generating packets", zap.Int("normal", *packetCount), zap.Int("outliers", *outliers), zap.String("output", *outputFile))

	ts := time.Now().Add(-time.Duration(total) * time.Millisecond)
	for i := 0; i < total; i++ {
		var data []byte
		if outlierAt[i] {
			src := net.IP{203, 0, 113, byte(1 + rng.IntN(254))}
			dst := net.IP{198, 51, 100, byte(1 + rng.IntN(254))}
			data, err = udpFrame(src, dst, 1200+rng.IntN(250))
		} else {
			src, dst := clients[rng.IntN(len(clients))], servers[rng.IntN(len(servers))]
			if rng.IntN(2) == 0 {
				src, dst = dst, src
			}
			data, err = tcpFrame(rng, src, dst, rng.IntN(40))
		}
		if err != nil {
			log.Fatal("failed to serialize layers", zap.Error(err))
		}

		ts = ts.Add(time.Duration(200+rng.IntN(800)) * time.Microsecond)
		ci := gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(data), Length: len(data)}
		if err := pcapWriter.WritePacket(ci, data); err != nil {
			log.Fatal("failed to write packet", zap.Error(err))
		}
	}

	log.Info("capture written", zap.Int("packets", total), zap.String("output", *outputFile))
}

var serializeOpts = gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}

func ethernet() *layers.Ethernet {
	return &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
		EthernetType: layers.EthernetTypeIPv4,
	}
}

func tcpFrame(rng *rand.Rand, src, dst net.IP, payloadSize int) ([]byte, error) {
	ip := &layers.IPv4{SrcIP: src, DstIP: dst, Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(rng.IntN(65535-1024) + 1024),
		DstPort: 443,
		Seq:     rng.Uint32(),
		Ack:     rng.Uint32(),
		ACK:     true,
		PSH:     payloadSize > 0,
		Window:  14600,
	}
	tcp.SetNetworkLayerForChecksum(ip)

	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, serializeOpts, ethernet(), ip, tcp, gopacket.Payload(make([]byte, payloadSize)))
	return buf.Bytes(), err
}

func udpFrame(src, dst net.IP, payloadSize int) ([]byte, error) {
	ip := &layers.IPv4{SrcIP: src, DstIP: dst, Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP}
	udp := &layers.UDP{SrcPort: 53, DstPort: 33333}
	udp.SetNetworkLayerForChecksum(ip)

	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, serializeOpts, ethernet(), ip, udp, gopacket.Payload(make([]byte, payloadSize)))
	return buf.Bytes(), err
}
