package main

import (
	"flag"
	"fmt"
	"os"

	"TrafficSentinel/internal/extractor"
	"TrafficSentinel/pkg/pcap"

	"go.uber.org/zap"
)

// pcapana prints the first packet records of a capture and reports how many
// records the extractor would skip, and why.
func main() {
	count := flag.Int("n", 5, "Number of records to print")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Println("Usage: go run ./scripts/pcapana [-n 5] <path_to_pcap_file>")
		os.Exit(1)
	}

	reader, err := pcap.NewReader(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer reader.Close()

	ext := extractor.New(zap.NewNop())
	ext.OnSkip = func(e *extractor.MalformedRecordError) {
		if e.Index < *count {
			fmt.Printf("#%d skipped: missing %s\n", e.Index, e.Field)
		}
	}

	i := 0
	for row := range ext.Extract(reader.Packets()) {
		if i < *count {
			fmt.Printf("[%s] %s len=%d flags=%q\n",
				row.Timestamp.Format("15:04:05.000"), row.FlowID, row.PacketLength, row.Flags.String())
		}
		i++
	}
	if err := reader.Err(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	stats := ext.Stats()
	fmt.Printf("records=%d rows=%d skipped=%d %v\n", stats.Seen, i, stats.Skipped, stats.SkippedByField)
}
