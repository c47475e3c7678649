package main

import (
	"fmt"
	"os"

	"TrafficSentinel/internal/output"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/gobana <snapshot_dir>")
		os.Exit(1)
	}

	table, err := output.ReadSnapshot(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to read snapshot: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Run %s (%s)\n", table.RunID, table.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("packets=%d skipped=%d rows=%d anomalies=%d\n",
		table.Stats.PacketsSeen, table.Stats.RecordsSkipped, len(table.Rows), table.Stats.Anomalies)
	for column, values := range table.Categories {
		fmt.Printf("%s: %d distinct values\n", column, len(values))
	}

	fmt.Println("Anomalies:")
	for _, row := range table.Anomalies() {
		fmt.Printf("  %.4f %s len=%d flags=%q\n", row.Score, row.FlowID, row.PacketLength, row.Flags.String())
	}
}
