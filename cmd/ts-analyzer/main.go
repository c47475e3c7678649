package main

import (
	"context"
	"flag"
	"fmt"
	"iter"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"TrafficSentinel/internal/config"
	"TrafficSentinel/internal/ingest"
	"TrafficSentinel/internal/logger"
	"TrafficSentinel/internal/manager"
	"TrafficSentinel/internal/model"
	"TrafficSentinel/pkg/pcap"

	"go.uber.org/zap"
)

// packetSource is a capture or table reader.
type packetSource interface {
	Packets() iter.Seq[model.RawPacket]
	Err() error
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML configuration file")
	input := flag.String("input", "", "Path to the input capture (.pcap) or table (.csv)")
	format := flag.String("format", "", "Input format: pcap or csv (default: from file extension)")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: ts-analyzer -config configs/config.yaml -input <file> [-format pcap|csv]")
		os.Exit(2)
	}

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, *input, *format, log); err != nil {
		log.Error("analysis failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, input, format string, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Initialize modules
	mgr, err := manager.NewManager(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}
	defer mgr.Close()

	src, closeSrc, err := openSource(input, format)
	if err != nil {
		return err
	}
	defer closeSrc()
	log.Info("reading packets", zap.String("input", input))

	// 3. Run the pipeline, then write the results once the input is known to be complete
	table, err := mgr.Analyze(ctx, src.Packets())
	if readErr := src.Err(); readErr != nil {
		return fmt.Errorf("input ended early: %w", readErr)
	}
	if err != nil {
		return err
	}
	err = mgr.Deliver(ctx, table)
	if err != nil {
		log.Warn("some outputs failed", zap.Error(err))
	}

	log.Info("analysis complete",
		zap.String("run_id", table.RunID.String()),
		zap.Int("rows", table.Stats.Rows),
		zap.Int("anomalies", table.Stats.Anomalies),
	)
	return err
}

func openSource(path, format string) (packetSource, func(), error) {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		if format == "pcapng" || format == "cap" {
			format = "pcap"
		}
	}

	switch format {
	case "pcap":
		r, err := pcap.NewReader(path)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	case "csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open input table: %w", err)
		}
		return ingest.NewCSVReader(f), func() { f.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown input format '%s' (want pcap or csv)", format)
	}
}
