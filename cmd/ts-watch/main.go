package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"TrafficSentinel/internal/config"
	"TrafficSentinel/internal/logger"
	"TrafficSentinel/internal/probe"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML configuration file")
	flag.Parse()

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

	// 2. Subscribe to anomaly events
	sub, err := probe.NewSubscriber(cfg.Publisher, log)
	if err != nil {
		log.Fatal("failed to create subscriber", zap.Error(err))
	}
	defer sub.Close()

	err = sub.Start(func(ev probe.AnomalyEvent) {
		log.Info("anomaly",
			zap.String("run_id", ev.RunID),
			zap.Int("row", ev.RowIndex),
			zap.String("flow_id", ev.FlowID),
			zap.Int("packet_length", ev.PacketLength),
			zap.String("tcp_flags", ev.Flags),
			zap.Float64("score", ev.Score),
			zap.Time("timestamp", ev.Timestamp),
		)
	})
	if err != nil {
		log.Fatal("failed to subscribe", zap.Error(err))
	}

	// 3. Wait for a shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info("shutdown signal received")
}
