package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"TrafficSentinel/internal/config"
	"TrafficSentinel/internal/query"

	"go.uber.org/zap"
)

func main() {
	// Define command-line flags
	mode := flag.String("mode", "api", "Query mode: 'api' to query via ts-api, 'direct' to query ClickHouse directly.")
	apiURL := flag.String("api", "http://localhost:8080", "Base URL of ts-api")
	configPath := flag.String("config", "configs/config.yaml", "Config file, used in direct mode")
	runID := flag.String("run", "", "Run id whose anomalies to list (omit to list runs)")
	limit := flag.Int("limit", 20, "Maximum number of results")
	flag.Parse()

	log, _ := zap.NewDevelopment()
	defer log.Sync()
	log.Info("running query", zap.String("mode", *mode))

	var out any
	var err error
	switch *mode {
	case "api":
		out, err = queryViaAPI(*apiURL, *runID, *limit)
	case "direct":
		out, err = queryDirect(*configPath, *runID, *limit)
	default:
		log.Fatal("invalid mode, use 'api' or 'direct'", zap.String("mode", *mode))
	}
	if err != nil {
		log.Fatal("query failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}

func queryViaAPI(base, runID string, limit int) (any, error) {
	path := "/api/v1/runs"
	if runID != "" {
		path = "/api/v1/runs/" + url.PathEscape(runID) + "/anomalies"
	}
	target := fmt.Sprintf("%s%s?limit=%d", base, path, limit)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(target)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned %s: %s", resp.Status, body)
	}
	var out any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}
	return out, nil
}

func queryDirect(configPath, runID string, limit int) (any, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	for _, def := range cfg.Writers {
		if def.Type != "clickhouse" {
			continue
		}
		q, err := query.NewClickHouseQuerier(def.ClickHouse)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if runID == "" {
			return q.Runs(ctx, query.RunsRequest{Limit: limit})
		}
		return q.Anomalies(ctx, query.AnomaliesRequest{RunID: runID, Limit: limit})
	}
	return nil, fmt.Errorf("no clickhouse writer in %s", configPath)
}
