package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TrafficSentinel/internal/config"
	"TrafficSentinel/internal/logger"
	"TrafficSentinel/internal/manager"
	"TrafficSentinel/internal/query"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	mgr, err := manager.NewManager(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("failed to create manager", zap.Error(err))
	}
	defer mgr.Close()

	// Initialize router
	apiHandler := &APIHandler{manager: mgr, maxBodyBytes: cfg.API.MaxBodyBytes, logger: log.With(zap.String("component", "api"))}
	r := apiHandler.Router()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Stored-result queries need an enabled ClickHouse writer
	for _, def := range cfg.Writers {
		if def.Enabled && def.Type == "clickhouse" {
			querier, err := query.NewClickHouseQuerier(def.ClickHouse)
			if err != nil {
				log.Fatal("failed to create querier", zap.Error(err))
			}
			apiHandler.registerQueryRoutes(r, querier)
			log.Info("query routes enabled")
			break
		}
	}

	// Start HTTP server
	server := &http.Server{
		Addr:              cfg.API.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("API server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("could not listen", zap.String("addr", server.Addr), zap.Error(err))
		}
	}()

	// Start gRPC health server
	lis, err := net.Listen("tcp", cfg.API.GRPCAddr)
	if err != nil {
		log.Fatal("failed to listen for gRPC", zap.String("addr", cfg.API.GRPCAddr), zap.Error(err))
	}
	grpcServer, healthServer := newGRPCServer()
	go func() {
		log.Info("gRPC server starting", zap.String("addr", lis.Addr().String()))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("gRPC server stopped", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("API server shutting down")

	healthServer.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	log.Info("API server exited")
}

// newGRPCServer returns a gRPC server exposing the standard health service
// and server reflection.
func newGRPCServer() (*grpc.Server, *health.Server) {
	s := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)
	return s, hs
}

const serviceName = "trafficsentinel.Analyzer"
