package main

import (
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"strconv"
	"time"

	"TrafficSentinel/internal/encoder"
	"TrafficSentinel/internal/engine/scorer"
	"TrafficSentinel/internal/ingest"
	"TrafficSentinel/internal/manager"
	"TrafficSentinel/internal/metrics"
	"TrafficSentinel/internal/model"
	"TrafficSentinel/internal/output"
	"TrafficSentinel/internal/pipeline"
	"TrafficSentinel/internal/query"
	"TrafficSentinel/pkg/pcap"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// APIHandler holds the dependencies for API handlers.
type APIHandler struct {
	manager      *manager.Manager
	querier      query.Querier
	maxBodyBytes int64
	logger       *zap.Logger
}

// RowResponse is the JSON form of one scored row.
type RowResponse struct {
	PacketLength    int     `json:"packet_length"`
	Timestamp       string  `json:"timestamp"`
	TCPFlags        *string `json:"tcp_flags"`
	FlowID          string  `json:"flow_id"`
	SourceIP        string  `json:"source_ip"`
	DestinationIP   string  `json:"destination_ip"`
	Protocol        string  `json:"protocol"`
	SourceIPEncoded int     `json:"source_ip_encoded"`
	DestIPEncoded   int     `json:"destination_ip_encoded"`
	ProtocolEncoded int     `json:"protocol_encoded"`
	Score           float64 `json:"score"`
	Anomaly         string  `json:"anomaly"`
}

// AnalyzeResponse is the JSON form of a scored table.
type AnalyzeResponse struct {
	RunID          string              `json:"run_id"`
	CreatedAt      time.Time           `json:"created_at"`
	PacketsSeen    int                 `json:"packets_seen"`
	RecordsSkipped int                 `json:"records_skipped"`
	Anomalies      int                 `json:"anomalies"`
	Categories     map[string][]string `json:"categories"`
	Rows           []RowResponse       `json:"rows"`
	OutputErrors   string              `json:"output_errors,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Router wires the HTTP routes.
func (h *APIHandler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.metricsMiddleware)
	r.HandleFunc("/api/v1/analyze", h.analyzeCSVHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/analyze/pcap", h.analyzePcapHandler).Methods(http.MethodPost)
	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	return r
}

// analyzeCSVHandler scores an input table sent as the request body.
func (h *APIHandler) analyzeCSVHandler(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	reader := ingest.NewCSVReader(body)
	h.analyze(w, r, reader.Packets(), reader.Err)
}

// analyzePcapHandler scores a classic pcap capture sent as the request body.
func (h *APIHandler) analyzePcapHandler(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	reader, err := pcap.NewStreamReader(body)
	if err != nil {
		writeError(w, readStatus(err), err)
		return
	}
	defer reader.Close()
	h.analyze(w, r, reader.Packets(), reader.Err)
}

func (h *APIHandler) analyze(w http.ResponseWriter, r *http.Request, packets iter.Seq[model.RawPacket], readErr func() error) {
	ctx := r.Context()
	table, err := h.manager.Analyze(ctx, packets)
	if rerr := readErr(); rerr != nil {
		writeError(w, readStatus(rerr), rerr)
		return
	}
	if err != nil {
		writeError(w, pipelineStatus(err), err)
		return
	}

	resp := newAnalyzeResponse(table)
	if err := h.manager.Deliver(ctx, table); err != nil {
		h.logger.Warn("some outputs failed", zap.String("run_id", table.RunID.String()), zap.Error(err))
		resp.OutputErrors = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func newAnalyzeResponse(table *model.Table) AnalyzeResponse {
	resp := AnalyzeResponse{
		RunID:          table.RunID.String(),
		CreatedAt:      table.CreatedAt,
		PacketsSeen:    table.Stats.PacketsSeen,
		RecordsSkipped: table.Stats.RecordsSkipped,
		Anomalies:      table.Stats.Anomalies,
		Categories:     table.Categories,
		Rows:           make([]RowResponse, len(table.Rows)),
	}
	for i, row := range table.Rows {
		var flags *string
		if row.Flags.Valid {
			v := row.Flags.Value
			flags = &v
		}
		resp.Rows[i] = RowResponse{
			PacketLength:    row.PacketLength,
			Timestamp:       row.Timestamp.UTC().Format(output.TimestampLayout),
			TCPFlags:        flags,
			FlowID:          row.FlowID,
			SourceIP:        row.SrcAddr,
			DestinationIP:   row.DstAddr,
			Protocol:        row.Protocol,
			SourceIPEncoded: row.SrcEncoded,
			DestIPEncoded:   row.DstEncoded,
			ProtocolEncoded: row.ProtocolEncoded,
			Score:           row.Score,
			Anomaly:         string(row.Label),
		}
	}
	return resp
}

func readStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func pipelineStatus(err error) int {
	var invalid *scorer.InvalidFeatureError
	var unknown *encoder.UnknownCategoryError
	switch {
	case errors.Is(err, pipeline.ErrEmptyInput), errors.As(err, &invalid), errors.As(err, &unknown):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *APIHandler) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
	})
}
