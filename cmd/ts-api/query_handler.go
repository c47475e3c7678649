package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"TrafficSentinel/internal/query"

	"github.com/gorilla/mux"
)

// registerQueryRoutes adds the stored-result routes backed by querier.
func (h *APIHandler) registerQueryRoutes(r *mux.Router, querier query.Querier) {
	h.querier = querier
	r.HandleFunc("/api/v1/runs", h.runsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/runs/{run_id}/anomalies", h.anomaliesHandler).Methods(http.MethodGet)
}

// runsHandler lists stored runs.
func (h *APIHandler) runsHandler(w http.ResponseWriter, r *http.Request) {
	var req query.RunsRequest
	params := r.URL.Query()
	if v := params.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid since: %w", err))
			return
		}
		req.Since = since
	}
	limit, err := intParam(params.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.Limit = limit

	runs, err := h.querier.Runs(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to query runs: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// anomaliesHandler returns the stored anomalies of one run.
func (h *APIHandler) anomaliesHandler(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	req := query.AnomaliesRequest{RunID: mux.Vars(r)["run_id"], Filters: map[string]string{}}

	for key := range params {
		switch key {
		case "limit", "min_score":
		default:
			req.Filters[key] = params.Get(key)
		}
	}
	limit, err := intParam(params.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.Limit = limit
	if v := params.Get("min_score"); v != "" {
		if req.MinScore, err = strconv.ParseFloat(v, 64); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid min_score: %w", err))
			return
		}
	}

	anomalies, err := h.querier.Anomalies(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("failed to query anomalies: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": req.RunID, "anomalies": anomalies})
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit '%s'", v)
	}
	return n, nil
}
