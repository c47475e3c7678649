package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"TrafficSentinel/internal/query"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeQuerier struct {
	runsReq      query.RunsRequest
	anomaliesReq query.AnomaliesRequest
	err          error
}

func (f *fakeQuerier) Runs(_ context.Context, req query.RunsRequest) ([]query.RunSummary, error) {
	f.runsReq = req
	return []query.RunSummary{{RunID: "r1", Rows: 10, Anomalies: 1}}, f.err
}

func (f *fakeQuerier) Anomalies(_ context.Context, req query.AnomaliesRequest) ([]query.AnomalyRecord, error) {
	f.anomaliesReq = req
	return []query.AnomalyRecord{{FlowID: "a_b_UDP", Score: 0.7}}, f.err
}

func newQueryHandler(q query.Querier) http.Handler {
	h := &APIHandler{logger: zap.NewNop()}
	r := h.Router()
	h.registerQueryRoutes(r, q)
	return r
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestRunsHandler(t *testing.T) {
	q := &fakeQuerier{}
	rec := get(newQueryHandler(q), "/api/v1/runs?since=2024-06-01T00:00:00Z&limit=5")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"run_id":"r1"`)
	assert.Equal(t, 5, q.runsReq.Limit)
	assert.True(t, q.runsReq.Since.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
}

func TestRunsHandler_BadParams(t *testing.T) {
	h := newQueryHandler(&fakeQuerier{})
	assert.Equal(t, http.StatusBadRequest, get(h, "/api/v1/runs?since=yesterday").Code)
	assert.Equal(t, http.StatusBadRequest, get(h, "/api/v1/runs?limit=-1").Code)
}

func TestRunsHandler_QueryError(t *testing.T) {
	rec := get(newQueryHandler(&fakeQuerier{err: errors.New("down")}), "/api/v1/runs")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAnomaliesHandler(t *testing.T) {
	q := &fakeQuerier{}
	rec := get(newQueryHandler(q), "/api/v1/runs/abc/anomalies?protocol=UDP&min_score=0.6&limit=3")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"flow_id":"a_b_UDP"`)
	assert.Equal(t, "abc", q.anomaliesReq.RunID)
	assert.Equal(t, map[string]string{"protocol": "UDP"}, q.anomaliesReq.Filters)
	assert.Equal(t, 0.6, q.anomaliesReq.MinScore)
	assert.Equal(t, 3, q.anomaliesReq.Limit)
}
