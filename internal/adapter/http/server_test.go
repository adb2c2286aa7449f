package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	httpadapter "github.com/couchcryptid/aqi-cluster/internal/adapter/http"
	"github.com/couchcryptid/aqi-cluster/internal/cluster"
	"github.com/couchcryptid/aqi-cluster/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockReports struct {
	report *domain.ClusterReport
}

func (m *mockReports) Latest() (domain.ClusterReport, bool) {
	if m.report == nil {
		return domain.ClusterReport{}, false
	}
	return *m.report, true
}

func testReport() *domain.ClusterReport {
	return &domain.ClusterReport{
		RunID:    "run-1",
		K:        2,
		Counties: 3,
		Rankings: []cluster.ClusterScore{
			{Index: 1, MeanScore: 640, Size: 1},
			{Index: 0, MeanScore: 150, Size: 2},
		},
		Assignments: []domain.Assignment{
			{County: domain.CountyKey{State: "Maine", County: "York"}, Cluster: 0},
			{County: domain.CountyKey{State: "Maine", County: "Knox"}, Cluster: 0},
			{County: domain.CountyKey{State: "Arizona", County: "Maricopa"}, Cluster: 1},
		},
		HighestRiskCluster: 1,
	}
}

func newTestServer(readyErr error, report *domain.ClusterReport) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, &mockReports{report: report}, slog.Default())
}

func get(srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(newTestServer(nil, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(newTestServer(nil, testReport()), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(newTestServer(errors.New("no cluster report has been produced yet"), nil), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(nil, nil), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestReportEndpoint(t *testing.T) {
	rec := get(newTestServer(nil, testReport()), "/api/report")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body domain.ClusterReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.RunID)
	assert.Len(t, body.Assignments, 3)
	assert.Equal(t, 1, body.HighestRiskCluster)
}

func TestReportEndpointReturns503BeforeFirstRun(t *testing.T) {
	rec := get(newTestServer(nil, nil), "/api/report")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "no cluster report available yet", body["error"])
}

func TestClusterEndpoint(t *testing.T) {
	srv := newTestServer(nil, testReport())

	rec := get(srv, "/api/clusters/0")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Index     int                `json:"index"`
		Rank      int                `json:"rank"`
		MeanScore float64            `json:"mean_score"`
		Counties  []domain.CountyKey `json:"counties"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 0, body.Index)
	assert.Equal(t, 2, body.Rank)
	assert.InDelta(t, 150, body.MeanScore, 0)
	assert.Len(t, body.Counties, 2)

	for _, path := range []string{"/api/clusters/2", "/api/clusters/-1", "/api/clusters/x"} {
		assert.Equal(t, http.StatusNotFound, get(srv, path).Code, path)
	}
}

func TestDashboardEndpoint(t *testing.T) {
	rec := get(newTestServer(nil, testReport()), "/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Clusters by mean risk score")

	rec = get(newTestServer(nil, nil), "/dashboard")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
