package rest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smigliorini/spatialidx/pkg/config"
	"github.com/smigliorini/spatialidx/pkg/jobs"
	"github.com/smigliorini/spatialidx/pkg/observability"
)

// testMetrics is shared by every handler in this package's tests:
// NewMetrics registers against the default Prometheus registry, so a
// second call in one process panics.
var testMetrics = observability.NewMetrics()

func newTestHandler() *Handler {
	cfg := config.Default()
	return NewHandler(cfg, observability.Default(), testMetrics, jobs.NewRegistry(10), nil)
}

func TestHealthCheckOK(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()

	h.HealthCheck(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHealthCheckRejectsNonGet(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/v1/health", nil)
	rec := httptest.NewRecorder()

	h.HealthCheck(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestGetStatusReflectsRegistry(t *testing.T) {
	registry := jobs.NewRegistry(10)
	registry.Append(jobs.Record{Kind: "index", Dataset: "points.csv", Status: "ok"})

	h := NewHandler(config.Default(), observability.Default(), testMetrics, registry, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	rec := httptest.NewRecorder()

	h.GetStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "points.csv") {
		t.Errorf("expected response to mention dataset, got %s", body)
	}
}

func TestReindexUnknownDatasetWithoutCatalog(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/v1/reindex/points.csv", nil)
	rec := httptest.NewRecorder()

	h.Reindex(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 with no catalog loaded, got %d", rec.Code)
	}
}

func TestReindexMissingDatasetName(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/v1/reindex/", nil)
	rec := httptest.NewRecorder()

	h.Reindex(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty dataset name, got %d", rec.Code)
	}
}
