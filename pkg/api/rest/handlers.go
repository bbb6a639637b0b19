package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smigliorini/spatialidx/internal/batch"
	"github.com/smigliorini/spatialidx/pkg/config"
	"github.com/smigliorini/spatialidx/pkg/jobs"
	"github.com/smigliorini/spatialidx/pkg/observability"
)

// Handler serves the monitoring/admin API (§4.M). It shares only the
// read-only job registry and the metrics registry with the batch drivers;
// it never touches mutable index state directly.
type Handler struct {
	cfg       *config.Config
	log       *observability.Logger
	metrics   *observability.Metrics
	registry  *jobs.Registry
	catalog   *indexCatalog
	startedAt time.Time
}

// NewHandler constructs a Handler. catalog may be nil if the process was
// started without an indexing task CSV, in which case /v1/reindex always
// reports the dataset unknown.
func NewHandler(cfg *config.Config, log *observability.Logger, metrics *observability.Metrics, registry *jobs.Registry, catalog *indexCatalog) *Handler {
	return &Handler{
		cfg:       cfg,
		log:       log,
		metrics:   metrics,
		registry:  registry,
		catalog:   catalog,
		startedAt: time.Now(),
	}
}

// HealthCheck handles GET /v1/health. It never requires auth and never
// touches the registry, so it stays up even if a batch run wedges.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.startedAt).String(),
	}, http.StatusOK)
}

// statusRecord is the wire shape of one jobs.Record.
type statusRecord struct {
	Kind              string `json:"kind"`
	Dataset           string `json:"dataset"`
	Status            string `json:"status"`
	StartedAt         string `json:"startedAt"`
	DurationMs        int64  `json:"durationMs"`
	Detail            string `json:"detail,omitempty"`
	DuplicateEstimate int    `json:"duplicateEstimate,omitempty"`
}

// GetStatus handles GET /v1/status: the batch-job log, most recent first.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var records []statusRecord
	for _, rec := range h.registry.List() {
		records = append(records, statusRecord{
			Kind:              rec.Kind,
			Dataset:           rec.Dataset,
			Status:            rec.Status,
			StartedAt:         rec.StartedAt.Format(time.RFC3339),
			DurationMs:        rec.Duration.Milliseconds(),
			Detail:            rec.Detail,
			DuplicateEstimate: rec.DuplicateEstimate,
		})
	}
	writeJSON(w, map[string]interface{}{"jobs": records}, http.StatusOK)
}

// GetMetrics handles GET /v1/metrics, delegating to the default Prometheus
// registry that observability.NewMetrics registered its collectors against.
func (h *Handler) GetMetrics() http.Handler {
	return promhttp.Handler()
}

// Reindex handles POST /v1/reindex/{dataset}. It looks dataset up in the
// indexing task catalog loaded at process start and runs that one task
// inline, outside the batch worker pool.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dataset := strings.TrimPrefix(r.URL.Path, "/v1/reindex/")
	if dataset == "" {
		writeError(w, "missing dataset name", http.StatusBadRequest)
		return
	}

	if h.catalog == nil {
		writeError(w, "no indexing task catalog loaded", http.StatusNotFound)
		return
	}
	task, ok := h.catalog.lookup(dataset)
	if !ok {
		writeError(w, fmt.Sprintf("dataset %q not found in task catalog", dataset), http.StatusNotFound)
		return
	}

	reqLog := h.log.With(observability.Fields{"dataset": dataset, "trigger": "reindex-api"})
	go batch.RunSingleIndexTask(task, h.cfg, reqLog, h.metrics, h.registry)

	writeJSON(w, map[string]interface{}{
		"dataset": dataset,
		"status":  "enqueued",
	}, http.StatusAccepted)
}

// indexCatalog is a read-only lookup of indexing tasks by dataset name,
// loaded once at `spatialidx serve` startup from an indexing task CSV so
// /v1/reindex knows where a dataset's source file and partition output live.
type indexCatalog struct {
	byDataset map[string]batch.IndexTask
}

func newIndexCatalog(tasks []batch.IndexTask) *indexCatalog {
	c := &indexCatalog{byDataset: make(map[string]batch.IndexTask, len(tasks))}
	for _, t := range tasks {
		c.byDataset[t.NameDataset] = t
	}
	return c
}

func (c *indexCatalog) lookup(dataset string) (batch.IndexTask, bool) {
	t, ok := c.byDataset[dataset]
	return t, ok
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, fmt.Sprintf("failed to encode response: %v", err), http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":  message,
		"status": statusCode,
	})
}
