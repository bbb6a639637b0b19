package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// testMetrics is the package's single Metrics: NewMetrics registers against
// the default Prometheus registry, so a second call in one process panics.
var testMetrics = NewMetrics()

func TestNewMetrics(t *testing.T) {
	m := testMetrics
	if m.BuildDuration == nil || m.QueryCardinality == nil || m.BatchJobsTotal == nil {
		t.Fatal("expected all collectors to be initialized")
	}
}

func TestRecordBuild(t *testing.T) {
	m := testMetrics
	m.RecordBuild("roads", 2*time.Second, 12)

	counter := counterValue(t, m.PartitionsEmitted.WithLabelValues("roads"))
	if counter != 12 {
		t.Errorf("expected 12 partitions emitted, got %v", counter)
	}
}

func TestRecordQuery(t *testing.T) {
	m := testMetrics
	m.RecordQuery("roads", 0.5, 8, 4, 12*time.Millisecond)
	// No panic and observations recorded is the contract here; histogram
	// bucket values aren't asserted to avoid coupling tests to bucket
	// boundaries chosen for operational dashboards.
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}
