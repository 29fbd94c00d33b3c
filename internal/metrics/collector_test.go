package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func render(c *MetricsCollector) string {
	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))
	return rec.Body.String()
}

func TestCollector_CounterRendering(t *testing.T) {
	c := NewMetricsCollector()
	ctr := c.Counter("test_requests_total", "Total requests", "")
	ctr.Inc()
	ctr.Add(2)

	out := render(c)
	if !strings.Contains(out, "# TYPE test_requests_total counter") {
		t.Fatalf("missing TYPE line:\n%s", out)
	}
	if !strings.Contains(out, "test_requests_total 3\n") {
		t.Fatalf("expected counter value 3:\n%s", out)
	}
}

func TestCollector_GaugeUpDown(t *testing.T) {
	c := NewMetricsCollector()
	g := c.Gauge("test_open_conns", "Open connections", "")
	g.Inc()
	g.Inc()
	g.Dec()

	if g.Value() != 1 {
		t.Fatalf("expected gauge value 1, got %d", g.Value())
	}
	if !strings.Contains(render(c), "test_open_conns 1\n") {
		t.Fatalf("gauge missing from exposition")
	}
}

func TestCollector_HistogramBuckets(t *testing.T) {
	c := NewMetricsCollector()
	h := c.Histogram("test_latency_seconds", "Latency", "", []float64{1, 5})
	h.Observe(0.5)
	h.Observe(3)
	h.Observe(100)

	out := render(c)
	for _, line := range []string{
		`test_latency_seconds_bucket{le="1"} 1`,
		`test_latency_seconds_bucket{le="5"} 2`,
		`test_latency_seconds_bucket{le="+Inf"} 3`,
		"test_latency_seconds_count 3",
	} {
		if !strings.Contains(out, line) {
			t.Fatalf("missing %q in exposition:\n%s", line, out)
		}
	}
}

func TestCollector_RegistrationIdempotent(t *testing.T) {
	c := NewMetricsCollector()
	a := c.Counter("test_total", "help", "")
	b := c.Counter("test_total", "help", "")
	if a != b {
		t.Fatal("expected the same counter instance for the same name")
	}
	a.Inc()
	if b.Value() != 1 {
		t.Fatalf("expected shared value 1, got %d", b.Value())
	}
}
