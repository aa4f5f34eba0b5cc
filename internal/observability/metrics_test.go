package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestAcquisitionCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewAcquisitionCollector(reg)
	if err != nil {
		t.Fatalf("NewAcquisitionCollector: %v", err)
	}

	collector.SessionStarted("continuous")
	collector.SampleEvaluated("first")
	collector.SampleEvaluated("improved")
	collector.SampleEvaluated("worse")
	collector.SetBestAccuracy(40)
	collector.ObserveTimeToFix(1500 * time.Millisecond)
	collector.SessionFinished("completed")

	if got := testutil.ToFloat64(collector.SessionsStarted.WithLabelValues("continuous")); got != 1 {
		t.Fatalf("locator_sessions_started_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Samples.WithLabelValues("improved")); got != 1 {
		t.Fatalf("locator_samples_total{decision=improved} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.BestAccuracy); got != 40 {
		t.Fatalf("locator_best_accuracy_meters = %v, want 40", got)
	}
	if got := testutil.ToFloat64(collector.SessionsFinished.WithLabelValues("completed")); got != 1 {
		t.Fatalf("locator_sessions_finished_total = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "locator_time_to_fix_seconds", nil); count != 1 {
		t.Fatalf("locator_time_to_fix_seconds sample_count = %d, want 1", count)
	}
}

func TestAcquisitionCollectorReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewAcquisitionCollector(reg)
	if err != nil {
		t.Fatalf("first NewAcquisitionCollector: %v", err)
	}
	second, err := NewAcquisitionCollector(reg)
	if err != nil {
		t.Fatalf("second NewAcquisitionCollector: %v", err)
	}

	first.SampleEvaluated("first")
	second.SampleEvaluated("first")
	if got := testutil.ToFloat64(first.Samples.WithLabelValues("first")); got != 2 {
		t.Fatalf("shared counter = %v, want 2", got)
	}
}

func TestAcquisitionCollectorRejectsIncompatibleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "locator_sessions_started_total",
		Help: "Acquisition sessions started, labeled by mode (single or continuous).",
	}))
	if _, err := NewAcquisitionCollector(reg); err == nil {
		t.Fatalf("expected error for incompatible collector")
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *AcquisitionCollector
	c.SessionStarted("single")
	c.SessionFinished("failed")
	c.SampleEvaluated("tie")
	c.SetBestAccuracy(1)
	c.ObserveTimeToFix(time.Second)
}

func TestMetricsHandlerExposesAcquisitionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewAcquisitionCollector(reg)
	if err != nil {
		t.Fatalf("NewAcquisitionCollector: %v", err)
	}
	collector.SessionStarted("single")
	collector.SessionFinished("timeout")
	collector.SampleEvaluated("first")
	collector.SetBestAccuracy(12.5)
	collector.ObserveTimeToFix(time.Second)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"locator_sessions_started_total",
		"locator_sessions_finished_total",
		"locator_samples_total",
		"locator_best_accuracy_meters 12.5",
		"locator_time_to_fix_seconds",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
