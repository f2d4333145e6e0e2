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

	"github.com/signalsfoundry/wlan-hidden-sim/core"
	"github.com/signalsfoundry/wlan-hidden-sim/model"
)

func sampleResult() *core.Result {
	res := &core.Result{
		Name:         "hidden",
		MinExpected:  1,
		APCollisions: 42,
		WallTime:     300 * time.Millisecond,
	}
	res.Flows = []model.FlowRecord{
		{StationID: 1, Generated: 100, Sent: 90, Received: 70, DroppedByCollision: 15, DroppedRetryExhausted: 3, DroppedByQueue: 10, InFlight: 2},
		{StationID: 2, Generated: 100, Sent: 100, Received: 99, InFlight: 1},
	}
	res.ThroughputMbps = 12.5
	return res
}

func TestObserveResultSetsGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	res := sampleResult()
	collector.ObserveResult(res)
	collector.ObserveResult(res)

	if got := testutil.ToFloat64(collector.FlowPackets.WithLabelValues("hidden", "1", OutcomeDroppedCollision)); got != 15 {
		t.Fatalf("dropped_collision for station 1 = %v, want 15", got)
	}
	if got := testutil.ToFloat64(collector.FlowPackets.WithLabelValues("hidden", "2", OutcomeReceived)); got != 99 {
		t.Fatalf("received for station 2 = %v, want 99 (gauges must not accumulate)", got)
	}
	if got := testutil.ToFloat64(collector.Throughput.WithLabelValues("hidden")); got != 12.5 {
		t.Fatalf("throughput = %v, want 12.5", got)
	}
	if got := testutil.ToFloat64(collector.APCollisions.WithLabelValues("hidden")); got != 42 {
		t.Fatalf("ap collisions = %v, want 42", got)
	}
	if got := testutil.ToFloat64(collector.Runs.WithLabelValues("pass")); got != 2 {
		t.Fatalf("runs{result=pass} = %v, want 2", got)
	}
	if count := histogramSampleCount(t, reg, "wlansim_run_duration_seconds", nil); count != 2 {
		t.Fatalf("run duration sample_count = %d, want 2", count)
	}
}

func TestObserveResultCountsBoundsFailures(t *testing.T) {
	collector, err := NewSimCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	res := sampleResult()
	res.MinExpected = 50
	collector.ObserveResult(res)
	if got := testutil.ToFloat64(collector.Runs.WithLabelValues("fail")); got != 1 {
		t.Fatalf("runs{result=fail} = %v, want 1", got)
	}
}

func TestQueueAndBackoffMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	collector.ObserveQueueRun(1000, 7)
	collector.ObserveQueueRun(500, 3)
	for _, s := range []int{0, 3, 15, 200} {
		collector.ObserveBackoff(s)
	}

	if got := testutil.ToFloat64(collector.EventsExecuted); got != 1500 {
		t.Fatalf("events executed = %v, want 1500", got)
	}
	if got := testutil.ToFloat64(collector.EventsDiscarded); got != 10 {
		t.Fatalf("events discarded = %v, want 10", got)
	}
	if count := histogramSampleCount(t, reg, "wlansim_backoff_slots", nil); count != 4 {
		t.Fatalf("backoff sample_count = %d, want 4", count)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *SimCollector
	c.ObserveResult(sampleResult())
	c.ObserveQueueRun(1, 1)
	c.ObserveBackoff(1)
	if c.Gatherer() != nil {
		t.Fatalf("nil collector should have nil gatherer")
	}
}

func TestRegisteringTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("first NewSimCollector: %v", err)
	}
	second, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("second NewSimCollector: %v", err)
	}
	second.ObserveBackoff(1)
	if count := histogramSampleCount(t, reg, "wlansim_backoff_slots", nil); count != 1 {
		t.Fatalf("backoff sample_count = %d, want 1", count)
	}
	if first.BackoffSlots != second.BackoffSlots {
		t.Fatalf("expected the already-registered histogram to be reused")
	}
}

func TestMetricsHandlerExposesSimulationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	collector.ObserveResult(sampleResult())
	collector.ObserveQueueRun(10, 1)
	collector.ObserveBackoff(5)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"wlansim_flow_packets",
		"wlansim_throughput_mbps",
		"wlansim_ap_collisions",
		"wlansim_runs_total",
		"wlansim_run_duration_seconds",
		"wlansim_events_executed_total",
		"wlansim_events_discarded_total",
		"wlansim_backoff_slots",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
	if !strings.Contains(body, `outcome="dropped_collision"`) {
		t.Fatalf("/metrics output missing outcome label: %s", body)
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
