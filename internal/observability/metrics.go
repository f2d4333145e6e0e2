package observability

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/wlan-hidden-sim/core"
	"github.com/signalsfoundry/wlan-hidden-sim/model"
)

// Flow outcome label values for wlansim_flow_packets.
const (
	OutcomeGenerated        = "generated"
	OutcomeSent             = "sent"
	OutcomeReceived         = "received"
	OutcomeDroppedCollision = "dropped_collision"
	OutcomeDroppedRetry     = "dropped_retry_exhausted"
	OutcomeDroppedQueue     = "dropped_queue"
	OutcomeInFlight         = "in_flight"
)

// SimCollector bundles the Prometheus metrics of simulation runs. It is safe
// for concurrent use by simulations running in parallel.
type SimCollector struct {
	gatherer prometheus.Gatherer

	FlowPackets  *prometheus.GaugeVec
	Throughput   *prometheus.GaugeVec
	APCollisions *prometheus.GaugeVec
	Runs         *prometheus.CounterVec
	RunDuration  prometheus.Histogram

	EventsExecuted  prometheus.Counter
	EventsDiscarded prometheus.Counter
	BackoffSlots    prometheus.Histogram
}

// NewSimCollector registers the simulator metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	flows, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wlansim_flow_packets",
		Help: "Packets per station flow at the end of a run, labeled by scenario, station and outcome.",
	}, []string{"scenario", "station", "outcome"}), "wlansim_flow_packets")
	if err != nil {
		return nil, err
	}
	throughput, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wlansim_throughput_mbps",
		Help: "Aggregate uplink UDP throughput of the last run in Mbit/s.",
	}, []string{"scenario"}), "wlansim_throughput_mbps")
	if err != nil {
		return nil, err
	}
	collisions, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wlansim_ap_collisions",
		Help: "Receptions lost to overlapping transmissions at the access point.",
	}, []string{"scenario"}), "wlansim_ap_collisions")
	if err != nil {
		return nil, err
	}
	runs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wlansim_runs_total",
		Help: "Completed simulation runs, labeled by whether throughput was within bounds.",
	}, []string{"result"}), "wlansim_runs_total")
	if err != nil {
		return nil, err
	}
	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wlansim_run_duration_seconds",
		Help:    "Wall-clock time spent draining the event queue.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}), "wlansim_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	c := &SimCollector{
		gatherer:     gatherer,
		FlowPackets:  flows,
		Throughput:   throughput,
		APCollisions: collisions,
		Runs:         runs,
		RunDuration:  duration,
	}
	if err := c.registerQueueMetrics(reg); err != nil {
		return nil, err
	}
	return c, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveResult publishes the outcome of a finished run. Gauges are set,
// not added, so observing the same result twice changes nothing but the
// run counter.
func (c *SimCollector) ObserveResult(res *core.Result) {
	if c == nil || res == nil {
		return
	}
	scenario := res.Name
	for _, r := range res.Flows {
		c.setFlow(scenario, r)
	}
	c.Throughput.WithLabelValues(scenario).Set(res.ThroughputMbps)
	c.APCollisions.WithLabelValues(scenario).Set(float64(res.APCollisions))
	c.RunDuration.Observe(res.WallTime.Seconds())

	result := "pass"
	if res.CheckThroughput() != nil {
		result = "fail"
	}
	c.Runs.WithLabelValues(result).Inc()
}

func (c *SimCollector) setFlow(scenario string, r model.FlowRecord) {
	station := strconv.Itoa(int(r.StationID))
	for outcome, v := range map[string]uint64{
		OutcomeGenerated:        r.Generated,
		OutcomeSent:             r.Sent,
		OutcomeReceived:         r.Received,
		OutcomeDroppedCollision: r.DroppedByCollision,
		OutcomeDroppedRetry:     r.DroppedRetryExhausted,
		OutcomeDroppedQueue:     r.DroppedByQueue,
		OutcomeInFlight:         r.InFlight,
	} {
		c.FlowPackets.WithLabelValues(scenario, station, outcome).Set(float64(v))
	}
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
