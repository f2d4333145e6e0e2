package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// registerQueueMetrics adds the event queue and MAC contention metrics.
func (c *SimCollector) registerQueueMetrics(reg prometheus.Registerer) error {
	executed, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wlansim_events_executed_total",
		Help: "Events executed by simulation event queues.",
	}), "wlansim_events_executed_total")
	if err != nil {
		return err
	}
	discarded, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wlansim_events_discarded_total",
		Help: "Events still pending at the stop time and discarded without running.",
	}), "wlansim_events_discarded_total")
	if err != nil {
		return err
	}
	backoff, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wlansim_backoff_slots",
		Help:    "Backoff counter values drawn by stations.",
		Buckets: []float64{0, 7, 15, 31, 63, 127, 255, 511, 1023},
	}), "wlansim_backoff_slots")
	if err != nil {
		return err
	}

	c.EventsExecuted = executed
	c.EventsDiscarded = discarded
	c.BackoffSlots = backoff
	return nil
}

// ObserveQueueRun implements sched.Recorder.
func (c *SimCollector) ObserveQueueRun(executed uint64, discarded int) {
	if c == nil || c.EventsExecuted == nil {
		return
	}
	c.EventsExecuted.Add(float64(executed))
	c.EventsDiscarded.Add(float64(discarded))
}

// ObserveBackoff implements core.BackoffObserver.
func (c *SimCollector) ObserveBackoff(slots int) {
	if c == nil || c.BackoffSlots == nil {
		return
	}
	c.BackoffSlots.Observe(float64(slots))
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
