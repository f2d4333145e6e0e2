package experiment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/signalsfoundry/wlan-hidden-sim/core"
	"github.com/signalsfoundry/wlan-hidden-sim/internal/observability"
)

func shortConfig() core.Config {
	cfg := core.DefaultConfig()
	cfg.SimulationTime = 200 * time.Millisecond
	return cfg
}

func TestRangeRtsGrid(t *testing.T) {
	variants := RangeRtsGrid(shortConfig(), []float64{5, 20}, []bool{false, true})
	if len(variants) != 4 {
		t.Fatalf("got %d variants, want 4", len(variants))
	}
	want := []struct {
		name string
		rng  float64
		rts  bool
	}{
		{"hidden-stations/range=5/no-rts", 5, false},
		{"hidden-stations/range=5/rts", 5, true},
		{"hidden-stations/range=20/no-rts", 20, false},
		{"hidden-stations/range=20/rts", 20, true},
	}
	for i, w := range want {
		v := variants[i]
		if v.Name != w.name || v.Config.Propagation.MaxRange != w.rng || v.Config.Mac.EnableRts != w.rts {
			t.Fatalf("variant %d = %s range=%v rts=%v, want %+v", i, v.Name, v.Config.Propagation.MaxRange, v.Config.Mac.EnableRts, w)
		}
	}
}

func TestRunnerKeepsVariantOrder(t *testing.T) {
	variants := RangeRtsGrid(shortConfig(), []float64{5, 20}, []bool{false, true})
	reg := prometheus.NewRegistry()
	collector, err := observability.NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	var mu sync.Mutex
	var calls int
	r := &Runner{
		Parallelism: 2,
		Collector:   collector,
		OnDone: func(done, total int, o Outcome) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if total != 4 {
				t.Errorf("total = %d, want 4", total)
			}
		},
	}
	outcomes, err := r.Run(context.Background(), variants)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(outcomes) != len(variants) || calls != len(variants) {
		t.Fatalf("outcomes=%d callbacks=%d, want %d", len(outcomes), calls, len(variants))
	}
	seen := map[string]bool{}
	for i, o := range outcomes {
		if o.Variant.Name != variants[i].Name || o.Result == nil || o.Result.Name != variants[i].Name {
			t.Fatalf("outcome %d out of order: %+v", i, o.Variant.Name)
		}
		if o.RunID == "" || seen[o.RunID] {
			t.Fatalf("outcome %d has missing or duplicate run id %q", i, o.RunID)
		}
		seen[o.RunID] = true
	}
	if got := testutil.ToFloat64(collector.Runs.WithLabelValues("pass")); got != 4 {
		t.Fatalf("runs{result=pass} = %v, want 4", got)
	}
}

func TestRunnerMatchesSequentialRuns(t *testing.T) {
	cfg := shortConfig()
	cfg.Mac.EnableRts = false
	sim, err := core.NewSimulation(cfg)
	if err != nil {
		t.Fatalf("NewSimulation: %v", err)
	}
	want, err := sim.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	outcomes, err := (&Runner{Parallelism: 3}).Run(context.Background(), []Variant{
		{Name: "a", Config: cfg}, {Name: "b", Config: cfg}, {Name: "c", Config: cfg},
	})
	if err != nil {
		t.Fatalf("Runner.Run: %v", err)
	}
	for _, o := range outcomes {
		if o.Result.Total != want.Total {
			t.Fatalf("parallel run %s diverged: %+v vs %+v", o.Variant.Name, o.Result.Total, want.Total)
		}
	}
}

func TestRunnerStopsOnConfigurationError(t *testing.T) {
	bad := shortConfig()
	bad.Phy.MCS = 99
	_, err := (&Runner{}).Run(context.Background(), []Variant{
		{Name: "good", Config: shortConfig()},
		{Name: "bad", Config: bad},
	})
	var cfgErr *core.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want *core.ConfigurationError", err)
	}
}
