// Package experiment runs families of independent simulations in parallel,
// such as the RTS/CTS on/off by radio range comparison.
package experiment

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/wlan-hidden-sim/core"
	"github.com/signalsfoundry/wlan-hidden-sim/internal/logging"
	"github.com/signalsfoundry/wlan-hidden-sim/internal/observability"
)

// Variant is one point of a sweep.
type Variant struct {
	Name   string
	Config core.Config
}

// Outcome pairs a variant with its result.
type Outcome struct {
	Variant Variant
	RunID   string
	Result  *core.Result
}

// Runner executes variants concurrently. Each variant builds its own
// Simulation, so nothing but the collector is shared.
type Runner struct {
	// Parallelism bounds concurrent simulations; zero means GOMAXPROCS.
	Parallelism int
	Log         logging.Logger
	Collector   *observability.SimCollector
	// OnDone, if set, is called after each variant finishes. Calls may come
	// from several goroutines.
	OnDone func(done, total int, o Outcome)
}

// RangeRtsGrid expands base into one variant per (maxRange, enableRts)
// pair, ranges outermost.
func RangeRtsGrid(base core.Config, ranges []float64, rts []bool) []Variant {
	variants := make([]Variant, 0, len(ranges)*len(rts))
	for _, r := range ranges {
		for _, on := range rts {
			cfg := base
			cfg.Propagation.MaxRange = r
			cfg.Mac.EnableRts = on
			mode := "rts"
			if !on {
				mode = "no-rts"
			}
			cfg.Name = fmt.Sprintf("%s/range=%g/%s", base.Name, r, mode)
			variants = append(variants, Variant{Name: cfg.Name, Config: cfg})
		}
	}
	return variants
}

// Run executes every variant and returns the outcomes in variant order.
// The first configuration or simulation error cancels the remaining
// variants. Throughput bound violations are not errors here; callers
// inspect each Result.
func (r *Runner) Run(ctx context.Context, variants []Variant) ([]Outcome, error) {
	base := r.Log
	if base == nil {
		base = logging.Noop()
	}
	limit := r.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	outcomes := make([]Outcome, len(variants))
	var completed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, v := range variants {
		g.Go(func() error {
			id := uuid.NewString()
			vctx := logging.ContextWithRunID(ctx, id)
			log := base.With(logging.String("run_id", id), logging.String("variant", v.Name))

			opts := []core.Option{core.WithLogger(log)}
			if r.Collector != nil {
				opts = append(opts,
					core.WithQueueRecorder(r.Collector),
					core.WithBackoffObserver(r.Collector),
				)
			}
			sim, err := core.NewSimulation(v.Config, opts...)
			if err != nil {
				return fmt.Errorf("variant %s: %w", v.Name, err)
			}
			res, err := sim.Run(vctx)
			if err != nil {
				return fmt.Errorf("variant %s: %w", v.Name, err)
			}
			r.Collector.ObserveResult(res)

			outcomes[i] = Outcome{Variant: v, RunID: id, Result: res}
			done := completed.Add(1)
			if r.OnDone != nil {
				r.OnDone(int(done), len(variants), outcomes[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
