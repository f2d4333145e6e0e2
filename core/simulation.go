package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/wlan-hidden-sim/internal/logging"
	"github.com/signalsfoundry/wlan-hidden-sim/internal/sched"
	"github.com/signalsfoundry/wlan-hidden-sim/kb"
	"github.com/signalsfoundry/wlan-hidden-sim/model"
	"github.com/signalsfoundry/wlan-hidden-sim/timectrl"
)

const tracerName = "github.com/signalsfoundry/wlan-hidden-sim/core"

// ErrAlreadyRun is returned when Run is called on a finished simulation.
var ErrAlreadyRun = errors.New("simulation already run")

// Option customises a Simulation.
type Option func(*Simulation)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l logging.Logger) Option {
	return func(s *Simulation) {
		if l != nil {
			s.log = l
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *Simulation) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithQueueRecorder attaches a recorder to the event queue.
func WithQueueRecorder(r sched.Recorder) Option {
	return func(s *Simulation) { s.recorder = r }
}

// WithBackoffObserver receives every backoff draw of every station.
func WithBackoffObserver(o BackoffObserver) Option {
	return func(s *Simulation) { s.backoff = o }
}

// WithSinkKind selects the application on the AP.
func WithSinkKind(k SinkKind) Option {
	return func(s *Simulation) { s.sinkKind = k }
}

// WithProgress calls fn every tick of simulation time with the current
// time and the stop time.
func WithProgress(tick time.Duration, fn func(now, stop time.Duration)) Option {
	return func(s *Simulation) {
		s.progressTick = tick
		s.progress = fn
	}
}

// Simulation owns everything one run needs: the event queue, the channel,
// the nodes and the flow monitor. Nothing is shared between simulations.
type Simulation struct {
	cfg    Config
	log    logging.Logger
	tracer trace.Tracer

	recorder     sched.Recorder
	backoff      BackoffObserver
	sinkKind     SinkKind
	progressTick time.Duration
	progress     func(now, stop time.Duration)

	queue   *sched.EventQueue
	prop    *PropagationModel
	timing  PhyTiming
	channel *Channel
	topo    *kb.KnowledgeBase
	flows   *FlowMonitor

	ap    *Node
	nodes []*Node

	err error
	ran bool
}

// NewSimulation validates cfg and builds the topology, channel, MACs,
// traffic sources and the AP sink. Nothing runs until Run.
func NewSimulation(cfg Config, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Simulation{
		cfg:      cfg,
		log:      logging.Noop(),
		tracer:   otel.Tracer(tracerName),
		sinkKind: SinkUDPServer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.build(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Simulation) build() error {
	timing, err := NewPhyTiming(s.cfg.Phy)
	if err != nil {
		return err
	}
	topo, err := BuildTopology(s.cfg)
	if err != nil {
		return err
	}

	s.timing = timing
	s.topo = topo
	s.queue = sched.NewEventQueue()
	s.queue.SetRecorder(s.recorder)
	s.prop = NewPropagationModel(s.cfg.Propagation)
	s.channel = NewChannel(s.queue, s.prop)

	apDef, _ := topo.AccessPoint()
	stations := topo.ListStations()
	ids := make([]model.NodeID, 0, len(stations))
	for _, st := range stations {
		ids = append(ids, st.ID)
	}
	s.flows = NewFlowMonitor(ids)

	env := &macEnv{
		queue:    s.queue,
		channel:  s.channel,
		timing:   timing,
		cfg:      s.cfg.Mac,
		payload:  s.cfg.Traffic.PayloadSize,
		maxDelay: s.prop.MaxDelay(),
		flows:    s.flows,
		backoff:  s.backoff,
		fail:     s.fail,
	}

	s.ap = &Node{NodeDefinition: apDef}
	s.ap.MAC = newMac(env, apDef.ID, apDef.ID, true, s.nodeRNG(apDef.ID))
	s.ap.Sink = NewSink(s.sinkKind, 0)
	s.ap.MAC.deliver = func(p model.Packet) {
		now := s.queue.Now()
		s.ap.Sink.Receive(p, now)
		s.flows.PacketReceived(p, now)
	}
	if err := s.channel.Attach(apDef.ID, apDef.Position, s.ap.MAC); err != nil {
		return err
	}
	s.nodes = append(s.nodes, s.ap)

	for _, def := range stations {
		n := &Node{NodeDefinition: def}
		n.MAC = newMac(env, def.ID, apDef.ID, false, s.nodeRNG(def.ID))
		n.Source = NewGenerator(s.queue, def.ID, s.cfg.Traffic, s.cfg.StopTime(), n.send(s.flows))
		if err := s.channel.Attach(def.ID, def.Position, n.MAC); err != nil {
			return err
		}
		s.log.Debug(context.Background(), "station placed",
			logging.Int("station", int(def.ID)),
			logging.Float64("distance", def.Position.DistanceTo(apDef.Position)),
			logging.Float64("loss_db", s.prop.LossDB(def.Position, apDef.Position)),
		)
		if !s.prop.InRange(def.Position, apDef.Position) {
			s.log.Warn(context.Background(), "station out of range of access point",
				logging.Int("station", int(def.ID)),
				logging.Float64("distance", def.Position.DistanceTo(apDef.Position)),
				logging.Float64("max_range", s.prop.MaxRange),
			)
		}
		s.nodes = append(s.nodes, n)
	}
	return nil
}

// nodeRNG derives an independent, reproducible stream per node from the
// (seed, run) pair.
func (s *Simulation) nodeRNG(id model.NodeID) *rand.Rand {
	const golden = 0x9e3779b97f4a7c15
	return rand.New(rand.NewPCG(s.cfg.Seed, s.cfg.Run*golden+uint64(id)+1))
}

func (s *Simulation) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

// Nodes returns the AP followed by the stations in ID order.
func (s *Simulation) Nodes() []*Node { return s.nodes }

// Topology returns the node registry.
func (s *Simulation) Topology() *kb.KnowledgeBase { return s.topo }

// Summarize aggregates the flow statistics collected so far.
func (s *Simulation) Summarize() Summary {
	return s.flows.Summarize(s.cfg.SimulationTime)
}

// Run starts the generators and drains the event queue up to the stop
// time. A Simulation can only be run once.
func (s *Simulation) Run(ctx context.Context) (*Result, error) {
	if s.ran {
		return nil, ErrAlreadyRun
	}
	s.ran = true

	stop := s.cfg.StopTime()
	ctx, span := s.tracer.Start(ctx, "simulation.run", trace.WithAttributes(
		attribute.String("scenario", s.cfg.Name),
		attribute.Int("stations", len(s.nodes)-1),
		attribute.Bool("rts", s.cfg.Mac.EnableRts),
		attribute.Float64("max_range", s.cfg.Propagation.MaxRange),
	))
	defer span.End()

	log := s.log.With(logging.String("scenario", s.cfg.Name))
	for _, n := range s.nodes {
		if n.Source == nil {
			continue
		}
		if err := n.Source.Schedule(); err != nil {
			return nil, s.spanError(span, fmt.Errorf("schedule generator %d: %w", n.ID, err))
		}
	}
	if s.progress != nil {
		tc := timectrl.NewTimeController(s.queue, s.progressTick, timectrl.Accelerated)
		tc.AddListener(func(now time.Duration) { s.progress(now, stop) })
		if err := tc.Start(stop); err != nil {
			return nil, s.spanError(span, err)
		}
	}

	log.Info(ctx, "simulation started",
		logging.Int("stations", len(s.nodes)-1),
		logging.Bool("rts", s.cfg.Mac.EnableRts),
		logging.Duration("stop", stop),
		logging.String("phy", s.timing.String()),
	)

	wallStart := time.Now()
	_, qspan := s.tracer.Start(ctx, "eventqueue.run")
	stats, err := s.queue.RunContext(ctx, stop)
	qspan.SetAttributes(
		attribute.Int64("events_executed", int64(stats.Executed)),
		attribute.Int("events_discarded", stats.Discarded),
		attribute.Int64("sim_stopped_at_ns", int64(stats.StoppedAt)),
	)
	qspan.End()
	if err != nil {
		return nil, s.spanError(span, fmt.Errorf("run simulation: %w", err))
	}
	if s.err != nil {
		return nil, s.spanError(span, fmt.Errorf("run simulation: %w", s.err))
	}
	wall := time.Since(wallStart)

	_, cspan := s.tracer.Start(ctx, "flowstats.collect")
	res := s.result(stats, wall)
	cspan.End()

	span.SetAttributes(attribute.Float64("throughput_mbps", res.ThroughputMbps))
	log.Info(ctx, "simulation finished",
		logging.SimTime(stats.StoppedAt),
		logging.Uint64("events", stats.Executed),
		logging.Int("discarded", stats.Discarded),
		logging.Float64("throughput_mbps", res.ThroughputMbps),
		logging.Uint64("dropped_collision", res.Total.DroppedByCollision),
		logging.Uint64("dropped_retry", res.Total.DroppedRetryExhausted),
		logging.Uint64("dropped_queue", res.Total.DroppedByQueue),
		logging.Duration("wall", wall),
	)
	return res, nil
}

func (s *Simulation) spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Result is the outcome of a finished run.
type Result struct {
	Summary

	Name      string
	EnableRts bool
	MaxRange  float64
	// SimulationTime is the measurement window used for throughput.
	SimulationTime time.Duration
	MinExpected    float64
	MaxExpected    float64

	// MacStats per node, AP included.
	MacStats map[model.NodeID]MacStats
	// APCollisions counts receptions at the AP lost to overlap.
	APCollisions uint64
	HiddenPairs  int
	// Transmissions counts every frame put on the air, control frames included.
	Transmissions uint64

	SinkKind     SinkKind
	SinkReceived uint64
	SinkLost     uint64

	EventsExecuted  uint64
	EventsDiscarded int
	WallTime        time.Duration
}

func (s *Simulation) result(stats sched.RunStats, wall time.Duration) *Result {
	res := &Result{
		Summary:         s.Summarize(),
		Name:            s.cfg.Name,
		EnableRts:       s.cfg.Mac.EnableRts,
		MaxRange:        s.cfg.Propagation.MaxRange,
		SimulationTime:  s.cfg.SimulationTime,
		MinExpected:     s.cfg.MinExpectedThroughput,
		MaxExpected:     s.cfg.MaxExpectedThroughput,
		MacStats:        make(map[model.NodeID]MacStats, len(s.nodes)),
		APCollisions:    s.channel.Collisions(s.ap.ID),
		HiddenPairs:     len(s.topo.HiddenPairs(s.prop.InRange)),
		Transmissions:   s.channel.Transmissions(),
		SinkKind:        s.ap.Sink.Kind,
		SinkReceived:    s.ap.Sink.Received(),
		SinkLost:        s.ap.Sink.Lost(),
		EventsExecuted:  stats.Executed,
		EventsDiscarded: stats.Discarded,
		WallTime:        wall,
	}
	for _, n := range s.nodes {
		res.MacStats[n.ID] = n.MAC.Stats()
	}
	return res
}

// CheckThroughput returns a *ThroughputBoundsError when the throughput is
// below the minimum or, if a maximum is set, above it.
func (r *Result) CheckThroughput() error {
	if r.ThroughputMbps < r.MinExpected || (r.MaxExpected > 0 && r.ThroughputMbps > r.MaxExpected) {
		return &ThroughputBoundsError{
			Throughput: r.ThroughputMbps,
			Min:        r.MinExpected,
			Max:        r.MaxExpected,
		}
	}
	return nil
}
