package core

import (
	"time"

	"github.com/signalsfoundry/wlan-hidden-sim/model"
)

// PhyConfig selects the data and control rates used to compute frame
// airtime. MCS and channel width are interpreted by the PHY timing model
// only; there is no bit-level PHY.
type PhyConfig struct {
	MCS             int `yaml:"mcs" mapstructure:"mcs"`
	ChannelWidthMHz int `yaml:"channelWidth" mapstructure:"channelWidth"`
}

// MacConfig configures the CSMA/CA contention model.
type MacConfig struct {
	EnableRts bool `yaml:"enableRts" mapstructure:"enableRts"`
	// NMpdus bounds A-MPDU aggregation: the maximum aggregate size is
	// NMpdus * (payload + AmpduOverheadBytes).
	NMpdus     int `yaml:"nMpdus" mapstructure:"nMpdus"`
	QueueSize  int `yaml:"queueSize" mapstructure:"queueSize"`
	RetryLimit int `yaml:"retryLimit" mapstructure:"retryLimit"`
	CwMin      int `yaml:"cwMin" mapstructure:"cwMin"`
	CwMax      int `yaml:"cwMax" mapstructure:"cwMax"`
}

// PropagationConfig configures the range-limited disc model.
type PropagationConfig struct {
	MaxRange float64 `yaml:"maxRange" mapstructure:"maxRange"`
	// SpeedOfLight derives the propagation delay from distance. When false
	// every in-range pair uses FixedDelay, which may be zero.
	SpeedOfLight bool          `yaml:"speedOfLight" mapstructure:"speedOfLight"`
	FixedDelay   time.Duration `yaml:"fixedDelay" mapstructure:"fixedDelay"`
	FrequencyGHz float64       `yaml:"frequencyGHz" mapstructure:"frequencyGHz"`
}

// TrafficConfig configures the saturated uplink UDP sources.
type TrafficConfig struct {
	PayloadSize int           `yaml:"payloadSize" mapstructure:"payloadSize"`
	Interval    time.Duration `yaml:"interval" mapstructure:"interval"`
	// StartTime is when the generators start (default 1s). The stop time
	// follows it: generators stop and the run ends at StartTime +
	// SimulationTime, so moving StartTime shifts the whole measurement
	// window rather than shortening it.
	StartTime time.Duration `yaml:"startTime" mapstructure:"startTime"`
}

// Config is the complete, strongly typed description of one simulation run.
type Config struct {
	// Name labels the scenario in logs and metrics.
	Name string `yaml:"name" mapstructure:"name"`

	NumStations int `yaml:"stations" mapstructure:"stations"`
	// StationDistance is the AP to station radius of the generated ring
	// topology. Zero means MaxRange.
	StationDistance float64 `yaml:"stationDistance" mapstructure:"stationDistance"`

	SimulationTime time.Duration `yaml:"simulationTime" mapstructure:"simulationTime"`

	Seed uint64 `yaml:"seed" mapstructure:"seed"`
	Run  uint64 `yaml:"run" mapstructure:"run"`

	// Throughput gate in Mbit/s; zero disables a bound.
	MinExpectedThroughput float64 `yaml:"minExpectedThroughput" mapstructure:"minExpectedThroughput"`
	MaxExpectedThroughput float64 `yaml:"maxExpectedThroughput" mapstructure:"maxExpectedThroughput"`

	Phy         PhyConfig         `yaml:"phy" mapstructure:"phy"`
	Mac         MacConfig         `yaml:"mac" mapstructure:"mac"`
	Propagation PropagationConfig `yaml:"propagation" mapstructure:"propagation"`
	Traffic     TrafficConfig     `yaml:"traffic" mapstructure:"traffic"`

	// Nodes, when non-empty, replaces the generated hidden-station ring.
	Nodes []model.NodeDefinition `yaml:"-" mapstructure:"-"`
}

// DefaultConfig returns the hidden-station experiment defaults: four
// stations on a 5 m ring around the AP, 5 m radio range, saturated 1472
// byte UDP uplink, HE MCS 11 on 80 MHz with RTS/CTS enabled.
func DefaultConfig() Config {
	return Config{
		Name:            "hidden-stations",
		NumStations:     4,
		StationDistance: 5.0,
		SimulationTime:  10 * time.Second,
		Seed:            1,
		Run:             5,
		Phy: PhyConfig{
			MCS:             11,
			ChannelWidthMHz: 80,
		},
		Mac: MacConfig{
			EnableRts:  true,
			NMpdus:     1,
			QueueSize:  500,
			RetryLimit: 7,
			CwMin:      15,
			CwMax:      1023,
		},
		Propagation: PropagationConfig{
			MaxRange:     5.0,
			SpeedOfLight: true,
			FrequencyGHz: 5.18,
		},
		Traffic: TrafficConfig{
			PayloadSize: 1472,
			Interval:    100 * time.Microsecond,
			StartTime:   time.Second,
		},
	}
}

// maxUDPPayload is the largest payload a single UDP datagram can carry.
const maxUDPPayload = 65507

// Validate checks every field and returns the first problem found as a
// *ConfigurationError.
func (c Config) Validate() error {
	if c.NumStations < 0 {
		return configErr("stations", "must be >= 0, got %d", c.NumStations)
	}
	if c.StationDistance < 0 {
		return configErr("stationDistance", "must be >= 0, got %g", c.StationDistance)
	}
	if c.SimulationTime <= 0 {
		return configErr("simulationTime", "must be positive, got %s", c.SimulationTime)
	}
	if c.MinExpectedThroughput < 0 {
		return configErr("minExpectedThroughput", "must be >= 0, got %g", c.MinExpectedThroughput)
	}
	if c.MaxExpectedThroughput < 0 {
		return configErr("maxExpectedThroughput", "must be >= 0, got %g", c.MaxExpectedThroughput)
	}
	if c.MaxExpectedThroughput > 0 && c.MaxExpectedThroughput < c.MinExpectedThroughput {
		return configErr("maxExpectedThroughput", "%g is below minExpectedThroughput %g", c.MaxExpectedThroughput, c.MinExpectedThroughput)
	}

	if _, err := DataRateMbps(c.Phy.MCS, c.Phy.ChannelWidthMHz); err != nil {
		return err
	}

	m := c.Mac
	if m.NMpdus < 1 {
		return configErr("nMpdus", "must be >= 1, got %d", m.NMpdus)
	}
	if m.QueueSize < 1 {
		return configErr("mac.queueSize", "must be >= 1, got %d", m.QueueSize)
	}
	if m.RetryLimit < 0 {
		return configErr("mac.retryLimit", "must be >= 0, got %d", m.RetryLimit)
	}
	if m.CwMin < 1 {
		return configErr("mac.cwMin", "must be >= 1, got %d", m.CwMin)
	}
	if m.CwMax < m.CwMin {
		return configErr("mac.cwMax", "%d is below cwMin %d", m.CwMax, m.CwMin)
	}

	p := c.Propagation
	if p.MaxRange <= 0 {
		return configErr("maxRange", "must be positive, got %g", p.MaxRange)
	}
	if p.FixedDelay < 0 {
		return configErr("propagation.fixedDelay", "must be >= 0, got %s", p.FixedDelay)
	}
	if p.FrequencyGHz <= 0 {
		return configErr("propagation.frequencyGHz", "must be positive, got %g", p.FrequencyGHz)
	}

	t := c.Traffic
	if t.PayloadSize < 1 || t.PayloadSize > maxUDPPayload {
		return configErr("payloadSize", "must be in [1, %d], got %d", maxUDPPayload, t.PayloadSize)
	}
	if t.Interval <= 0 {
		return configErr("traffic.interval", "must be positive, got %s", t.Interval)
	}
	if t.StartTime < 0 {
		return configErr("traffic.startTime", "must be >= 0, got %s", t.StartTime)
	}

	if len(c.Nodes) > 0 {
		aps := 0
		for _, n := range c.Nodes {
			if n.Kind == model.NodeKindAccessPoint {
				aps++
			}
		}
		if aps != 1 {
			return configErr("nodes", "topology needs exactly one access point, got %d", aps)
		}
	}
	return nil
}

// StopTime is the instant generators stop and the event queue is drained:
// Traffic.StartTime + SimulationTime, which is SimulationTime + 1s with the
// default start.
func (c Config) StopTime() time.Duration {
	return c.Traffic.StartTime + c.SimulationTime
}

// stationRadius is the ring radius used by HiddenStationTopology.
func (c Config) stationRadius() float64 {
	if c.StationDistance > 0 {
		return c.StationDistance
	}
	return c.Propagation.MaxRange
}
