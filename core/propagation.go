package core

import (
	"math"
	"time"

	"github.com/signalsfoundry/wlan-hidden-sim/model"
)

const (
	// SpeedOfLight in metres per second.
	SpeedOfLight = 299792458.0

	rangeTolerance = 1e-9
)

// PropagationModel is a range-limited disc model: two nodes hear each other
// iff they are within MaxRange. It is stateless and safe to share.
type PropagationModel struct {
	MaxRange     float64
	SpeedOfLight bool
	FixedDelay   time.Duration
	FrequencyGHz float64
}

// NewPropagationModel builds the model described by cfg.
func NewPropagationModel(cfg PropagationConfig) *PropagationModel {
	return &PropagationModel{
		MaxRange:     cfg.MaxRange,
		SpeedOfLight: cfg.SpeedOfLight,
		FixedDelay:   cfg.FixedDelay,
		FrequencyGHz: cfg.FrequencyGHz,
	}
}

// InRange reports whether a transmission at a is received at b.
func (pm *PropagationModel) InRange(a, b model.Position) bool {
	return a.DistanceTo(b) <= pm.MaxRange+rangeTolerance
}

// Delay returns the propagation delay between a and b.
func (pm *PropagationModel) Delay(a, b model.Position) time.Duration {
	if !pm.SpeedOfLight {
		return pm.FixedDelay
	}
	return distanceDelay(a.DistanceTo(b))
}

// MaxDelay is the largest delay between any two in-range nodes. MAC
// response timeouts are derived from it.
func (pm *PropagationModel) MaxDelay() time.Duration {
	if !pm.SpeedOfLight {
		return pm.FixedDelay
	}
	return distanceDelay(pm.MaxRange)
}

func distanceDelay(d float64) time.Duration {
	return time.Duration(math.Round(d / SpeedOfLight * 1e9))
}

// LossDB returns the free-space path loss in dB between a and b at the
// configured carrier frequency. It is informational only; reachability is
// decided by InRange.
func (pm *PropagationModel) LossDB(a, b model.Position) float64 {
	d := a.DistanceTo(b)
	// Clamp to 1 m so co-located nodes do not produce -Inf.
	if d < 1 {
		d = 1
	}
	fGHz := pm.FrequencyGHz
	if fGHz <= 0 {
		fGHz = 5.18
	}
	// Free-space path loss in dB: 92.45 + 20 log10(d_km) + 20 log10(f_GHz)
	return 20*math.Log10(d/1000) + 20*math.Log10(fGHz) + 92.45
}
