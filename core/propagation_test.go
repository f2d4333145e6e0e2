package core

import (
	"testing"
	"time"

	"github.com/signalsfoundry/wlan-hidden-sim/model"
)

func TestInRangeDisc(t *testing.T) {
	pm := NewPropagationModel(DefaultConfig().Propagation)
	ap := model.Position{X: 5, Y: 5}

	if !pm.InRange(ap, model.Position{X: 5, Y: 10}) {
		t.Fatalf("station at exactly MaxRange should be in range")
	}
	if pm.InRange(model.Position{X: 5, Y: 10}, model.Position{X: 10, Y: 5}) {
		t.Fatalf("adjacent ring stations (7.07 apart) should be hidden")
	}
	if pm.InRange(ap, model.Position{X: 5, Y: 10.001}) {
		t.Fatalf("station beyond MaxRange should be out of range")
	}
}

func TestDelay(t *testing.T) {
	pm := NewPropagationModel(DefaultConfig().Propagation)
	a := model.Position{}
	b := model.Position{X: 5}
	// 5 m at c is 16.68 ns.
	if got := pm.Delay(a, b); got != 17*time.Nanosecond {
		t.Fatalf("Delay = %v, want 17ns", got)
	}
	if got := pm.MaxDelay(); got != 17*time.Nanosecond {
		t.Fatalf("MaxDelay = %v, want 17ns", got)
	}

	fixed := &PropagationModel{MaxRange: 5, FixedDelay: time.Microsecond}
	if got := fixed.Delay(a, b); got != time.Microsecond {
		t.Fatalf("fixed Delay = %v, want 1us", got)
	}
	zero := &PropagationModel{MaxRange: 5}
	if got := zero.MaxDelay(); got != 0 {
		t.Fatalf("zero MaxDelay = %v, want 0", got)
	}
}

func TestLossDBIsMonotonic(t *testing.T) {
	pm := NewPropagationModel(DefaultConfig().Propagation)
	origin := model.Position{}
	near := pm.LossDB(origin, model.Position{X: 1})
	far := pm.LossDB(origin, model.Position{X: 5})
	if !(far > near) {
		t.Fatalf("loss should grow with distance: 1m=%.2f 5m=%.2f", near, far)
	}
	if clamped := pm.LossDB(origin, model.Position{X: 0.1}); clamped != near {
		t.Fatalf("sub-metre loss %.2f should clamp to 1m loss %.2f", clamped, near)
	}
}
