package core

import (
	"errors"
	"testing"
	"time"
)

func TestDataRateMbps(t *testing.T) {
	cases := []struct {
		mcs, width int
		want       float64
	}{
		{0, 20, 8.6},
		{11, 20, 143.4},
		{7, 40, 172.1},
		{11, 80, 600.5},
		{11, 160, 1201.0},
	}
	for _, tc := range cases {
		got, err := DataRateMbps(tc.mcs, tc.width)
		if err != nil {
			t.Fatalf("DataRateMbps(%d, %d): %v", tc.mcs, tc.width, err)
		}
		if got != tc.want {
			t.Fatalf("DataRateMbps(%d, %d) = %v, want %v", tc.mcs, tc.width, got, tc.want)
		}
	}
}

func TestDataRateMbpsRejectsInvalidSelection(t *testing.T) {
	var cfgErr *ConfigurationError
	if _, err := DataRateMbps(11, 30); !errors.As(err, &cfgErr) || cfgErr.Field != "channelWidth" {
		t.Fatalf("width 30: err = %v, want ConfigurationError on channelWidth", err)
	}
	if _, err := DataRateMbps(12, 80); !errors.As(err, &cfgErr) || cfgErr.Field != "mcs" {
		t.Fatalf("mcs 12: err = %v, want ConfigurationError on mcs", err)
	}
	if _, err := ControlRateMbps(-1); err == nil {
		t.Fatalf("expected error for negative MCS")
	}
}

func TestFrameDurations(t *testing.T) {
	timing, err := NewPhyTiming(PhyConfig{MCS: 11, ChannelWidthMHz: 80})
	if err != nil {
		t.Fatalf("NewPhyTiming: %v", err)
	}

	// 1538 bytes need two 13.6 us HE symbols at 600.5 Mbit/s.
	if got, want := timing.DataDuration(MpduBytes(1472)), 71200*time.Nanosecond; got != want {
		t.Fatalf("DataDuration = %v, want %v", got, want)
	}
	// Control frames go at 54 Mbit/s: one 4 us symbol for RTS/CTS/Ack.
	for _, size := range []int{RTSBytes, CTSBytes, AckBytes} {
		if got := timing.ControlDuration(size); got != 24*time.Microsecond {
			t.Fatalf("ControlDuration(%d) = %v, want 24us", size, got)
		}
	}
	if got := timing.ControlDuration(BlockAckBytes); got != 28*time.Microsecond {
		t.Fatalf("ControlDuration(BlockAck) = %v, want 28us", got)
	}

	slow, err := NewPhyTiming(PhyConfig{MCS: 0, ChannelWidthMHz: 20})
	if err != nil {
		t.Fatalf("NewPhyTiming: %v", err)
	}
	if got := slow.ControlDuration(RTSBytes); got != 52*time.Microsecond {
		t.Fatalf("RTS at 6 Mbit/s = %v, want 52us", got)
	}
}

func TestAmpduSizing(t *testing.T) {
	if got := AmpduLimit(1, 1472); got != 1 {
		t.Fatalf("AmpduLimit(1) = %d, want 1", got)
	}
	if got := AmpduLimit(4, 1472); got != 4 {
		t.Fatalf("AmpduLimit(4) = %d, want 4", got)
	}
	if got := AmpduLimit(0, 1472); got != 1 {
		t.Fatalf("AmpduLimit(0) = %d, want at least 1", got)
	}
	if got := PsduBytes(1, 1472); got != 1538 {
		t.Fatalf("PsduBytes(1) = %d, want 1538", got)
	}
	if got := PsduBytes(4, 1472); got != 4*1542 {
		t.Fatalf("PsduBytes(4) = %d, want %d", got, 4*1542)
	}
}

func TestInterframeSpaces(t *testing.T) {
	if DIFS != 34*time.Microsecond {
		t.Fatalf("DIFS = %v, want 34us", DIFS)
	}
}
