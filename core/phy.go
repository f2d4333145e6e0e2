package core

import (
	"fmt"
	"math"
	"time"
)

// 802.11ax (HE) timing constants for the 5 GHz band.
const (
	SlotTime = 9 * time.Microsecond
	SIFS     = 16 * time.Microsecond
	DIFS     = SIFS + 2*SlotTime

	// hePreamble covers L-STF through HE-LTF for a single-stream SU PPDU.
	hePreamble   = 44 * time.Microsecond
	heSymbol     = 13600 * time.Nanosecond // 12.8 us + 0.8 us GI
	ofdmPreamble = 20 * time.Microsecond
	ofdmSymbol   = 4 * time.Microsecond

	serviceBits = 16
	tailBits    = 6
)

// Frame sizes in bytes.
const (
	// MacOverheadBytes is the per-MPDU overhead on top of the UDP payload:
	// MAC header and FCS, LLC/SNAP, IPv4 and UDP headers.
	MacOverheadBytes = 66
	// AmpduOverheadBytes is the per-MPDU allowance used when deriving the
	// maximum A-MPDU size from nMpdus.
	AmpduOverheadBytes = 200
	// ampduDelimiterBytes precedes every MPDU inside an A-MPDU.
	ampduDelimiterBytes = 4

	RTSBytes      = 20
	CTSBytes      = 14
	AckBytes      = 14
	BlockAckBytes = 32
)

// HE single-stream data rates in Mbit/s, 0.8 us GI, indexed by MCS.
var heRates = map[int][12]float64{
	20:  {8.6, 17.2, 25.8, 34.4, 51.6, 68.8, 77.4, 86.0, 103.2, 114.7, 129.0, 143.4},
	40:  {17.2, 34.4, 51.6, 68.8, 103.2, 137.6, 154.9, 172.1, 206.5, 229.4, 258.1, 286.8},
	80:  {36.0, 72.1, 108.1, 144.1, 216.2, 288.2, 324.3, 360.3, 432.4, 480.4, 540.4, 600.5},
	160: {72.1, 144.1, 216.2, 288.2, 432.4, 576.5, 648.5, 720.6, 864.7, 960.8, 1080.9, 1201.0},
}

// Non-HT reference rates used for control frames, indexed by MCS.
var nonHTRefRates = [12]float64{6, 12, 18, 24, 36, 48, 54, 54, 54, 54, 54, 54}

// DataRateMbps returns the HE data rate for the given MCS and channel width.
func DataRateMbps(mcs, widthMHz int) (float64, error) {
	rates, ok := heRates[widthMHz]
	if !ok {
		return 0, configErr("channelWidth", "must be one of 20, 40, 80, 160 MHz, got %d", widthMHz)
	}
	if mcs < 0 || mcs >= len(rates) {
		return 0, configErr("mcs", "must be in [0, 11], got %d", mcs)
	}
	return rates[mcs], nil
}

// ControlRateMbps returns the non-HT rate control frames are sent at.
func ControlRateMbps(mcs int) (float64, error) {
	if mcs < 0 || mcs >= len(nonHTRefRates) {
		return 0, configErr("mcs", "must be in [0, 11], got %d", mcs)
	}
	return nonHTRefRates[mcs], nil
}

// PhyTiming converts frame sizes into airtime for a fixed rate selection.
type PhyTiming struct {
	DataRateMbps    float64
	ControlRateMbps float64
}

// NewPhyTiming builds the timing model for a PhyConfig.
func NewPhyTiming(cfg PhyConfig) (PhyTiming, error) {
	data, err := DataRateMbps(cfg.MCS, cfg.ChannelWidthMHz)
	if err != nil {
		return PhyTiming{}, err
	}
	ctrl, err := ControlRateMbps(cfg.MCS)
	if err != nil {
		return PhyTiming{}, err
	}
	return PhyTiming{DataRateMbps: data, ControlRateMbps: ctrl}, nil
}

// DataDuration is the airtime of an HE SU PPDU carrying psduBytes.
func (p PhyTiming) DataDuration(psduBytes int) time.Duration {
	return hePreamble + symbols(psduBytes, p.DataRateMbps, heSymbol)*heSymbol
}

// ControlDuration is the airtime of a non-HT OFDM control frame.
func (p PhyTiming) ControlDuration(bytes int) time.Duration {
	return ofdmPreamble + symbols(bytes, p.ControlRateMbps, ofdmSymbol)*ofdmSymbol
}

// symbols returns the number of OFDM symbols needed for the PSDU plus the
// service and tail bits.
func symbols(bytes int, rateMbps float64, symbol time.Duration) time.Duration {
	bits := float64(serviceBits + 8*bytes + tailBits)
	bitsPerSymbol := rateMbps * symbol.Seconds() * 1e6
	// Round before the ceiling so that float noise on exact multiples does
	// not add a symbol.
	n := math.Ceil(math.Round(bits/bitsPerSymbol*1e6) / 1e6)
	return time.Duration(n)
}

// MpduBytes is the size of one data MPDU for a UDP payload.
func MpduBytes(payload int) int {
	return payload + MacOverheadBytes
}

// AmpduLimit returns how many MPDUs fit in one PPDU given nMpdus, never
// less than one.
func AmpduLimit(nMpdus, payload int) int {
	maxAmpdu := nMpdus * (payload + AmpduOverheadBytes)
	n := maxAmpdu / (MpduBytes(payload) + ampduDelimiterBytes)
	if n < 1 {
		n = 1
	}
	return n
}

// PsduBytes is the on-air size of a data PPDU aggregating n MPDUs.
func PsduBytes(n, payload int) int {
	if n <= 1 {
		return MpduBytes(payload)
	}
	return n * (MpduBytes(payload) + ampduDelimiterBytes)
}

func (p PhyTiming) String() string {
	return fmt.Sprintf("data %.1f Mbit/s, control %.0f Mbit/s", p.DataRateMbps, p.ControlRateMbps)
}
