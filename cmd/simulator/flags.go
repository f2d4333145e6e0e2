package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/wlan-hidden-sim/core"
	"github.com/signalsfoundry/wlan-hidden-sim/timectrl"
)

// Flag names double as viper keys, config file keys and, upper-cased
// behind WLANSIM_, environment variables.
const (
	keyPayloadSize    = "payloadSize"
	keySimulationTime = "simulationTime"
	keyNMpdus         = "nMpdus"
	keyMCS            = "mcs"
	keyChannelWidth   = "channelWidth"
	keyEnableRts      = "enableRts"
	keyMinThroughput  = "minExpectedThroughput"
	keyMaxThroughput  = "maxExpectedThroughput"
	keySeed           = "seed"
	keyRun            = "run"
	keyStations       = "stations"
	keyMaxRange       = "maxRange"
	keyStationDist    = "stationDistance"
	keyTopology       = "topology"
	keySink           = "sink"
	keyName           = "name"

	keyMetricsAddr = "metrics-addr"
	keyProgress    = "progress"
	keyOutput      = "output"
)

func addConfigFlags(cmd *cobra.Command) {
	def := core.DefaultConfig()
	f := cmd.Flags()
	f.String(keyName, def.Name, "scenario name used in logs and metrics")
	f.Int(keyPayloadSize, def.Traffic.PayloadSize, "UDP payload size in bytes")
	f.Float64(keySimulationTime, def.SimulationTime.Seconds(), "measurement window in seconds")
	f.Int(keyNMpdus, def.Mac.NMpdus, "maximum number of MPDUs per A-MPDU")
	f.Int(keyMCS, def.Phy.MCS, "HE MCS index (0-11)")
	f.Int(keyChannelWidth, def.Phy.ChannelWidthMHz, "channel width in MHz (20, 40, 80, 160)")
	f.Bool(keyEnableRts, def.Mac.EnableRts, "protect data frames with RTS/CTS")
	f.Float64(keyMinThroughput, def.MinExpectedThroughput, "fail when throughput is below this value (Mbit/s)")
	f.Float64(keyMaxThroughput, def.MaxExpectedThroughput, "fail when throughput is above this value (Mbit/s), 0 disables")
	f.Uint64(keySeed, def.Seed, "random seed")
	f.Uint64(keyRun, def.Run, "run number, selects an independent random stream for the same seed")
	f.Int(keyStations, def.NumStations, "number of stations on the ring")
	f.Float64(keyMaxRange, def.Propagation.MaxRange, "radio range in metres")
	f.Float64(keyStationDist, def.StationDistance, "AP to station distance in metres, 0 means maxRange")
	f.String(keyTopology, "", "YAML/JSON topology file replacing the generated ring")
}

func addOutputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String(keyMetricsAddr, "", "serve Prometheus metrics on this address and keep serving until interrupted")
	f.Bool(keyProgress, false, "show a progress bar on stderr")
	f.String(keyOutput, "text", "report format: text or yaml")
}

// configFromViper overlays flag, config file and environment values on
// the defaults. The topology file, when given, wins over stations and
// maxRange.
func configFromViper(v *viper.Viper) (core.Config, error) {
	cfg := core.DefaultConfig()
	cfg.Name = v.GetString(keyName)
	cfg.Traffic.PayloadSize = v.GetInt(keyPayloadSize)
	cfg.Mac.NMpdus = v.GetInt(keyNMpdus)
	cfg.Mac.EnableRts = v.GetBool(keyEnableRts)
	cfg.Phy.MCS = v.GetInt(keyMCS)
	cfg.Phy.ChannelWidthMHz = v.GetInt(keyChannelWidth)
	cfg.MinExpectedThroughput = v.GetFloat64(keyMinThroughput)
	cfg.MaxExpectedThroughput = v.GetFloat64(keyMaxThroughput)
	cfg.Seed = v.GetUint64(keySeed)
	cfg.Run = v.GetUint64(keyRun)
	cfg.NumStations = v.GetInt(keyStations)
	cfg.Propagation.MaxRange = v.GetFloat64(keyMaxRange)
	cfg.StationDistance = v.GetFloat64(keyStationDist)

	simTime, err := parseSeconds(v.Get(keySimulationTime))
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", keySimulationTime, err)
	}
	cfg.SimulationTime = simTime

	if path := v.GetString(keyTopology); path != "" {
		topo, err := core.LoadTopologyFile(path)
		if err != nil {
			return cfg, err
		}
		topo.Apply(&cfg)
	}
	return cfg, nil
}

func sinkFromViper(v *viper.Viper) (core.SinkKind, error) {
	switch s := strings.ToLower(v.GetString(keySink)); s {
	case "", core.SinkUDPServer.String():
		return core.SinkUDPServer, nil
	case core.SinkDiscard.String():
		return core.SinkDiscard, nil
	default:
		return 0, fmt.Errorf("unknown sink %q", s)
	}
}

// parseSeconds accepts a number of seconds or a Go duration string such
// as "500ms".
func parseSeconds(raw any) (time.Duration, error) {
	switch val := raw.(type) {
	case nil:
		return 0, nil
	case float64:
		return timectrl.Seconds(val), nil
	case float32:
		return timectrl.Seconds(float64(val)), nil
	case int:
		return time.Duration(val) * time.Second, nil
	case int64:
		return time.Duration(val) * time.Second, nil
	case uint64:
		return time.Duration(val) * time.Second, nil
	case time.Duration:
		return val, nil
	case string:
		s := strings.TrimSpace(val)
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			return timectrl.Seconds(secs), nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", val)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("invalid duration %v", raw)
	}
}
