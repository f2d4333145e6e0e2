package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/wlan-hidden-sim/core"
	"github.com/signalsfoundry/wlan-hidden-sim/internal/experiment"
	"github.com/signalsfoundry/wlan-hidden-sim/model"
)

type reportFormat string

const (
	formatText reportFormat = "text"
	formatYAML reportFormat = "yaml"
)

func parseFormat(s string) (reportFormat, error) {
	switch f := reportFormat(strings.ToLower(s)); f {
	case "", formatText:
		return formatText, nil
	case formatYAML:
		return formatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// styles renders against the destination writer, so a non-terminal gets
// plain text.
type styles struct {
	title lipgloss.Style
	muted lipgloss.Style
	good  lipgloss.Style
	bad   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().Bold(true),
		muted: r.NewStyle().Foreground(lipgloss.Color("#666666")),
		good:  r.NewStyle().Foreground(lipgloss.Color("#00CC66")).Bold(true),
		bad:   r.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),
	}
}

func writeReport(w io.Writer, format reportFormat, res *core.Result) error {
	if format == formatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(newReportDoc(res)); err != nil {
			return err
		}
		return enc.Close()
	}
	return writeTextReport(w, res)
}

func writeTextReport(w io.Writer, res *core.Result) error {
	st := newStyles(w)
	rts := "off"
	if res.EnableRts {
		rts = "on"
	}
	fmt.Fprintln(w, st.title.Render(res.Name))
	fmt.Fprintln(w, st.muted.Render(fmt.Sprintf("stations=%d rts=%s range=%gm hidden-pairs=%d window=%s",
		len(res.Flows), rts, res.MaxRange, res.HiddenPairs, res.SimulationTime)))

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	for _, f := range res.Flows {
		fmt.Fprintf(tw, "Station %d dropped packages:\t%.2f%%\t%d\n", f.StationID, core.DropPercent(f), f.Dropped())
	}
	fmt.Fprintf(tw, "Total dropped packages:\t%.2f%%\t%d\n", core.DropPercent(res.Total), res.Total.Dropped())
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, st.muted.Render(fmt.Sprintf("generated=%d received=%d in-flight=%d collision=%d retry=%d queue=%d ap-collisions=%d",
		res.Total.Generated, res.Total.Received, res.Total.InFlight,
		res.Total.DroppedByCollision, res.Total.DroppedRetryExhausted, res.Total.DroppedByQueue,
		res.APCollisions)))

	line := fmt.Sprintf("Throughput: %g Mbit/s", res.ThroughputMbps)
	if err := res.CheckThroughput(); err != nil {
		line = st.bad.Render(line)
	} else {
		line = st.good.Render(line)
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

type stationDoc struct {
	ID                    model.NodeID `yaml:"id"`
	Generated             uint64       `yaml:"generated"`
	Received              uint64       `yaml:"received"`
	DroppedByCollision    uint64       `yaml:"droppedByCollision"`
	DroppedRetryExhausted uint64       `yaml:"droppedRetryExhausted"`
	DroppedByQueue        uint64       `yaml:"droppedByQueue"`
	InFlight              uint64       `yaml:"inFlight"`
	DropPercent           float64      `yaml:"dropPercent"`
	MeanDelay             string       `yaml:"meanDelay"`
}

type reportDoc struct {
	Name           string       `yaml:"name"`
	EnableRts      bool         `yaml:"enableRts"`
	MaxRange       float64      `yaml:"maxRange"`
	SimulationTime string       `yaml:"simulationTime"`
	HiddenPairs    int          `yaml:"hiddenPairs"`
	Stations       []stationDoc `yaml:"stations"`
	Total          stationDoc   `yaml:"total"`
	APCollisions   uint64       `yaml:"apCollisions"`
	Sink           string       `yaml:"sink"`
	SinkReceived   uint64       `yaml:"sinkReceived"`
	SinkLost       uint64       `yaml:"sinkLost"`
	Transmissions  uint64       `yaml:"transmissions"`
	ThroughputMbps float64      `yaml:"throughputMbps"`
	WithinBounds   bool         `yaml:"withinBounds"`
}

func newStationDoc(r model.FlowRecord) stationDoc {
	return stationDoc{
		ID:                    r.StationID,
		Generated:             r.Generated,
		Received:              r.Received,
		DroppedByCollision:    r.DroppedByCollision,
		DroppedRetryExhausted: r.DroppedRetryExhausted,
		DroppedByQueue:        r.DroppedByQueue,
		InFlight:              r.InFlight,
		DropPercent:           core.DropPercent(r),
		MeanDelay:             r.MeanDelay().String(),
	}
}

func newReportDoc(res *core.Result) reportDoc {
	doc := reportDoc{
		Name:           res.Name,
		EnableRts:      res.EnableRts,
		MaxRange:       res.MaxRange,
		SimulationTime: res.SimulationTime.String(),
		HiddenPairs:    res.HiddenPairs,
		Total:          newStationDoc(res.Total),
		APCollisions:   res.APCollisions,
		Sink:           res.SinkKind.String(),
		SinkReceived:   res.SinkReceived,
		SinkLost:       res.SinkLost,
		Transmissions:  res.Transmissions,
		ThroughputMbps: res.ThroughputMbps,
		WithinBounds:   res.CheckThroughput() == nil,
	}
	for _, f := range res.Flows {
		doc.Stations = append(doc.Stations, newStationDoc(f))
	}
	return doc
}

func writeSweepTable(w io.Writer, outcomes []experiment.Outcome) error {
	st := newStyles(w)
	fmt.Fprintln(w, st.title.Render("Hidden-station sweep"))

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "VARIANT\tRANGE\tRTS\tHIDDEN\tDROPPED\tAP-COLLISIONS\tTHROUGHPUT")
	for _, o := range outcomes {
		res := o.Result
		fmt.Fprintf(tw, "%s\t%g\t%t\t%d\t%.2f%%\t%d\t%.3f Mbit/s\n",
			o.Variant.Name, res.MaxRange, res.EnableRts, res.HiddenPairs,
			core.DropPercent(res.Total), res.APCollisions, res.ThroughputMbps)
	}
	return tw.Flush()
}
