package main

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/wlan-hidden-sim/core"
	"github.com/signalsfoundry/wlan-hidden-sim/internal/logging"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one hidden-station simulation and print the drop report",
		Example: `  wlansim run --enableRts=false --simulationTime 2
  wlansim run --stations 8 --maxRange 7.5 --minExpectedThroughput 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			return runOnce(cmd, v)
		},
	}
	addConfigFlags(cmd)
	addOutputFlags(cmd)
	cmd.Flags().String(keySink, core.SinkUDPServer.String(), "AP application: udp-server or discard")
	return cmd
}

func runOnce(cmd *cobra.Command, v *viper.Viper) error {
	ctx := cmd.Context()

	cfg, err := configFromViper(v)
	if err != nil {
		return err
	}
	sink, err := sinkFromViper(v)
	if err != nil {
		return err
	}
	format, err := parseFormat(v.GetString(keyOutput))
	if err != nil {
		return err
	}

	sess, err := openSession(ctx, cmd, v)
	if err != nil {
		return err
	}
	defer sess.close(ctx)

	ctx, runID := logging.EnsureRunID(ctx)
	log := sess.log.With(logging.String("run_id", runID))

	opts := []core.Option{
		core.WithLogger(log),
		core.WithSinkKind(sink),
		core.WithQueueRecorder(sess.collector),
		core.WithBackoffObserver(sess.collector),
	}
	var bar *progressbar.ProgressBar
	if v.GetBool(keyProgress) {
		bar = newProgressBar(cmd, 100, "simulating")
		opts = append(opts, core.WithProgress(cfg.StopTime()/100, func(now, stop time.Duration) {
			_ = bar.Set64(int64(now * 100 / stop))
		}))
	}

	sim, err := core.NewSimulation(cfg, opts...)
	if err != nil {
		return err
	}
	res, err := sim.Run(ctx)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}
	sess.collector.ObserveResult(res)

	if err := writeReport(cmd.OutOrStdout(), format, res); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	sess.hold(ctx)
	return res.CheckThroughput()
}

func newProgressBar(cmd *cobra.Command, total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
