package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/wlan-hidden-sim/internal/experiment"
)

const (
	keyRanges   = "ranges"
	keyParallel = "parallel"
)

func newSweepCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run RTS on/off for each radio range in parallel and compare",
		Long: `sweep runs the configured scenario once with and once without RTS/CTS
for every range in --ranges. With the default 5 m ring, 5 m hides every
station from every other, 7.5 m lets neighbours hear each other and 11 m
removes hidden stations entirely.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			return runSweep(cmd, v)
		},
	}
	addConfigFlags(cmd)
	addOutputFlags(cmd)
	cmd.Flags().Float64Slice(keyRanges, []float64{5, 7.5, 11}, "radio ranges in metres")
	cmd.Flags().Int(keyParallel, 0, "concurrent simulations, 0 means GOMAXPROCS")
	return cmd
}

func runSweep(cmd *cobra.Command, v *viper.Viper) error {
	ctx := cmd.Context()

	base, err := configFromViper(v)
	if err != nil {
		return err
	}
	ranges, err := cmd.Flags().GetFloat64Slice(keyRanges)
	if err != nil {
		return err
	}
	if len(ranges) == 0 {
		return errors.New("sweep needs at least one range")
	}
	variants := experiment.RangeRtsGrid(base, ranges, []bool{false, true})

	sess, err := openSession(ctx, cmd, v)
	if err != nil {
		return err
	}
	defer sess.close(ctx)

	runner := &experiment.Runner{
		Parallelism: v.GetInt(keyParallel),
		Log:         sess.log,
		Collector:   sess.collector,
	}
	if v.GetBool(keyProgress) {
		bar := newProgressBar(cmd, int64(len(variants)), "sweeping")
		runner.OnDone = func(done, total int, o experiment.Outcome) { _ = bar.Add(1) }
		defer func() { _ = bar.Finish() }()
	}

	outcomes, err := runner.Run(ctx, variants)
	if err != nil {
		return err
	}
	if err := writeSweepTable(cmd.OutOrStdout(), outcomes); err != nil {
		return fmt.Errorf("write sweep table: %w", err)
	}
	sess.hold(ctx)

	var violations []error
	for _, o := range outcomes {
		if err := o.Result.CheckThroughput(); err != nil {
			violations = append(violations, fmt.Errorf("%s: %w", o.Variant.Name, err))
		}
	}
	return errors.Join(violations...)
}
