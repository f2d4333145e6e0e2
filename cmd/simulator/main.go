// Command wlansim runs the hidden-station WLAN simulation and prints the
// per-station drop report and uplink throughput.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/wlan-hidden-sim/core"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		var bounds *core.ThroughputBoundsError
		if errors.As(err, &bounds) {
			fmt.Fprintln(os.Stderr, err)
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Each tree owns its viper instance so
// flags, config files and environment never leak between invocations.
func newRootCmd(out, errOut io.Writer) *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:   "wlansim",
		Short: "Hidden-station IEEE 802.11ax uplink simulator",
		Long: `wlansim simulates saturated UDP uplink traffic from stations arranged
on a ring around an access point, with a range-limited radio so that
stations may be hidden from each other. It reports per-station drop
rates and aggregate throughput, with and without RTS/CTS protection.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml) with flag names as keys")

	root.AddCommand(newRunCmd(v))
	root.AddCommand(newSweepCmd(v))
	return root
}

func initConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix("WLANSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile == "" {
		return nil
	}
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", cfgFile, err)
	}
	return nil
}
