package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tapwalk/jtaghost/pkg/config"
)

// cfg is populated from CLI KEY=value arguments and an optional
// --config file in PersistentPreRunE, then read by every subcommand,
// mirroring userconfig.UserConfig's single shared instance.
var cfg *config.Config

var configFile string

var rootCmd = &cobra.Command{
	Use:   "jtagctl",
	Short: "JTAG chain discovery and shifting tool",
	Long: `jtagctl talks to a scan chain over an FTDI MPSSE cable, a Xilinx
Virtual Cable link, or an in-process loopback, and can discover the chain's
devices, shift a raw pattern through it, or serve it to other tools as an
XVC server.

Configuration is a flat KEY=value bag, settable as trailing arguments (e.g.
CABLE_DRIVER=ftdi CABLE_NAME=0403:6014) or loaded from a file with
--config.`,
	Version:           "0.1.0",
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func loadConfig(cmd *cobra.Command, args []string) error {
	cfg = config.New()
	if configFile != "" {
		if err := cfg.LoadFilePath(configFile); err != nil {
			return err
		}
	}
	_, err := cfg.ApplyArgs(args)
	return err
}

// Execute runs the root command, printing a one-line diagnostic and
// exiting non-zero on failure (spec.md §6's exit-code convention).
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file (KEY = value lines)")
	rootCmd.PersistentFlags().SetInterspersed(true)
}
