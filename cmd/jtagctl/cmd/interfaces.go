package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tapwalk/jtaghost/pkg/transport"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List available JTAG interfaces",
	Long: `Scan the host for FTDI MPSSE-capable USB adapters and print a
summary of the detected transports, plus the always-available loopback.`,
	Args: cobra.ArbitraryArgs,
	RunE: runInterfaces,
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
}

func runInterfaces(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	infos, err := transport.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discover interfaces: %w", err)
	}

	fmt.Println("Detected JTAG interfaces:")
	for _, info := range infos {
		fmt.Printf("  - %s [%s] (VID:PID %04X:%04X)\n", info.Label(), info.Kind, info.VendorID, info.ProductID)
	}
	return nil
}
