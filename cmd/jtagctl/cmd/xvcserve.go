package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tapwalk/jtaghost/pkg/transport"
)

var xvcServeCmd = &cobra.Command{
	Use:   "xvc-serve",
	Short: "Serve a scan chain over the Xilinx Virtual Cable protocol",
	Long: `Open the configured cable and listen on SOCKET_ADDRESS, relaying
every XVC shift command from one client at a time to the underlying
transport.`,
	Args: cobra.ArbitraryArgs,
	RunE: runXVCServe,
}

func init() {
	rootCmd.AddCommand(xvcServeCmd)
}

func runXVCServe(cmd *cobra.Command, args []string) error {
	driver, err := openDriver(cfg)
	if err != nil {
		return err
	}
	defer driver.Close()

	addr := fmt.Sprintf(":%d", cfg.SocketAddress)
	fmt.Printf("Serving XVC on %s\n", addr)
	server := transport.NewXVCServer(driver)
	return server.Serve("tcp", addr)
}
