// Command jtagctl drives a scan chain over an MPSSE, XVC, or loopback
// transport: discover the chain, shift a raw pattern through it, or serve
// it to other tools over the Xilinx Virtual Cable protocol.
package main

import "github.com/tapwalk/jtaghost/cmd/jtagctl/cmd"

func main() {
	cmd.Execute()
}
