package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tapwalk/jtaghost/pkg/tap"
	"github.com/tapwalk/jtaghost/pkg/template"
	"github.com/tapwalk/jtaghost/pkg/transport"
)

var (
	shiftBits   int
	shiftTDI    string
	shiftTarget string
)

var shiftCmd = &cobra.Command{
	Use:   "shift",
	Short: "Shift a fixed-width pattern into the instruction or data register",
	Long: `Reset the TAP, enter run_test_idle, then shift --bits bits of --tdi
(a literal in 0x/0b/decimal form, or "ones" for all-ones) into the
instruction register (--into ir) or data register (--into dr, the
default), and print the bits captured on the way out.`,
	Args: cobra.ArbitraryArgs,
	RunE: runShift,
}

func init() {
	shiftCmd.Flags().IntVar(&shiftBits, "bits", 32, "number of bits to shift")
	shiftCmd.Flags().StringVar(&shiftTDI, "tdi", "0", "value to shift in (0x.., 0b.., decimal, or \"ones\")")
	shiftCmd.Flags().StringVar(&shiftTarget, "into", "dr", "register to shift into: dr or ir")
	rootCmd.AddCommand(shiftCmd)
}

func runShift(cmd *cobra.Command, args []string) error {
	driver, err := openDriver(cfg)
	if err != nil {
		return err
	}
	defer driver.Close()

	tdi, err := parseShiftTDI(shiftTDI, shiftBits)
	if err != nil {
		return err
	}

	b := template.NewBuilder(tap.StateTestLogicReset)
	for i := 0; i < 5; i++ { // five TMS=1 clocks reach Test-Logic-Reset from any state
		if err := b.ExitState(true); err != nil {
			return err
		}
	}
	if err := b.EnterState(tap.StateRunTestIdle); err != nil {
		return err
	}
	switch shiftTarget {
	case "dr":
		err = b.ReadDR(tdi, true)
	case "ir":
		err = b.ReadIR(tdi, true)
	default:
		return fmt.Errorf("--into must be dr or ir, got %q", shiftTarget)
	}
	if err != nil {
		return err
	}

	ct, err := template.Compile(b)
	if err != nil {
		return err
	}
	got, err := transport.ExecuteTemplate(driver, ct, nil)
	if err != nil {
		return fmt.Errorf("shift: %w", err)
	}
	fmt.Printf("0x%X\n", got[0])
	return nil
}

func parseShiftTDI(spec string, bits int) (template.TDI, error) {
	if spec == "ones" {
		return template.TDIAllOnes(bits), nil
	}
	v, err := strconv.ParseInt(spec, 0, 64)
	if err != nil {
		return template.TDI{}, fmt.Errorf("invalid --tdi %q: %w", spec, err)
	}
	return template.TDIInt(bits, v), nil
}
