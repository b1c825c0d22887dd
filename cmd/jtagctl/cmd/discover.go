package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tapwalk/jtaghost/pkg/chain"
	"github.com/tapwalk/jtaghost/pkg/parts"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover the devices on a scan chain",
	Long: `Reset the TAP, read back IDCODEs and instruction register lengths,
and print one line per discovered device, nearest TDO first.`,
	Args: cobra.ArbitraryArgs,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	driver, err := openDriver(cfg)
	if err != nil {
		return err
	}
	defer driver.Close()

	db, err := loadPartsDatabase(cfg.JTAGIDFile)
	if err != nil {
		return err
	}

	result, err := chain.Discover(driver, db)
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}

	if cfg.ShowChain {
		printChain(result)
	}
	return nil
}

func printChain(c *chain.Chain) {
	fmt.Printf("%d device(s) on chain:\n", len(c.Devices))
	for i, dev := range c.Devices {
		name := "unknown part"
		if dev.KnownPart {
			name = dev.Part.Name
			if dev.Part.Manufacturer != "" {
				name = fmt.Sprintf("%s (%s)", name, dev.Part.Manufacturer)
			}
		}
		fmt.Printf("  [%d] IDCODE=0x%08X IR=%d bits capture=0x%X  %s\n",
			i, dev.IDCode, dev.IRLength, dev.IRCapture, name)
	}
}

// loadPartsDatabase loads partindex.txt (and, if present alongside it,
// manufacturers.txt) from path. manufacturers.txt is loaded first so its
// names are the ones recorded on each part. An empty path disables
// parts-database constraining and lookup entirely.
func loadPartsDatabase(path string) (*parts.Database, error) {
	if path == "" {
		return nil, nil
	}
	db := parts.NewDatabase()
	mfgPath := filepath.Join(filepath.Dir(path), "manufacturers.txt")
	if mf, err := os.Open(mfgPath); err == nil {
		defer mf.Close()
		if err := db.LoadManufacturers(mf); err != nil {
			return nil, err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parts database: %w", err)
	}
	defer f.Close()
	if err := db.LoadPartIndex(f); err != nil {
		return nil, err
	}
	return db, nil
}
