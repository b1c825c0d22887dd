package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tapwalk/jtaghost/pkg/config"
	"github.com/tapwalk/jtaghost/pkg/transport"
)

// openDriver opens the transport named by CABLE_DRIVER, the Go equivalent
// of userconfig.UserConfig.getcable dispatching to a cable subpackage.
func openDriver(c *config.Config) (transport.Driver, error) {
	switch strings.ToLower(c.CableDriver) {
	case "", "loopback":
		return transport.NewLoopback(), nil
	case "ftdi", "mpsse":
		defaults := config.FTDIDefaults()
		c.Merge(defaults)
		vid, pid, err := parseVIDPID(c.CableName)
		if err != nil {
			return nil, &config.ConfigError{Key: "CABLE_NAME", Value: c.CableName, Err: err}
		}
		return transport.OpenMPSSEUSB(vid, pid)
	case "xvc":
		defaults := config.XVCDefaults(splitCableName(c.CableName))
		c.Merge(defaults)
		addr := c.CableName
		if addr == "" {
			addr = fmt.Sprintf("%s:%d", c.XVCHostName, c.XVCPortNum)
		}
		return transport.DialXVC(addr)
	default:
		return nil, &config.ConfigError{Key: "CABLE_DRIVER", Value: c.CableDriver, Err: fmt.Errorf("unknown cable driver (want ftdi, xvc, or loopback)")}
	}
}

// parseVIDPID parses a CABLE_NAME of the form "VVVV:PPPP" (hex USB
// vendor:product), the FTDI cable's device-selection key.
func parseVIDPID(name string) (vid, pid uint16, err error) {
	parts := strings.SplitN(name, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected VID:PID, got %q", name)
	}
	v, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid vendor id %q: %w", parts[0], err)
	}
	p, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid product id %q: %w", parts[1], err)
	}
	return uint16(v), uint16(p), nil
}

func splitCableName(name string) []string {
	if name == "" {
		return nil
	}
	return strings.SplitN(name, ":", 2)
}
