// Package transport implements the physical driver interface (component E)
// and its MPSSE, XVC, and Loopback variants, plus the adapter glue
// (component D) that turns a compiled template into one bus round-trip.
package transport

import "errors"

// TDORequest describes how many bits of TDO the caller wants back from an
// Exchange call.
type TDORequest struct {
	Length int
}

// Driver is the capability set every physical or virtual JTAG transport
// exposes: exchange bits, optionally report/set clock speed, and close
// deterministically.
//
// TMS and TDI use the same orientation as a compiled template's TMSStr and
// TDIXStr: index 0 holds the LAST clock to be driven, index len-1 the
// first. This matches both the Xilinx XVC wire format and the natural shape
// of an MPSSE opcode run, so the adapter glue in execute.go hands compiled
// strings to a Driver with no reversal. TDO follows the same orientation.
type Driver interface {
	// Exchange clocks len(tms) cycles, driving tdi and TMS simultaneously,
	// and returns exactly tdo.Length captured bits in the same orientation.
	Exchange(tms, tdi []bool, tdo TDORequest) ([]bool, error)
	// SetSpeed configures the approximate TCK frequency in Hz.
	SetSpeed(hz int) error
	// Close releases the underlying device handle. It is idempotent.
	Close() error
}

// SpeedReporter is implemented by drivers that can report their configured
// clock speed.
type SpeedReporter interface {
	GetSpeed() (int, error)
}

// ErrClosed is returned by operations attempted on a closed driver.
var ErrClosed = errors.New("transport: driver is closed")
