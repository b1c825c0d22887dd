package transport

import (
	"fmt"

	"github.com/tapwalk/jtaghost/pkg/tap"
)

// SimDevice describes one device in a simulated scan chain, ordered nearest
// TDI first (signal enters device 0, exits the last device toward TDO).
type SimDevice struct {
	IDCode    uint32
	IRLength  int
	IRCapture uint64 // value captured into the IR shift register, LSB always 1 per IEEE 1149.1
}

// SimChain is a Driver that emulates a fixed IEEE 1149.1 scan chain closely
// enough to exercise discovery: it tracks its own TAP state from the TMS
// stream it is clocked with, captures each device's IDCODE or IR pattern on
// entry to the matching shift state, and shifts bits through the
// concatenated register precisely like real silicon would. It does not
// model arbitrary data registers selected by instruction, only the IDCODE
// default and the instruction register itself — enough for chain discovery,
// not for general-purpose register access.
type SimChain struct {
	devices []SimDevice
	state   *tap.StateMachine
	shift   []bool // the register currently being shifted, front = next bit out toward TDO

	stuckBit *bool // non-nil simulates every TDO bit stuck at this value
	speedHz  int
	closed   bool
}

// NewSimChain builds a simulated chain from devices, ordered nearest TDI
// first, with its TAP controller in Test-Logic-Reset as after power-up.
func NewSimChain(devices []SimDevice) *SimChain {
	sm := tap.NewStateMachine()
	sm.Reset()
	return &SimChain{devices: devices, state: sm, speedHz: 1000000}
}

// NewStuckSimChain simulates a chain where TDO never changes, as if TDI or
// TDO were shorted or a device were holding the bus — the degenerate case
// discovery must detect and reject.
func NewStuckSimChain(stuckAt bool) *SimChain {
	return &SimChain{state: tap.NewStateMachine(), stuckBit: &stuckAt, speedHz: 1000000}
}

// Device 0 is nearest TDI, so its register sits deepest in the chain: the
// bit that reaches TDO first belongs to the device nearest TDO (the last
// one in the slice), so the concatenated register is built back to front.
func (s *SimChain) idcodeRegister() []bool {
	var bits []bool
	for i := len(s.devices) - 1; i >= 0; i-- {
		v := uint64(s.devices[i].IDCode)
		for b := 0; b < 32; b++ {
			bits = append(bits, v&1 == 1)
			v >>= 1
		}
	}
	return bits
}

func (s *SimChain) irRegister() []bool {
	var bits []bool
	for i := len(s.devices) - 1; i >= 0; i-- {
		d := s.devices[i]
		v := d.IRCapture
		for b := 0; b < d.IRLength; b++ {
			bits = append(bits, v&1 == 1)
			v >>= 1
		}
	}
	return bits
}

// Exchange clocks the chain bit by bit in the driver's reversed orientation
// (index len-1 is the first clock), tracking its own TAP state machine to
// decide when to capture a fresh register and when to shift.
func (s *SimChain) Exchange(tms, tdi []bool, tdo TDORequest) ([]bool, error) {
	if s.closed {
		return nil, &IOError{Op: "exchange", Err: ErrClosed}
	}
	if len(tms) != len(tdi) {
		return nil, &IOError{Op: "exchange", Err: errLengthMismatch}
	}
	n := len(tms)
	if tdo.Length != n {
		return nil, &IOError{Op: "exchange", Err: fmt.Errorf("tdo length %d does not match clock count %d", tdo.Length, n)}
	}

	out := make([]bool, n)
	for i := n - 1; i >= 0; i-- {
		prev := s.state.State()
		s.state.Clock(tms[i])

		if s.stuckBit != nil {
			out[i] = *s.stuckBit
			continue
		}

		// A clock taken while in a shift state (including the one that
		// exits it) moves one bit out to TDO and one TDI bit in; the clock
		// leaving a capture state loads the register.
		switch prev {
		case tap.StateShiftDR, tap.StateShiftIR:
			if len(s.shift) > 0 {
				out[i] = s.shift[0]
				s.shift = append(s.shift[1:], tdi[i])
			}
		case tap.StateCaptureDR:
			s.shift = s.idcodeRegister()
		case tap.StateCaptureIR:
			s.shift = s.irRegister()
		}
	}
	return out, nil
}

func (s *SimChain) SetSpeed(hz int) error {
	if hz <= 0 {
		return &IOError{Op: "setspeed", Err: errInvalidSpeed}
	}
	s.speedHz = hz
	return nil
}

func (s *SimChain) GetSpeed() (int, error) { return s.speedHz, nil }

func (s *SimChain) Close() error {
	s.closed = true
	return nil
}
