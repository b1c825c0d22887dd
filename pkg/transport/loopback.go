package transport

// ShiftHook lets a Loopback driver emulate device-specific TDO behavior
// instead of its default TDI echo, analogous to the teacher simulator's
// OnShift hook.
type ShiftHook func(tms, tdi []bool, tdo TDORequest) ([]bool, error)

// LastExchange records the most recent Exchange call for inspection in
// tests.
type LastExchange struct {
	TMS, TDI []bool
	TDO      TDORequest
}

// Loopback is an in-memory Driver useful for testing the template and chain
// packages without hardware. With no Hook set it mirrors TDI straight onto
// TDO, which is enough to exercise round-trip behavior through a compiled
// template.
type Loopback struct {
	Hook ShiftHook

	speedHz int
	closed  bool
	last    LastExchange
}

// NewLoopback returns a ready-to-use Loopback driver.
func NewLoopback() *Loopback {
	return &Loopback{speedHz: 1000000}
}

// LastExchange returns a copy of the most recent Exchange call.
func (l *Loopback) LastExchange() LastExchange {
	return LastExchange{
		TMS: append([]bool(nil), l.last.TMS...),
		TDI: append([]bool(nil), l.last.TDI...),
		TDO: l.last.TDO,
	}
}

func (l *Loopback) Exchange(tms, tdi []bool, tdo TDORequest) ([]bool, error) {
	if l.closed {
		return nil, &IOError{Op: "exchange", Err: ErrClosed}
	}
	if len(tms) != len(tdi) {
		return nil, &IOError{Op: "exchange", Err: errLengthMismatch}
	}
	l.last = LastExchange{TMS: append([]bool(nil), tms...), TDI: append([]bool(nil), tdi...), TDO: tdo}

	if l.Hook != nil {
		return l.Hook(tms, tdi, tdo)
	}

	out := make([]bool, tdo.Length)
	copy(out, tdi)
	return out, nil
}

func (l *Loopback) SetSpeed(hz int) error {
	if hz <= 0 {
		return &IOError{Op: "setspeed", Err: errInvalidSpeed}
	}
	l.speedHz = hz
	return nil
}

func (l *Loopback) GetSpeed() (int, error) { return l.speedHz, nil }

func (l *Loopback) Close() error {
	l.closed = true
	return nil
}
