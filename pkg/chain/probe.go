package chain

import (
	"github.com/tapwalk/jtaghost/pkg/tap"
	"github.com/tapwalk/jtaghost/pkg/transport"
)

// reverseBools reverses a bit slice, converting between the chronological
// order this package reasons in (index 0 is the first clock) and
// transport.Driver's orientation (index 0 is the last clock), the same
// convention pkg/transport's XVC codec reverses against.
func reverseBools(bits []bool) []bool {
	out := make([]bool, len(bits))
	for i, b := range bits {
		out[len(bits)-1-i] = b
	}
	return out
}

// driveSequence clocks a TAP transition sequence (TMS only, TDI held low)
// through the driver. seq is assumed already applied to sm (tap.StateMachine
// methods Reset/GoTo mutate their receiver as a side effect).
func driveSequence(d transport.Driver, seq tap.Sequence) error {
	if len(seq.TMS) == 0 {
		return nil
	}
	tdi := make([]bool, len(seq.TMS))
	_, err := d.Exchange(reverseBools(seq.TMS), reverseBools(tdi), transport.TDORequest{Length: len(seq.TMS)})
	return err
}

// resetAndEnter drives the controller through Test-Logic-Reset and on to
// target, returning a fresh state machine parked at target.
func resetAndEnter(d transport.Driver, target tap.State) (*tap.StateMachine, error) {
	sm := tap.NewStateMachine()
	if err := driveSequence(d, sm.Reset()); err != nil {
		return nil, err
	}
	seq, err := sm.GoTo(target)
	if err != nil {
		return nil, err
	}
	if err := driveSequence(d, seq); err != nil {
		return nil, err
	}
	return sm, nil
}

// shiftMarker clocks a single 1 bit followed by n-1 zeros through the
// shifting state sm is currently parked in, staying in that state
// (exit=false), and returns the captured TDO bits in chronological order
// (index 0 is the first bit physically captured). The lone marker bit
// flushes out exactly chain-length clocks after it is fed in, so its
// position in the result marks the boundary between real captured chain
// data and the all-zero echo of the feed that follows it — the technique
// original_source/playtag/jtag/discover.py's read_ids/read_ir use (a
// literal `tdi=1` shift) to bound an unknown-length scan without needing to
// interpret the real data's content at all.
func shiftMarker(d transport.Driver, sm *tap.StateMachine, n int) ([]bool, error) {
	tmsChrono, err := tap.CycleString(sm.State(), n, false)
	if err != nil {
		return nil, err
	}
	tdiChrono := make([]bool, n)
	if n > 0 {
		tdiChrono[0] = true
	}
	tdoRev, err := d.Exchange(reverseBools(tmsChrono), reverseBools(tdiChrono), transport.TDORequest{Length: n})
	if err != nil {
		return nil, err
	}
	for _, b := range tmsChrono {
		sm.Clock(b)
	}
	return reverseBools(tdoRev), nil
}

// findMarker returns the position of the last set bit in raw: the flushed
// marker, if the window was wide enough to see it come all the way out.
func findMarker(raw []bool) (int, bool) {
	for i := len(raw) - 1; i >= 0; i-- {
		if raw[i] {
			return i, true
		}
	}
	return 0, false
}

// allOnes reports whether every bit in bits is set.
func allOnes(bits []bool) bool {
	for _, b := range bits {
		if !b {
			return false
		}
	}
	return true
}

// allZero reports whether every bit in bits is clear.
func allZero(bits []bool) bool {
	for _, b := range bits {
		if b {
			return false
		}
	}
	return true
}

func checkStuck(bits []bool, operation string) error {
	if len(bits) == 0 {
		return nil
	}
	if allZero(bits) {
		return &ChainStuck{Operation: operation, StuckHigh: false}
	}
	if allOnes(bits) {
		return &ChainStuck{Operation: operation, StuckHigh: true}
	}
	return nil
}
