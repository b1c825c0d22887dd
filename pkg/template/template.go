// Package template implements the declarative JTAG shift-plan builder:
// accumulating TAP transitions and TDI/TDO shifts into a Template, which is
// concatenable, repeatable, and loop-scoped, then lowered by the compiler
// in this package into the three aligned bit-strings a transport consumes.
package template

import (
	"strings"

	"github.com/tapwalk/jtaghost/pkg/tap"
)

// tdoSpan identifies a captured output region. offsetFromPrev is measured
// in bits from the end of the previous captured span (or from the start of
// the template, for the first span), matching the compiler's cumulative
// offset bookkeeping.
type tdoSpan struct {
	offsetFromPrev int
	length         int
}

// Template is an ordered record of TMS/TDI/TDO operations plus the TAP
// states visited. It is mutated only during the build phase (the WriteIR
// etc. methods below); Compile freezes it into a CompiledTemplate without
// changing its recorded operations, storing only the cached result on it.
type Template struct {
	tms      []bool
	tdi      []tdiEntry
	tdo      []tdoSpan
	states   []tap.State
	prevRead int

	compiled  *CompiledTemplate
	loopStack []*Template
}

// NewBuilder starts a new Template assuming the TAP controller is already
// in (or will be driven to) start before any operation is issued.
func NewBuilder(start tap.State) *Template {
	return &Template{states: []tap.State{start}}
}

// CurrentState returns the state the template assumes the TAP controller is
// in after every operation recorded so far.
func (t *Template) CurrentState() tap.State {
	return t.states[len(t.states)-1]
}

// Len reports the number of TCK clocks this template drives.
func (t *Template) Len() int { return len(t.tms) }

func (t *Template) invalidate() { t.compiled = nil }

// EnterState extends the template with the canonical shortest transition
// from the current state to target, holding TDI at 0 for those clocks. It is
// a no-op in effect (but still idempotent to call) when the template is
// already at target.
func (t *Template) EnterState(target tap.State) error {
	cur := t.CurrentState()
	seq, err := tap.PathBetween(cur, target)
	if err != nil {
		return &BuildError{Msg: err.Error()}
	}
	t.tms = append(t.tms, seq.TMS...)
	t.states = append(t.states, seq.States[1:]...)
	if n := len(seq.TMS); n > 0 {
		t.tdi = append(t.tdi, tdiEntry{bits: n, kind: tdiLiteral, literal: strings.Repeat("0", n)})
	}
	t.invalidate()
	return nil
}

// ExitState clocks a single TMS bit from the current state, advancing
// (advance=true) or holding (advance=false) per the TAP graph, with TDI at 0.
func (t *Template) ExitState(advance bool) error {
	cur := t.CurrentState()
	next := tap.NextState(cur, advance)
	t.tms = append(t.tms, advance)
	t.states = append(t.states, next)
	t.tdi = append(t.tdi, tdiEntry{bits: 1, kind: tdiLiteral, literal: "0"})
	t.invalidate()
	return nil
}

// write is the shared implementation behind WriteIR/WriteDR/ReadIR/ReadDR:
// it enters shiftState if not already there, emits tdi.Bits() shift clocks
// with the given data, optionally exits on the final clock, and optionally
// records a tdo capture span.
func (t *Template) write(shiftState tap.State, tdi TDI, advance, read bool) error {
	if tdi.bits <= 0 {
		return &BuildError{Msg: "tdi width must be positive"}
	}
	if t.CurrentState() != shiftState {
		if err := t.EnterState(shiftState); err != nil {
			return err
		}
	}

	start := len(t.tms)
	cycle, err := tap.CycleString(shiftState, tdi.bits, advance)
	if err != nil {
		return &BuildError{Msg: err.Error()}
	}
	entry, err := tdi.render()
	if err != nil {
		return &BuildError{Msg: err.Error()}
	}

	t.tms = append(t.tms, cycle...)
	for i := 0; i < tdi.bits-1; i++ {
		t.states = append(t.states, shiftState)
	}
	if advance {
		t.states = append(t.states, tap.NextState(shiftState, true))
	} else {
		t.states = append(t.states, shiftState)
	}
	t.tdi = append(t.tdi, entry)

	if read {
		t.tdo = append(t.tdo, tdoSpan{offsetFromPrev: start - t.prevRead, length: tdi.bits})
		t.prevRead = start + tdi.bits
	}

	t.invalidate()
	return nil
}

// WriteIR shifts tdi into the instruction register, exiting shift_ir on the
// final clock when advance is true.
func (t *Template) WriteIR(tdi TDI, advance bool) error {
	return t.write(tap.StateShiftIR, tdi, advance, false)
}

// WriteDR shifts tdi into the data register, exiting shift_dr on the final
// clock when advance is true.
func (t *Template) WriteDR(tdi TDI, advance bool) error {
	return t.write(tap.StateShiftDR, tdi, advance, false)
}

// ReadIR behaves like WriteIR but additionally records a tdo capture span
// covering the shifted bits.
func (t *Template) ReadIR(tdi TDI, advance bool) error {
	return t.write(tap.StateShiftIR, tdi, advance, true)
}

// ReadDR behaves like WriteDR but additionally records a tdo capture span
// covering the shifted bits.
func (t *Template) ReadDR(tdi TDI, advance bool) error {
	return t.write(tap.StateShiftDR, tdi, advance, true)
}

// Update is the low-level primitive underlying the Write/Read helpers: it
// extends TMS with the canonical transition to state and, if tdi is
// non-nil, shifts that data while remaining in state (which must then be a
// shifting state).
func (t *Template) Update(state tap.State, tdi *TDI, advance, read bool) error {
	if tdi == nil {
		return t.EnterState(state)
	}
	if !tap.IsShifting(state) {
		return &BuildError{Msg: "cannot shift tdi while entering a non-shift state"}
	}
	return t.write(state, *tdi, advance, read)
}

// Loop begins a sub-template scope. Operations recorded between Loop and
// the matching EndLoop are captured separately so EndLoop can repeat just
// that portion.
func (t *Template) Loop() {
	outer := cloneTemplate(t)
	t.loopStack = append(t.loopStack, outer)

	t.tms = nil
	t.tdi = nil
	t.tdo = nil
	t.prevRead = 0
	t.states = []tap.State{outer.CurrentState()}
	t.compiled = nil
}

// EndLoop closes the most recent Loop scope, repeats its body count times
// (requiring it to be a closed cycle, see Repeat), and splices the result
// back onto the enclosing template.
func (t *Template) EndLoop(count int) error {
	if len(t.loopStack) == 0 {
		return &BuildError{Msg: "end_loop without matching loop"}
	}
	body := cloneTemplate(t)
	outer := t.loopStack[len(t.loopStack)-1]
	remaining := t.loopStack[:len(t.loopStack)-1]

	repeated, err := Repeat(body, count)
	if err != nil {
		return err
	}
	combined, err := Concat(outer, repeated)
	if err != nil {
		return err
	}
	combined.loopStack = remaining
	*t = *combined
	return nil
}

func cloneTemplate(t *Template) *Template {
	return &Template{
		tms:      append([]bool(nil), t.tms...),
		tdi:      append([]tdiEntry(nil), t.tdi...),
		tdo:      append([]tdoSpan(nil), t.tdo...),
		states:   append([]tap.State(nil), t.states...),
		prevRead: t.prevRead,
	}
}

// spliceConsistent reports whether appending b after a is legal: the TMS
// bit that drives b's first state toward its second state must drive a's
// final state to that same second state. An empty b is always consistent.
func spliceConsistent(a, b *Template) bool {
	if len(b.tms) == 0 {
		return true
	}
	bit := b.tms[0]
	return tap.NextState(a.CurrentState(), bit) == b.states[1]
}

// Concat splices b after a, validating the transition is consistent per
// spliceConsistent. Adjacent literal TDI runs are merged when the splice
// point keeps the controller in the same state on both sides. Neither
// input is modified.
func Concat(a, b *Template) (*Template, error) {
	if !spliceConsistent(a, b) {
		var to tap.State
		if len(b.states) > 0 {
			to = b.states[0]
		}
		return nil, &StateMismatch{From: a.CurrentState(), To: to}
	}

	out := &Template{}
	out.states = append(append([]tap.State(nil), a.states...), b.states[1:]...)
	out.tms = append(append([]bool(nil), a.tms...), b.tms...)

	switch {
	case len(a.tdi) == 0:
		out.tdi = append([]tdiEntry(nil), b.tdi...)
	case len(b.tdi) == 0:
		out.tdi = append([]tdiEntry(nil), a.tdi...)
	default:
		aLast := a.tdi[len(a.tdi)-1]
		bFirst := b.tdi[0]
		if aLast.kind == tdiLiteral && bFirst.kind == tdiLiteral && a.CurrentState() == b.states[0] {
			merged := tdiEntry{bits: aLast.bits + bFirst.bits, kind: tdiLiteral, literal: aLast.literal + bFirst.literal}
			out.tdi = append(append([]tdiEntry(nil), a.tdi[:len(a.tdi)-1]...), merged)
			out.tdi = append(out.tdi, b.tdi[1:]...)
		} else {
			out.tdi = append(append([]tdiEntry(nil), a.tdi...), b.tdi...)
		}
	}

	out.tdo = append([]tdoSpan(nil), a.tdo...)
	if len(b.tdo) > 0 {
		first := b.tdo[0]
		out.tdo = append(out.tdo, tdoSpan{
			offsetFromPrev: len(a.tms) + first.offsetFromPrev - a.prevRead,
			length:         first.length,
		})
		out.tdo = append(out.tdo, b.tdo[1:]...)
		out.prevRead = len(a.tms) + b.prevRead
	} else {
		out.prevRead = a.prevRead
	}

	return out, nil
}

// Repeat returns a+a+...+a (n times), requiring a to be a closed cycle:
// the TMS bit that drives a's first state toward its second state must
// also drive a's final state to that second state. n==0 yields an empty
// template parked at a's starting state. a is not modified.
func Repeat(a *Template, n int) (*Template, error) {
	if n < 0 {
		return nil, &BuildError{Msg: "repeat count must be non-negative"}
	}
	if n == 0 {
		return &Template{states: []tap.State{a.states[0]}}, nil
	}
	if len(a.tms) > 0 && !spliceConsistent(a, a) {
		return nil, &BuildError{Msg: "template is not a closed cycle; cannot repeat"}
	}

	out := cloneTemplate(a)
	for i := 1; i < n; i++ {
		var err error
		out, err = Concat(out, a)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
