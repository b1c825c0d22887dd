package tap

import (
	"fmt"
)

// State represents one of the sixteen IEEE 1149.1 TAP controller states, or
// the sentinel StateUnknown that precedes any reset.
type State uint8

const (
	// StateUnknown is not part of the IEEE graph; it is the state of a
	// controller that has never been reset, and exists only so a
	// StateMachine can be constructed before hardware has been touched.
	StateUnknown State = iota
	StateTestLogicReset
	StateRunTestIdle
	StateSelectDRScan
	StateCaptureDR
	StateShiftDR
	StateExit1DR
	StatePauseDR
	StateExit2DR
	StateUpdateDR
	StateSelectIRScan
	StateCaptureIR
	StateShiftIR
	StateExit1IR
	StatePauseIR
	StateExit2IR
	StateUpdateIR
)

var stateNames = map[State]string{
	StateUnknown:        "Unknown",
	StateTestLogicReset: "TestLogicReset",
	StateRunTestIdle:    "RunTestIdle",
	StateSelectDRScan:   "SelectDRScan",
	StateCaptureDR:      "CaptureDR",
	StateShiftDR:        "ShiftDR",
	StateExit1DR:        "Exit1DR",
	StatePauseDR:        "PauseDR",
	StateExit2DR:        "Exit2DR",
	StateUpdateDR:       "UpdateDR",
	StateSelectIRScan:   "SelectIRScan",
	StateCaptureIR:      "CaptureIR",
	StateShiftIR:        "ShiftIR",
	StateExit1IR:        "Exit1IR",
	StatePauseIR:        "PauseIR",
	StateExit2IR:        "Exit2IR",
	StateUpdateIR:       "UpdateIR",
}

var namesToState = func() map[string]State {
	m := make(map[string]State, len(stateNames))
	for s, name := range stateNames {
		m[name] = s
	}
	return m
}()

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", s)
}

// StateByName looks up a state by its canonical name, e.g. "ShiftDR".
func StateByName(name string) (State, bool) {
	s, ok := namesToState[name]
	return s, ok
}

// Sequence captures the TMS drive pattern and the sequence of states that result
// from applying that pattern to the TAP controller.
type Sequence struct {
	TMS    []bool
	States []State
}

type stateTransitions struct {
	onZero State
	onOne  State
}

// transitions deliberately gives StateUnknown an asymmetric row: TMS=0
// leaves it unknown (we still don't know where the controller is), while
// TMS=1 lands it in Test-Logic-Reset, since that is what five consecutive
// TMS=1 clocks guarantee regardless of the controller's true prior state.
var transitions = map[State]stateTransitions{
	StateUnknown:        {onZero: StateUnknown, onOne: StateTestLogicReset},
	StateTestLogicReset: {onZero: StateRunTestIdle, onOne: StateTestLogicReset},
	StateRunTestIdle:    {onZero: StateRunTestIdle, onOne: StateSelectDRScan},
	StateSelectDRScan:   {onZero: StateCaptureDR, onOne: StateSelectIRScan},
	StateCaptureDR:      {onZero: StateShiftDR, onOne: StateExit1DR},
	StateShiftDR:        {onZero: StateShiftDR, onOne: StateExit1DR},
	StateExit1DR:        {onZero: StatePauseDR, onOne: StateUpdateDR},
	StatePauseDR:        {onZero: StatePauseDR, onOne: StateExit2DR},
	StateExit2DR:        {onZero: StateShiftDR, onOne: StateUpdateDR},
	StateUpdateDR:       {onZero: StateRunTestIdle, onOne: StateSelectDRScan},
	StateSelectIRScan:   {onZero: StateCaptureIR, onOne: StateTestLogicReset},
	StateCaptureIR:      {onZero: StateShiftIR, onOne: StateExit1IR},
	StateShiftIR:        {onZero: StateShiftIR, onOne: StateExit1IR},
	StateExit1IR:        {onZero: StatePauseIR, onOne: StateUpdateIR},
	StatePauseIR:        {onZero: StatePauseIR, onOne: StateExit2IR},
	StateExit2IR:        {onZero: StateShiftIR, onOne: StateUpdateIR},
	StateUpdateIR:       {onZero: StateRunTestIdle, onOne: StateSelectDRScan},
}

// stableStates are states the controller can idle in indefinitely with TCK
// running and TMS held, without disturbing IR or DR: Test-Logic-Reset,
// Run-Test/Idle, the two shift states, and the two pause states.
var stableStates = map[State]bool{
	StateTestLogicReset: true,
	StateRunTestIdle:    true,
	StateShiftDR:        true,
	StateShiftIR:        true,
	StatePauseDR:        true,
	StatePauseIR:        true,
}

var shiftingStates = map[State]bool{
	StateShiftDR: true,
	StateShiftIR: true,
}

// IsStable reports whether the controller can idle in s indefinitely.
func IsStable(s State) bool { return stableStates[s] }

// IsShifting reports whether s is one of the two shift states, in which
// every clock moves one bit through the selected register.
func IsShifting(s State) bool { return shiftingStates[s] }

// NextState returns the next TAP state after clocking TCK with the provided TMS
// value. It panics if an invalid state is supplied, which should never happen
// when interacting through the exported API.
func NextState(current State, tms bool) State {
	row, ok := transitions[current]
	if !ok {
		panic(fmt.Sprintf("tap: unhandled state %d", current))
	}
	if tms {
		return row.onOne
	}
	return row.onZero
}

// StateMachine tracks the TAP controller state locally. It does not perform any
// I/O; instead it produces the sequences of TMS bits needed so a hardware
// adapter can be instructed separately.
type StateMachine struct {
	state State
}

// NewStateMachine creates a TAP state machine in StateUnknown, matching the
// state of real hardware that has not yet been reset.
func NewStateMachine() *StateMachine {
	return &StateMachine{state: StateUnknown}
}

// State reports the current TAP state tracked by the machine.
func (m *StateMachine) State() State {
	return m.state
}

// Clock advances the machine one TCK cycle with the provided TMS bit and
// returns the new state.
func (m *StateMachine) Clock(tms bool) State {
	next := NextState(m.state, tms)
	m.state = next
	return next
}

// Reset applies the IEEE recommendation of clocking five consecutive TMS=1
// cycles. It returns the sequence for convenience so it can be forwarded to a
// hardware adapter. Five TMS=1 clocks land in Test-Logic-Reset from any
// starting state, including StateUnknown.
func (m *StateMachine) Reset() Sequence {
	seq := Sequence{
		TMS:    make([]bool, 5),
		States: make([]State, 6),
	}
	seq.States[0] = m.state
	for i := 0; i < 5; i++ {
		seq.TMS[i] = true
		seq.States[i+1] = m.Clock(true)
	}
	return seq
}

// GoTo computes the minimal sequence of TMS values needed to reach the target
// state from the current state. It updates the machine as a side effect and
// returns the generated sequence. From StateUnknown the only legal target
// reachable without an explicit Reset is StateTestLogicReset itself; callers
// that GoTo any other state from StateUnknown get a path that routes through
// Test-Logic-Reset first, since that is the one deterministic transition
// StateUnknown offers.
func (m *StateMachine) GoTo(target State) (Sequence, error) {
	path, err := computePath(m.state, target)
	if err != nil {
		return Sequence{}, err
	}
	for _, bit := range path.TMS {
		m.Clock(bit)
	}
	return path, nil
}

// CycleString returns the TMS pattern for n clocks that stay within a
// self-looping state (typically StateShiftIR or StateShiftDR) for the first
// n-1 clocks, then on the final clock either remain (exit=false) or leave via
// the state's other transition (exit=true).
func CycleString(state State, n int, exit bool) ([]bool, error) {
	if n <= 0 {
		return nil, fmt.Errorf("tap: cycle length must be positive, got %d", n)
	}
	row, ok := transitions[state]
	if !ok {
		return nil, fmt.Errorf("tap: unknown state %d", state)
	}

	var stay bool
	switch state {
	case row.onZero:
		stay = false
	case row.onOne:
		stay = true
	default:
		return nil, fmt.Errorf("tap: state %s has no self-loop", state)
	}

	bits := make([]bool, n)
	for i := 0; i < n-1; i++ {
		bits[i] = stay
	}
	if exit {
		bits[n-1] = !stay
	} else {
		bits[n-1] = stay
	}
	return bits, nil
}

// PathBetween exposes the BFS shortest-path search so other packages (the
// template builder) can compute a transition sequence without owning a
// StateMachine.
func PathBetween(from, to State) (Sequence, error) {
	return computePath(from, to)
}

// computePath uses BFS across the TAP state diagram to find the shortest set of
// transitions between two states.
func computePath(from, to State) (Sequence, error) {
	if _, ok := transitions[from]; !ok {
		return Sequence{}, fmt.Errorf("tap: invalid start state %d", from)
	}
	if _, ok := transitions[to]; !ok {
		return Sequence{}, fmt.Errorf("tap: invalid target state %d", to)
	}
	if from == to {
		return Sequence{States: []State{from}}, nil
	}

	type node struct {
		state  State
		tms    []bool
		states []State
	}

	queue := []node{{
		state:  from,
		tms:    nil,
		states: []State{from},
	}}
	visited := map[State]struct{}{from: {}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		nextStates := []struct {
			bit  bool
			next State
		}{
			{bit: false, next: NextState(current.state, false)},
			{bit: true, next: NextState(current.state, true)},
		}

		for _, candidate := range nextStates {
			if _, seen := visited[candidate.next]; seen {
				continue
			}

			newTMS := append(append([]bool{}, current.tms...), candidate.bit)
			newStates := append(append([]State{}, current.states...), candidate.next)

			if candidate.next == to {
				return Sequence{
					TMS:    newTMS,
					States: newStates,
				}, nil
			}

			visited[candidate.next] = struct{}{}
			queue = append(queue, node{
				state:  candidate.next,
				tms:    newTMS,
				states: newStates,
			})
		}
	}

	return Sequence{}, fmt.Errorf("tap: no path from %s to %s", from, to)
}
