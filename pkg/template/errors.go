package template

import (
	"fmt"

	"github.com/tapwalk/jtaghost/pkg/tap"
)

// BuildError reports an illegal template construction: a length mismatch,
// writing while in a non-shift state, or any other assertion a builder
// caller violated. It is always a programmer error, raised synchronously at
// the offending call.
type BuildError struct {
	Msg string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("template: build error: %s", e.Msg)
}

// StateMismatch reports an illegal splice: the TMS bit that drives the
// second template's first state toward its second state does not match the
// TMS bit that would drive the first template's final state the same way.
type StateMismatch struct {
	From tap.State
	To   tap.State
}

func (e *StateMismatch) Error() string {
	return fmt.Sprintf("template: state mismatch splicing template starting at %s onto one ending at %s", e.To, e.From)
}
