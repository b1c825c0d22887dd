// Package parts implements the parts database (spec component G): a
// IDCODE-pattern-to-part-name lookup table with x-wildcard expansion,
// loaded from two flat text files at startup.
package parts

import (
	"fmt"
	"strconv"
)

// Part is one entry in the database: an IDCODE pattern (which may contain
// x wildcards), the instruction register length and capture pattern it
// implies, and the device's name and manufacturer.
type Part struct {
	IDCodePattern    string
	IRLength         int
	IRCapturePattern string
	Name             string
	Manufacturer     string
	Version          uint8  // IDCode.Version of the matched literal
	PartNumber       uint16 // IDCode.PartNumber of the matched literal
}

// IRValue is one concrete (length, value) pair obtained by expanding the
// x wildcards in an IRCapturePattern.
type IRValue struct {
	Length int
	Value  uint32
}

// PossibleIR returns every concrete IR capture value this part's pattern
// could produce, expanding its x wildcards.
func (p Part) PossibleIR() ([]IRValue, error) {
	if p.IRCapturePattern == "" {
		return nil, nil
	}
	expansions, err := expandWildcards(p.IRCapturePattern)
	if err != nil {
		return nil, fmt.Errorf("parts: %s: %w", p.Name, err)
	}
	out := make([]IRValue, len(expansions))
	for i, lit := range expansions {
		v, err := strconv.ParseUint(lit, 2, 32)
		if err != nil {
			return nil, fmt.Errorf("parts: %s: invalid ir_capture literal %q: %w", p.Name, lit, err)
		}
		out[i] = IRValue{Length: len(lit), Value: uint32(v)}
	}
	return out, nil
}
