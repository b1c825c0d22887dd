package template

import (
	"fmt"
	"strings"
)

type tdiKind int

const (
	tdiLiteral tdiKind = iota
	tdiInt
	tdiAllOnes
	tdiVariable
)

// TDI is one item of a template's tdi sequence: a literal bit-string over
// {0,1,*,x}, an integer to be rendered fixed-width, the sentinel meaning
// all-ones, or a variable placeholder the caller binds at execution time.
// Every TDI carries its own bit width, which WriteIR/WriteDR/ReadIR/ReadDR
// validate against rather than accepting a separate numbits argument —
// one source of truth instead of two numbers that can silently disagree.
type TDI struct {
	bits    int
	kind    tdiKind
	literal string
	value   int64
}

// TDILiteral builds a TDI from a constant bit-string over {0,1,*,x}. Its
// width is the string's length.
func TDILiteral(bits string) (TDI, error) {
	for _, c := range bits {
		if c != '0' && c != '1' && c != '*' && c != 'x' {
			return TDI{}, fmt.Errorf("template: tdi literal %q contains invalid character %q", bits, c)
		}
	}
	return TDI{bits: len(bits), kind: tdiLiteral, literal: bits}, nil
}

// TDIInt builds a TDI from an integer value rendered to a fixed width. A
// value of -1 is the all-ones sentinel.
func TDIInt(bits int, v int64) TDI {
	if v == -1 {
		return TDIAllOnes(bits)
	}
	return TDI{bits: bits, kind: tdiInt, value: v}
}

// TDIAllOnes builds a TDI whose bits are all 1.
func TDIAllOnes(bits int) TDI {
	return TDI{bits: bits, kind: tdiAllOnes}
}

// TDIVariable builds a placeholder of the given width that the caller
// supplies at execution time via the compiled template's combiner.
func TDIVariable(bits int) TDI {
	return TDI{bits: bits, kind: tdiVariable}
}

// Bits reports the declared width of this TDI entry.
func (t TDI) Bits() int { return t.bits }

type tdiEntry struct {
	bits    int
	kind    tdiKind
	literal string
}

func (t TDI) render() (tdiEntry, error) {
	if t.bits <= 0 {
		return tdiEntry{}, fmt.Errorf("tdi width must be positive, got %d", t.bits)
	}
	switch t.kind {
	case tdiLiteral:
		if len(t.literal) != t.bits {
			return tdiEntry{}, fmt.Errorf("tdi literal %q has length %d, want %d", t.literal, len(t.literal), t.bits)
		}
		return tdiEntry{bits: t.bits, kind: tdiLiteral, literal: t.literal}, nil
	case tdiAllOnes:
		return tdiEntry{bits: t.bits, kind: tdiLiteral, literal: strings.Repeat("1", t.bits)}, nil
	case tdiInt:
		if t.bits < 64 && (t.value < 0 || t.value >= int64(1)<<uint(t.bits)) {
			return tdiEntry{}, fmt.Errorf("tdi value %d does not fit in %d bits", t.value, t.bits)
		}
		var sb strings.Builder
		sb.Grow(t.bits)
		for i := t.bits - 1; i >= 0; i-- {
			if t.value&(1<<uint(i)) != 0 {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
		return tdiEntry{bits: t.bits, kind: tdiLiteral, literal: sb.String()}, nil
	case tdiVariable:
		return tdiEntry{bits: t.bits, kind: tdiVariable}, nil
	default:
		return tdiEntry{}, fmt.Errorf("tdi: unknown kind %d", t.kind)
	}
}
