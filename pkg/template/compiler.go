package template

import (
	"fmt"
	"strings"
)

// chunk is one rendered piece of the reverse-ordered tdi stream: either a
// pre-bound constant or a variable slot bound at Combine time. writeOrder is
// the index of this variable among all variables in the order their
// Write/Read calls occurred, letting Combine accept values in that natural
// order even though chunks are joined in the opposite order on the wire.
type chunk struct {
	variable   bool
	bits       int
	literal    string
	writeOrder int
}

type capturedSpan struct {
	absStart int
	length   int
}

// CompiledTemplate is the lowered form of a frozen Template: three equally
// long strings over {0,1,*,x} plus a combiner and an extractor. It is safe
// for concurrent read-only use once produced by Compile.
type CompiledTemplate struct {
	tmsStr  string
	tdiXStr string
	tdoXStr string
	length  int

	chunks     []chunk
	numVars    int
	spans      []capturedSpan
}

// TMSStr returns the TMS stream: the first clock sent is the last
// character.
func (c *CompiledTemplate) TMSStr() string { return c.tmsStr }

// TDIXStr returns the TDI stream aligned with TMSStr; 'x' marks a
// caller-bound variable slot.
func (c *CompiledTemplate) TDIXStr() string { return c.tdiXStr }

// TDOXStr returns the capture mask aligned with TMSStr and TDIXStr; 'x'
// marks a bit the caller wants back, '*' marks don't-care.
func (c *CompiledTemplate) TDOXStr() string { return c.tdoXStr }

// Len reports the common length of TMSStr, TDIXStr, and TDOXStr.
func (c *CompiledTemplate) Len() int { return c.length }

// Compile lowers a Template into a CompiledTemplate. The result is cached
// on t and returned again on subsequent calls until t is mutated.
func Compile(t *Template) (*CompiledTemplate, error) {
	if t.compiled != nil {
		return t.compiled, nil
	}

	n := len(t.tms)

	var tmsBuf strings.Builder
	tmsBuf.Grow(n)
	for i := n - 1; i >= 0; i-- {
		tmsBuf.WriteByte(bitChar(t.tms[i]))
	}

	chunks := make([]chunk, len(t.tdi))
	writeOrder := 0
	for i, e := range t.tdi {
		if e.kind == tdiVariable {
			chunks[i] = chunk{variable: true, bits: e.bits, writeOrder: writeOrder}
			writeOrder++
		} else {
			chunks[i] = chunk{bits: e.bits, literal: e.literal}
		}
	}

	var tdiBuf strings.Builder
	tdiBuf.Grow(n)
	for i := len(chunks) - 1; i >= 0; i-- {
		if chunks[i].variable {
			tdiBuf.WriteString(strings.Repeat("x", chunks[i].bits))
		} else {
			tdiBuf.WriteString(chunks[i].literal)
		}
	}
	if tdiBuf.Len() != n {
		return nil, fmt.Errorf("template: tdi_xstr length %d does not match tms_str length %d", tdiBuf.Len(), n)
	}

	tdoBytes := make([]byte, n)
	for i := range tdoBytes {
		tdoBytes[i] = '*'
	}
	spans := make([]capturedSpan, len(t.tdo))
	cursor := 0
	for i, sp := range t.tdo {
		absStart := cursor + sp.offsetFromPrev
		for k := 0; k < sp.length; k++ {
			fwdIdx := absStart + k
			tdoBytes[n-1-fwdIdx] = 'x'
		}
		spans[i] = capturedSpan{absStart: absStart, length: sp.length}
		cursor = absStart + sp.length
	}

	ct := &CompiledTemplate{
		tmsStr:  tmsBuf.String(),
		tdiXStr: tdiBuf.String(),
		tdoXStr: string(tdoBytes),
		length:  n,
		chunks:  chunks,
		numVars: writeOrder,
		spans:   spans,
	}
	t.compiled = ct
	return ct, nil
}

func bitChar(b bool) byte {
	if b {
		return '1'
	}
	return '0'
}

func formatBits(bits int, v uint64) string {
	var sb strings.Builder
	sb.Grow(bits)
	for i := bits - 1; i >= 0; i-- {
		if v&(1<<uint(i)) != 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Combine merges values (one per variable TDI slot, in the order those
// Write/Read calls occurred) with the pre-bound constant bits to produce
// the final wire-ready TDI stream, in the same orientation as TDIXStr.
func (c *CompiledTemplate) Combine(values []int64) (string, error) {
	if len(values) != c.numVars {
		return "", fmt.Errorf("template: combiner expected %d values, got %d", c.numVars, len(values))
	}
	var sb strings.Builder
	sb.Grow(c.length)
	for i := len(c.chunks) - 1; i >= 0; i-- {
		ch := c.chunks[i]
		if ch.variable {
			sb.WriteString(formatBits(ch.bits, uint64(values[ch.writeOrder])))
		} else {
			sb.WriteString(ch.literal)
		}
	}
	return sb.String(), nil
}

// Extract inverts the capture mask: given the TDO bit stream in the same
// orientation as TDOXStr (index 0 aligned with the last clock sent), it
// returns one integer per capture span in the order those Read calls
// occurred, each with little-endian bit order (the first bit physically
// captured is the value's LSB).
func (c *CompiledTemplate) Extract(tdoBits []bool) ([]uint64, error) {
	if len(tdoBits) != c.length {
		return nil, fmt.Errorf("template: extractor expected %d tdo bits, got %d", c.length, len(tdoBits))
	}
	out := make([]uint64, len(c.spans))
	for i, sp := range c.spans {
		var v uint64
		for k := 0; k < sp.length; k++ {
			fwdIdx := sp.absStart + (sp.length - 1 - k)
			if tdoBits[c.length-1-fwdIdx] {
				v = v<<1 | 1
			} else {
				v = v << 1
			}
		}
		out[i] = v
	}
	return out, nil
}

// BitsFromBytes unpacks bits bits from buf, LSB-first within each byte,
// matching the XVC and MPSSE wire conventions.
func BitsFromBytes(buf []byte, bits int) []bool {
	out := make([]bool, bits)
	for i := 0; i < bits; i++ {
		out[i] = buf[i/8]&(1<<uint(i%8)) != 0
	}
	return out
}

// BytesFromBits packs bits into bytes, LSB-first within each byte.
func BytesFromBits(bits []bool) []byte {
	buf := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			buf[i/8] |= 1 << uint(i%8)
		}
	}
	return buf
}

// ExtractBytes is Extract over a packed little-endian byte buffer.
func (c *CompiledTemplate) ExtractBytes(tdo []byte) ([]uint64, error) {
	return c.Extract(BitsFromBytes(tdo, c.length))
}
