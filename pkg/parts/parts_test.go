package parts

import (
	"strings"
	"testing"
)

const xc7a200tLine = "0001001101100011000100001xxxxxxx 00000000000110 XC7A200T\n"

func TestLoadPartIndexExpandsWildcardsAndMatches(t *testing.T) {
	d := NewDatabase()
	if err := d.LoadPartIndex(strings.NewReader(xc7a200tLine)); err != nil {
		t.Fatalf("LoadPartIndex: %v", err)
	}
	if d.Len() != 1<<7 {
		t.Fatalf("Len() = %d, want %d", d.Len(), 1<<7)
	}

	const idcode = uint32(0x13631093)
	part, ok := d.Lookup(idcode)
	if !ok {
		t.Fatalf("Lookup(%#x) not found", idcode)
	}
	if part.Name != "XC7A200T" {
		t.Fatalf("Name = %q, want XC7A200T", part.Name)
	}
}

func TestLoadPartIndexRejectsTooManyWildcards(t *testing.T) {
	d := NewDatabase()
	pattern := strings.Repeat("x", 32) + " 0000 toomany\n"
	if err := d.LoadPartIndex(strings.NewReader(pattern)); err == nil {
		t.Fatalf("expected error for 32 wildcards")
	}
}

func TestLoadPartIndexIgnoresCommentsAndBlankLines(t *testing.T) {
	d := NewDatabase()
	data := "# a comment\n\n" + xc7a200tLine
	if err := d.LoadPartIndex(strings.NewReader(data)); err != nil {
		t.Fatalf("LoadPartIndex: %v", err)
	}
	if d.Len() != 1<<7 {
		t.Fatalf("Len() = %d, want %d", d.Len(), 1<<7)
	}
}

func TestPossibleIRExpandsCapturePattern(t *testing.T) {
	p := Part{IRCapturePattern: "xx01"}
	values, err := p.PossibleIR()
	if err != nil {
		t.Fatalf("PossibleIR: %v", err)
	}
	if len(values) != 4 {
		t.Fatalf("len(values) = %d, want 4", len(values))
	}
	for _, v := range values {
		if v.Length != 4 {
			t.Fatalf("Length = %d, want 4", v.Length)
		}
		if v.Value&0b0011 != 0b0001 {
			t.Fatalf("Value %04b does not preserve the literal low bits", v.Value)
		}
	}
}

func TestManufacturerNameFallsBackToBuiltinTable(t *testing.T) {
	d := NewDatabase()
	// 0x031 is Xilinx in the teacher's built-in JEP106 table.
	name := d.ManufacturerName(0x031)
	if !strings.Contains(name, "Xilinx") {
		t.Fatalf("ManufacturerName(0x031) = %q, want it to mention Xilinx", name)
	}
}

func TestMatchIDCodeAgreesWithExpansion(t *testing.T) {
	pattern := "0001001101100011000100001xxxxxxx"
	const idcode = uint32(0x13631093)
	if !matchIDCode(pattern, idcode) {
		t.Fatalf("matchIDCode(%s, %#x) = false, want true", pattern, idcode)
	}
	if matchIDCode(pattern, idcode^(1<<31)) {
		t.Fatalf("matchIDCode should reject a literal outside the expansion")
	}
}
