package template

import (
	"testing"

	"github.com/tapwalk/jtaghost/pkg/tap"
)

func TestCombineValidatesValueCount(t *testing.T) {
	b := NewBuilder(tap.StateRunTestIdle)
	if err := b.ReadDR(TDIVariable(8), true); err != nil {
		t.Fatalf("ReadDR: %v", err)
	}
	compiled, err := Compile(b)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, err := compiled.Combine(nil); err == nil {
		t.Fatalf("expected error for missing values")
	}
	if _, err := compiled.Combine([]int64{1, 2}); err == nil {
		t.Fatalf("expected error for too many values")
	}
}

func TestMultipleVariablesCombineInWriteOrder(t *testing.T) {
	b := NewBuilder(tap.StateRunTestIdle)
	if err := b.ReadDR(TDIVariable(4), false); err != nil {
		t.Fatalf("ReadDR 1: %v", err)
	}
	if err := b.ReadDR(TDIVariable(4), true); err != nil {
		t.Fatalf("ReadDR 2: %v", err)
	}
	compiled, err := Compile(b)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	wire, err := compiled.Combine([]int64{0xA, 0x5})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	tdoBits := make([]bool, len(wire))
	for i, c := range wire {
		tdoBits[i] = c == '1'
	}
	got, err := compiled.Extract(tdoBits)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 2 || got[0] != 0xA || got[1] != 0x5 {
		t.Fatalf("Extract = %v, want [0xA 0x5]", got)
	}
}

func TestCompileCachesResult(t *testing.T) {
	b := NewBuilder(tap.StateRunTestIdle)
	if err := b.WriteDR(TDIAllOnes(4), false); err != nil {
		t.Fatalf("WriteDR: %v", err)
	}
	c1, err := Compile(b)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	c2, err := Compile(b)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if c1 != c2 {
		t.Fatalf("Compile should return the cached result for an unmutated template")
	}

	if err := b.WriteDR(TDIAllOnes(4), false); err != nil {
		t.Fatalf("WriteDR: %v", err)
	}
	c3, err := Compile(b)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if c3 == c1 {
		t.Fatalf("Compile should recompute after mutation")
	}
}
