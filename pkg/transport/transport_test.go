package transport

import (
	"testing"

	"github.com/tapwalk/jtaghost/pkg/tap"
	"github.com/tapwalk/jtaghost/pkg/template"
)

func TestExecuteTemplateRoundTripsThroughLoopback(t *testing.T) {
	b := template.NewBuilder(tap.StateRunTestIdle)
	if err := b.ReadDR(template.TDIVariable(32), true); err != nil {
		t.Fatalf("ReadDR: %v", err)
	}
	ct, err := template.Compile(b)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	d := NewLoopback()
	const want = int64(0xC0FFEE)
	got, err := ExecuteTemplate(d, ct, []int64{want})
	if err != nil {
		t.Fatalf("ExecuteTemplate: %v", err)
	}
	if len(got) != 1 || int64(got[0]) != want {
		t.Fatalf("ExecuteTemplate = %v, want [%#x]", got, want)
	}
}

func TestLoopbackRejectsExchangeAfterClose(t *testing.T) {
	d := NewLoopback()
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := d.Exchange([]bool{true}, []bool{false}, TDORequest{Length: 1}); err == nil {
		t.Fatalf("expected error exchanging on a closed driver")
	}
}

func TestLoopbackHookOverridesEcho(t *testing.T) {
	d := NewLoopback()
	d.Hook = func(tms, tdi []bool, tdo TDORequest) ([]bool, error) {
		out := make([]bool, tdo.Length)
		for i := range out {
			out[i] = true
		}
		return out, nil
	}
	got, err := d.Exchange([]bool{false, false}, []bool{false, true}, TDORequest{Length: 2})
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if !got[0] || !got[1] {
		t.Fatalf("Exchange = %v, want all true", got)
	}
}

func TestSimChainCapturesIDCODE(t *testing.T) {
	chain := NewSimChain([]SimDevice{{IDCode: 0x4BA00477, IRLength: 4, IRCapture: 0x1}})

	b := template.NewBuilder(tap.StateTestLogicReset)
	if err := b.EnterState(tap.StateRunTestIdle); err != nil {
		t.Fatalf("EnterState RunTestIdle: %v", err)
	}
	if err := b.ReadDR(template.TDIVariable(32), true); err != nil {
		t.Fatalf("ReadDR: %v", err)
	}
	ct, err := template.Compile(b)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	got, err := ExecuteTemplate(chain, ct, []int64{0})
	if err != nil {
		t.Fatalf("ExecuteTemplate: %v", err)
	}
	if len(got) != 1 || uint32(got[0]) != 0x4BA00477 {
		t.Fatalf("captured IDCODE = %#x, want 0x4BA00477", got[0])
	}
}

func TestSimChainTwoDeviceIRSegmentation(t *testing.T) {
	chain := NewSimChain([]SimDevice{
		{IDCode: 0x1, IRLength: 4, IRCapture: 0x1},
		{IDCode: 0x2, IRLength: 6, IRCapture: 0x1},
	})

	b := template.NewBuilder(tap.StateTestLogicReset)
	if err := b.EnterState(tap.StateRunTestIdle); err != nil {
		t.Fatalf("EnterState: %v", err)
	}
	if err := b.ReadIR(template.TDIVariable(10), true); err != nil {
		t.Fatalf("ReadIR: %v", err)
	}
	ct, err := template.Compile(b)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	got, err := ExecuteTemplate(chain, ct, []int64{0})
	if err != nil {
		t.Fatalf("ExecuteTemplate: %v", err)
	}
	// Device 0 (nearest TDI) is captured last in the shift register, so
	// its 4-bit IR capture pattern (...0001) lands in the high bits of the
	// combined 10-bit value, with device 1's 6-bit pattern (...000001) in
	// the low bits.
	want := uint64(0x1<<6 | 0x1)
	if got[0] != want {
		t.Fatalf("captured IR = %#x, want %#x", got[0], want)
	}
}

func TestSimChainStuckDetection(t *testing.T) {
	stuck := NewStuckSimChain(false)
	b := template.NewBuilder(tap.StateTestLogicReset)
	if err := b.EnterState(tap.StateRunTestIdle); err != nil {
		t.Fatalf("EnterState: %v", err)
	}
	if err := b.ReadDR(template.TDIAllOnes(32), true); err != nil {
		t.Fatalf("ReadDR: %v", err)
	}
	ct, err := template.Compile(b)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	got, err := ExecuteTemplate(stuck, ct, nil)
	if err != nil {
		t.Fatalf("ExecuteTemplate: %v", err)
	}
	if got[0] != 0 {
		t.Fatalf("stuck chain returned %#x, want 0", got[0])
	}
}
