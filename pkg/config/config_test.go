package config

import (
	"strings"
	"testing"
)

func TestApplyArgsSetsKnownKeysAndPassesThroughPositional(t *testing.T) {
	c := New()
	remaining, err := c.ApplyArgs([]string{"CABLE_DRIVER=ftdi", "ftdi", "CABLE_NAME=0403:6010"})
	if err != nil {
		t.Fatalf("ApplyArgs returned error: %v", err)
	}
	if c.CableDriver != "ftdi" {
		t.Fatalf("CableDriver = %q, want ftdi", c.CableDriver)
	}
	if c.CableName != "0403:6010" {
		t.Fatalf("CableName = %q, want 0403:6010", c.CableName)
	}
	if len(remaining) != 1 || remaining[0] != "ftdi" {
		t.Fatalf("remaining = %v, want [ftdi]", remaining)
	}
}

func TestApplyArgsUnknownKeyIsConfigError(t *testing.T) {
	c := New()
	_, err := c.ApplyArgs([]string{"BOGUS_KEY=1"})
	if err == nil {
		t.Fatalf("ApplyArgs with unknown key succeeded, want error")
	}
	var cerr *ConfigError
	if !asConfigError(err, &cerr) {
		t.Fatalf("error = %v (%T), want *ConfigError", err, err)
	}
	if cerr.Key != "BOGUS_KEY" {
		t.Fatalf("ConfigError.Key = %q, want BOGUS_KEY", cerr.Key)
	}
}

func TestApplyArgsRejectsMalformedInt(t *testing.T) {
	c := New()
	_, err := c.ApplyArgs([]string{"SOCKET_ADDRESS=not-a-number"})
	if err == nil {
		t.Fatalf("ApplyArgs with malformed int succeeded, want error")
	}
}

func TestMergePreservesUserSetFieldsAndFillsRest(t *testing.T) {
	c := New()
	if err := c.Set("FTDI_LATENCY_TIMER", "4"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	c.Merge(FTDIDefaults())

	if c.FTDILatencyTimer != 4 {
		t.Fatalf("FTDILatencyTimer = %d, want 4 (user-set value should survive)", c.FTDILatencyTimer)
	}
	if c.FTDIUSBInSize != 65535 {
		t.Fatalf("FTDIUSBInSize = %d, want default 65535", c.FTDIUSBInSize)
	}
	if c.FTDIWriteTimeoutMs != 5000 {
		t.Fatalf("FTDIWriteTimeoutMs = %d, want default 5000", c.FTDIWriteTimeoutMs)
	}
}

func TestMergeXVCDefaultsFillsHostAndPort(t *testing.T) {
	c := New()
	c.Merge(XVCDefaults([]string{"jtaghub.example", "2600"}))
	if c.XVCHostName != "jtaghub.example" {
		t.Fatalf("XVCHostName = %q, want jtaghub.example", c.XVCHostName)
	}
	if c.XVCPortNum != 2600 {
		t.Fatalf("XVCPortNum = %d, want 2600", c.XVCPortNum)
	}
}

func TestLoadFileParsesAssignmentsCommentsAndBlankLines(t *testing.T) {
	c := New()
	input := `# cable selection
CABLE_DRIVER = ftdi
CABLE_NAME=0403:6014

FTDI_LATENCY_TIMER = 8
`
	if err := c.LoadFile(strings.NewReader(input)); err != nil {
		t.Fatalf("LoadFile returned error: %v", err)
	}
	if c.CableDriver != "ftdi" {
		t.Fatalf("CableDriver = %q, want ftdi", c.CableDriver)
	}
	if c.CableName != "0403:6014" {
		t.Fatalf("CableName = %q, want 0403:6014", c.CableName)
	}
	if c.FTDILatencyTimer != 8 {
		t.Fatalf("FTDILatencyTimer = %d, want 8", c.FTDILatencyTimer)
	}
}

func TestLoadFileToleratesMissingTrailingNewline(t *testing.T) {
	c := New()
	if err := c.LoadFile(strings.NewReader("SHOW_CHAIN = false")); err != nil {
		t.Fatalf("LoadFile without trailing newline returned error: %v", err)
	}
	if c.ShowChain {
		t.Fatalf("ShowChain = true, want false")
	}
}

func asConfigError(err error, target **ConfigError) bool {
	cerr, ok := err.(*ConfigError)
	if !ok {
		return false
	}
	*target = cerr
	return true
}
