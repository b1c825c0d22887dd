package transport

import (
	"fmt"
	"time"

	"github.com/google/gousb"
)

// MPSSE opcode bytes, per FTDI application note AN108.
const (
	mpsseSetLowByte           = 0x80
	mpsseSetHighByte          = 0x82
	mpsseGetLowByte           = 0x81
	mpsseGetHighByte          = 0x83
	mpsseLoopbackEnable       = 0x84
	mpsseLoopbackDisable      = 0x85
	mpsseSetDivisor           = 0x86
	mpsseSendImmediate        = 0x87
	mpsseDisableDiv5          = 0x8A
	mpsseEnableDiv5           = 0x8B
	mpsseEnableThreePhase     = 0x8C
	mpsseDisableThreePhase    = 0x8D
	mpsseEnableAdaptiveClock  = 0x96
	mpsseDisableAdaptiveClock = 0x97
	mpsseClockTMSWithRead     = 0x6B
)

// FTDI SIO vendor control requests (bmRequestType 0x40, OUT).
const (
	sioResetRequest        = 0x00
	sioSetLatencyTimer     = 0x09
	sioSetBitModeRequest   = 0x0B
	bitModeReset           = 0x00
	bitModeMPSSE           = 0x02
	defaultLatencyTimerMs  = 16
	defaultStartupSleepMs  = 50
	defaultGPIOMask        = 0x1b
	defaultGPIOOut         = 0x08
	defaultJTAGFrequencyHz = 15_000_000
	mpsseBaseClockHighSpd  = 30_000_000
	mpsseBaseClockStandard = 6_000_000
)

// MPSSEUSB drives an FTDI FT2232H/FT232H/FT4232H family device in MPSSE
// mode over a raw USB bulk pipe (not the proprietary D2XX driver). The
// init/synchronize/setspeed sequence follows FTDI application note 129.
type MPSSEUSB struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	intf *gousb.Interface

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	speedHz   int
	highSpeed bool
	closed    bool
}

// OpenMPSSEUSB opens the first device matching vid/pid, places it in MPSSE
// mode, and synchronizes the command parser.
func OpenMPSSEUSB(vid, pid uint16) (*MPSSEUSB, error) {
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, &IOError{Op: "open", Err: err}
	}
	if dev == nil {
		ctx.Close()
		return nil, &IOError{Op: "open", Err: fmt.Errorf("device not found (VID:0x%04X PID:0x%04X)", vid, pid)}
	}
	_ = dev.SetAutoDetach(true)

	m := &MPSSEUSB{ctx: ctx, dev: dev, speedHz: defaultJTAGFrequencyHz}
	if err := m.claimInterface(); err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}
	if err := m.initMPSSE(); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

func (m *MPSSEUSB) claimInterface() error {
	cfg, err := m.dev.Config(1)
	if err != nil {
		return &IOError{Op: "config", Err: err}
	}
	intfNum := 0
	if len(cfg.Desc.Interfaces) > 0 {
		intfNum = cfg.Desc.Interfaces[0].Number
	}
	intf, err := cfg.Interface(intfNum, 0)
	if err != nil {
		return &IOError{Op: "claim interface", Err: err}
	}
	m.intf = intf
	return m.findEndpoints()
}

func (m *MPSSEUSB) findEndpoints() error {
	setting := m.intf.Setting
	for _, ep := range setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionOut && m.epOut == nil {
			out, err := m.intf.OutEndpoint(ep.Number)
			if err != nil {
				return &IOError{Op: "out endpoint", Err: err}
			}
			m.epOut = out
		}
		if ep.Direction == gousb.EndpointDirectionIn && m.epIn == nil {
			in, err := m.intf.InEndpoint(ep.Number)
			if err != nil {
				return &IOError{Op: "in endpoint", Err: err}
			}
			m.epIn = in
		}
	}
	if m.epOut == nil || m.epIn == nil {
		return &IOError{Op: "find endpoints", Err: fmt.Errorf("bulk in/out endpoints not found")}
	}
	return nil
}

func (m *MPSSEUSB) controlOut(request uint8, value, index uint16) error {
	_, err := m.dev.Control(0x40, request, value, index, nil)
	return err
}

func (m *MPSSEUSB) initMPSSE() error {
	if err := m.controlOut(sioResetRequest, 0, 1); err != nil {
		return &IOError{Op: "reset", Err: err}
	}
	if err := m.controlOut(sioSetLatencyTimer, defaultLatencyTimerMs, 1); err != nil {
		return &IOError{Op: "set latency timer", Err: err}
	}
	if err := m.controlOut(sioSetBitModeRequest, uint16(bitModeReset), 1); err != nil {
		return &IOError{Op: "bitmode reset", Err: err}
	}
	if err := m.controlOut(sioSetBitModeRequest, uint16(bitModeMPSSE)<<8, 1); err != nil {
		return &IOError{Op: "bitmode mpsse", Err: err}
	}
	time.Sleep(defaultStartupSleepMs * time.Millisecond)

	if err := m.synchronize(); err != nil {
		return err
	}
	if err := m.SetSpeed(defaultJTAGFrequencyHz); err != nil {
		return err
	}
	return m.writeBytes([]byte{mpsseSetLowByte, defaultGPIOOut, defaultGPIOMask})
}

// synchronize sends an invalid MPSSE command and checks for the FTDI bad
// command echo pattern (0xFA, opcode) that confirms the chip's command
// parser is in a known state.
func (m *MPSSEUSB) synchronize() error {
	const bad = 0xAA
	if err := m.writeBytes([]byte{bad}); err != nil {
		return err
	}
	resp, err := m.readBytes(2)
	if err != nil {
		return err
	}
	if len(resp) != 2 || resp[0] != 0xFA || resp[1] != bad {
		return &IOError{Op: "synchronize", Err: fmt.Errorf("unexpected sync response: %v", resp)}
	}
	return nil
}

func (m *MPSSEUSB) writeBytes(buf []byte) error {
	_, err := m.epOut.Write(buf)
	if err != nil {
		return &IOError{Op: "usb write", Err: err}
	}
	return nil
}

func (m *MPSSEUSB) readBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	read := 0
	for read < n {
		k, err := m.epIn.Read(buf[read:])
		if err != nil {
			return nil, &IOError{Op: "usb read", Err: err}
		}
		read += k
	}
	return buf, nil
}

// SetSpeed picks the divisor for hz from the AN129 formula. When highSpeed
// is set it first disables divide-by-5, three-phase clocking, adaptive
// clocking and internal loopback and uses the 30 MHz base clock; otherwise
// it uses the 6 MHz base clock. The device is not probed for hi-speed
// support, and nothing in this file sets highSpeed.
func (m *MPSSEUSB) SetSpeed(hz int) error {
	if hz <= 0 {
		return &IOError{Op: "setspeed", Err: errInvalidSpeed}
	}
	base := mpsseBaseClockStandard
	if m.highSpeed {
		if err := m.writeBytes([]byte{mpsseDisableDiv5, mpsseDisableThreePhase, mpsseDisableAdaptiveClock, mpsseLoopbackDisable}); err != nil {
			return err
		}
		base = mpsseBaseClockHighSpd
	}
	div := base/hz - 1
	if div < 0 {
		div = 0
	}
	if div > 0xFFFF {
		div = 0xFFFF
	}
	if err := m.writeBytes([]byte{mpsseSetDivisor, byte(div & 0xFF), byte(div >> 8)}); err != nil {
		return err
	}
	m.speedHz = hz
	return nil
}

func (m *MPSSEUSB) GetSpeed() (int, error) { return m.speedHz, nil }

// Exchange clocks tms/tdi using opcode 0x6B (clock TMS pin with read), which
// packs up to 7 clocks per command but holds TDI constant across all of
// them (AN108's "Clock Data to TMS Pin (no Read)"/with-read family: bit 7 of
// the data byte is one TDI value for the whole command, bits 0..6 are each
// clock's TMS bit, LSB first). Exchange groups the chronological clock
// sequence into runs where tdi stays constant (at most 7 bits per run, the
// command's limit) and issues one 0x6B per run instead of one per bit.
// tms/tdi arrive in reversed orientation (index len-1 is the first clock);
// results are returned in the same orientation.
func (m *MPSSEUSB) Exchange(tms, tdi []bool, tdoReq TDORequest) ([]bool, error) {
	if m.closed {
		return nil, &IOError{Op: "exchange", Err: ErrClosed}
	}
	if len(tms) != len(tdi) {
		return nil, &IOError{Op: "exchange", Err: errLengthMismatch}
	}
	n := len(tms)
	out := make([]bool, n)

	for i := n - 1; i >= 0; {
		runTDI := tdi[i]
		runLen := 1
		for runLen < 7 && i-runLen >= 0 && tdi[i-runLen] == runTDI {
			runLen++
		}

		data := byte(0)
		if runTDI {
			data |= 0x80
		}
		for j := 0; j < runLen; j++ {
			if tms[i-j] {
				data |= 1 << uint(j)
			}
		}
		if err := m.writeBytes([]byte{mpsseClockTMSWithRead, byte(runLen - 1), data, mpsseSendImmediate}); err != nil {
			return nil, err
		}
		resp, err := m.readBytes(1)
		if err != nil {
			return nil, err
		}
		for j := 0; j < runLen; j++ {
			out[i-j] = resp[0]&(1<<uint(7-j)) != 0
		}
		i -= runLen
	}

	if tdoReq.Length != n {
		return nil, &IOError{Op: "exchange", Err: fmt.Errorf("tdo length %d does not match clock count %d", tdoReq.Length, n)}
	}
	return out, nil
}

func (m *MPSSEUSB) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	if m.intf != nil {
		m.intf.Close()
	}
	if m.dev != nil {
		m.dev.Close()
	}
	if m.ctx != nil {
		m.ctx.Close()
	}
	return nil
}
