// Package chain implements chain discovery (spec component F): probing an
// unknown scan chain's IDCODE/BYPASS membership and per-device instruction
// register lengths, then reconciling the result against a parts database.
package chain

import (
	"fmt"

	"github.com/tapwalk/jtaghost/pkg/parts"
	"github.com/tapwalk/jtaghost/pkg/tap"
	"github.com/tapwalk/jtaghost/pkg/transport"
)

// Device is one discovered member of the scan chain. Index 0 in Chain.Devices
// is the device nearest TDO (spec.md §4.F step 4).
type Device struct {
	IDCode    uint32
	IRLength  int
	IRCapture uint32
	Part      parts.Part
	KnownPart bool
}

// Chain is the fully reconciled result of Discover.
type Chain struct {
	Devices []Device
}

// Options bounds chain discovery, mirroring
// original_source/playtag/jtag/discover.py's Chain class attributes.
type Options struct {
	MinDeviceCapacity int // starting IDCODE probe capacity, in devices
	MaxDeviceCapacity int // device-count ceiling before ChainTooLong
	MaxIRBits         int // per-device instruction register length ceiling
	MinIRBits         int // per-device instruction register length floor
	RepeatCount       int // consistency-check repetitions
}

// DefaultOptions matches discover.py's class defaults.
func DefaultOptions() Options {
	return Options{
		MinDeviceCapacity: 2,
		MaxDeviceCapacity: 32,
		MaxIRBits:         10,
		MinIRBits:         2,
		RepeatCount:       4,
	}
}

// Discover runs chain discovery against d using the default options and
// reconciles IDCODEs against db (nil disables parts-database constraining).
func Discover(d transport.Driver, db *parts.Database) (*Chain, error) {
	return DiscoverWithOptions(d, db, DefaultOptions())
}

// DiscoverWithOptions is Discover with explicit bounds.
func DiscoverWithOptions(d transport.Driver, db *parts.Database, opt Options) (*Chain, error) {
	ids, err := repeatRead(opt.RepeatCount, "IDCODE", func() ([]uint32, error) {
		return readIDCodes(d, opt)
	})
	if err != nil {
		return nil, err
	}
	numdev := len(ids)

	lengths, captures, err := repeatReadIR(opt.RepeatCount, numdev, opt, func() ([]int, []uint32, error) {
		return readIR(d, numdev, opt, db, ids)
	})
	if err != nil {
		return nil, err
	}

	devices := make([]Device, numdev)
	for i := 0; i < numdev; i++ {
		dev := Device{IDCode: ids[i], IRLength: lengths[i], IRCapture: captures[i]}
		if db != nil {
			if part, found := db.Lookup(ids[i]); found {
				dev.Part = part
				dev.KnownPart = true
			}
		}
		devices[i] = dev
	}
	return &Chain{Devices: devices}, nil
}

// repeatRead runs read RepeatCount times and requires every result to be
// identical, per spec.md §4.F step 1 ("Repeat 4x and require identical
// results; otherwise fail with InconsistentRead").
func repeatRead(count int, operation string, read func() ([]uint32, error)) ([]uint32, error) {
	first, err := read()
	if err != nil {
		return nil, err
	}
	for i := 1; i < count; i++ {
		again, err := read()
		if err != nil {
			return nil, err
		}
		if !equalUint32(first, again) {
			return nil, &InconsistentRead{Operation: operation}
		}
	}
	return first, nil
}

func repeatReadIR(count, numdev int, opt Options, read func() ([]int, []uint32, error)) ([]int, []uint32, error) {
	firstLengths, firstCaptures, err := read()
	if err != nil {
		return nil, nil, err
	}
	for i := 1; i < count; i++ {
		lengths, captures, err := read()
		if err != nil {
			return nil, nil, err
		}
		if !equalInt(lengths, firstLengths) || !equalUint32(captures, firstCaptures) {
			return nil, nil, &InconsistentRead{Operation: "IR"}
		}
	}
	return firstLengths, firstCaptures, nil
}

func equalUint32(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalInt(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// readIDCodes implements spec.md §4.F step 1: reset, enter shift_dr, and
// shift a single marker bit followed by zeros for a window that doubles
// until the marker flushes back out with room to spare. Everything before
// the marker is the real IDCODE/BYPASS capture; decodeIDs never has to
// guess where the chain ends, because the marker tells it exactly.
func readIDCodes(d transport.Driver, opt Options) ([]uint32, error) {
	capacityDevices := opt.MinDeviceCapacity
	guard := 32
	for {
		window := capacityDevices*32 + guard
		sm, err := resetAndEnter(d, tap.StateShiftDR)
		if err != nil {
			return nil, err
		}
		raw, err := shiftMarker(d, sm, window)
		if err != nil {
			return nil, err
		}
		if err := checkStuck(raw, "IDCODE"); err != nil {
			return nil, err
		}

		if m, found := findMarker(raw); found && m+guard < window {
			if ids, ok := decodeIDs(raw[:m]); ok {
				return ids, nil
			}
		}

		capacityDevices *= 2
		if capacityDevices > opt.MaxDeviceCapacity {
			return nil, &ChainTooLong{Max: opt.MaxDeviceCapacity}
		}
	}
}

// readIR implements spec.md §4.F steps 2-3: shift a marker bit through the
// instruction register, take everything before it as the real capture, and
// enumerate the length partition consistent with the parts database.
func readIR(d transport.Driver, numdev int, opt Options, db *parts.Database, ids []uint32) ([]int, []uint32, error) {
	guard := opt.MaxIRBits
	window := numdev*opt.MaxIRBits + guard
	sm, err := resetAndEnter(d, tap.StateShiftIR)
	if err != nil {
		return nil, nil, err
	}
	raw, err := shiftMarker(d, sm, window)
	if err != nil {
		return nil, nil, err
	}
	if err := checkStuck(raw, "IR"); err != nil {
		return nil, nil, err
	}

	m, found := findMarker(raw)
	if !found || m+guard >= window {
		return nil, nil, fmt.Errorf("chain: instruction register longer than %d bits per device", opt.MaxIRBits)
	}
	real := raw[:m]

	candidates, err := findILengths(real, numdev, opt.MinIRBits, opt.MaxIRBits)
	if err != nil {
		return nil, nil, err
	}
	candidates, err = constrainByParts(candidates, ids, db)
	if err != nil {
		return nil, nil, err
	}
	if len(candidates) != 1 {
		return nil, nil, &AmbiguousChain{Candidates: len(candidates)}
	}
	return candidates[0].lengths, candidates[0].captures, nil
}
