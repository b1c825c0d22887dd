package chain

import (
	"fmt"

	"github.com/tapwalk/jtaghost/pkg/parts"
)

// decodeIDs parses a chronological IDCODE/BYPASS bit stream per spec.md
// §4.F step 1: a leading 1 introduces a 32-bit IDCODE (the 32 bits
// including that leading one, packed LSB-first starting at the marker), a
// leading 0 is a single-bit BYPASS device (IDCode 0). ok is false if a
// leading 1 does not have 32 bits available before the stream ends, meaning
// the read capacity was too small to hold the whole chain.
func decodeIDs(bits []bool) (ids []uint32, ok bool) {
	i := 0
	for i < len(bits) {
		if !bits[i] {
			ids = append(ids, 0)
			i++
			continue
		}
		if i+32 > len(bits) {
			return nil, false
		}
		var v uint32
		for k := 0; k < 32; k++ {
			if bits[i+k] {
				v |= 1 << uint(k)
			}
		}
		ids = append(ids, v)
		i += 32
	}
	return ids, len(ids) > 0
}

// combinations returns every way to choose k items from items, preserving
// relative order, grounded on discover.py's use of itertools.combinations
// to enumerate candidate instruction-length partitions.
func combinations(items []int, k int) [][]int {
	if k < 0 || k > len(items) {
		return nil
	}
	if k == 0 {
		return [][]int{{}}
	}
	var out [][]int
	var pick func(start int, chosen []int)
	pick = func(start int, chosen []int) {
		if len(chosen) == k {
			out = append(out, append([]int(nil), chosen...))
			return
		}
		for i := start; i < len(items); i++ {
			pick(i+1, append(chosen, items[i]))
		}
	}
	pick(0, nil)
	return out
}

// candidate is one surviving guess at how the combined instruction register
// read partitions into per-device lengths and capture values.
type candidate struct {
	lengths  []int
	captures []uint32
}

// findILengths enumerates candidate instruction-length partitions of a
// real (echo-trimmed) IR capture stream, per spec.md §4.F step 2-3:
// positions of 1 bits are candidate device-boundary markers (every device's
// own capture vector has its LSB set), and every device's length must fall
// within [minIRBits, maxIRBits].
func findILengths(realBits []bool, numdev int, minIRBits, maxIRBits int) ([]candidate, error) {
	var ones []int
	for i, b := range realBits {
		if b {
			ones = append(ones, i)
		}
	}
	if len(ones) == 0 {
		return nil, fmt.Errorf("chain: empty instruction register read")
	}
	if ones[0] != 0 {
		return nil, fmt.Errorf("chain: instruction register stream does not start with a device marker bit")
	}
	total := len(realBits)

	var boundSets [][]int
	if numdev == 1 {
		boundSets = [][]int{{0, total}}
	} else {
		interior := ones[1:]
		if len(interior) < numdev-1 {
			return nil, fmt.Errorf("chain: instruction register too short for %d device(s)", numdev)
		}
		for _, combo := range combinations(interior, numdev-1) {
			boundSets = append(boundSets, append(append([]int{0}, combo...), total))
		}
	}

	var out []candidate
	for _, bounds := range boundSets {
		lengths := make([]int, numdev)
		captures := make([]uint32, numdev)
		ok := true
		for i := 0; i < numdev; i++ {
			length := bounds[i+1] - bounds[i]
			if length < minIRBits || length > maxIRBits {
				ok = false
				break
			}
			lengths[i] = length
			captures[i] = packLSBFirst(realBits[bounds[i]:bounds[i+1]])
		}
		if ok {
			out = append(out, candidate{lengths: lengths, captures: captures})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("chain: no instruction-length partition satisfies the configured length bounds")
	}
	return out, nil
}

func packLSBFirst(bits []bool) uint32 {
	var v uint32
	for i, b := range bits {
		if b {
			v |= 1 << uint(i)
		}
	}
	return v
}

// constrainByParts discards candidates where a known device's capture value
// isn't among that part's possible_ir values, per spec.md §4.F step 3.
// Devices with no parts-database match are unconstrained (an "unknown
// part", per the teacher's LookupError semantics, never eliminates a
// candidate on its own).
func constrainByParts(candidates []candidate, ids []uint32, db *parts.Database) ([]candidate, error) {
	if db == nil || len(candidates) <= 1 {
		return candidates, nil
	}
	var survivors []candidate
	for _, c := range candidates {
		ok := true
		for i, id := range ids {
			part, found := db.Lookup(id)
			if !found {
				continue
			}
			possible, err := part.PossibleIR()
			if err != nil {
				return nil, err
			}
			if len(possible) == 0 {
				continue
			}
			matched := false
			for _, p := range possible {
				if p.Length == c.lengths[i] && p.Value == c.captures[i] {
					matched = true
					break
				}
			}
			if !matched {
				ok = false
				break
			}
		}
		if ok {
			survivors = append(survivors, c)
		}
	}
	if len(survivors) == 0 {
		return candidates, nil
	}
	return survivors, nil
}
