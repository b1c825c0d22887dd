package parts

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tapwalk/jtaghost/pkg/idcode"
)

// Database is a loaded parts database: every IDCode pattern's wildcards are
// expanded into byIDCode at load time, so Lookup is a single map query.
type Database struct {
	byIDCode      map[uint32]Part
	manufacturers map[uint16]string
}

// NewDatabase returns an empty database. The built-in JEP106 table (see
// teacher pkg/idcode/jep106.go) always backs ManufacturerName, so the
// database is useful for manufacturer lookups even before LoadManufacturers
// is called.
func NewDatabase() *Database {
	return &Database{byIDCode: make(map[uint32]Part), manufacturers: make(map[uint16]string)}
}

// LoadPartIndex parses a partindex.txt-format stream: whitespace-separated
// triples `<idcode pattern over {0,1,x}> <ir_capture pattern over {0,1,x}>
// <part name...>`, '#' starting a comment, blank lines ignored.
func (d *Database) LoadPartIndex(r io.Reader) error {
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 3 {
			return fmt.Errorf("parts: partindex line %d: expected idcode, ir_capture, name", line)
		}
		idPattern, irPattern := fields[0], fields[1]
		name := strings.Join(fields[2:], " ")
		if len(idPattern) != 32 {
			return fmt.Errorf("parts: partindex line %d: idcode pattern must be 32 characters, got %d", line, len(idPattern))
		}

		literals, err := expandWildcards(idPattern)
		if err != nil {
			return fmt.Errorf("parts: partindex line %d: %w", line, err)
		}
		part := Part{
			IDCodePattern:    idPattern,
			IRLength:         len(irPattern),
			IRCapturePattern: irPattern,
			Name:             name,
		}
		for _, lit := range literals {
			code, err := parseIDCodeLiteral(lit)
			if err != nil {
				return fmt.Errorf("parts: partindex line %d: %w", line, err)
			}
			parsed := idcode.ParseIDCode(code)
			entry := part
			entry.Manufacturer = d.ManufacturerName(parsed.ManufacturerCode)
			entry.Version = parsed.Version
			entry.PartNumber = parsed.PartNumber
			d.byIDCode[code] = entry
		}
	}
	return sc.Err()
}

// LoadManufacturers parses a manufacturers.txt-format stream: `<11-bit code
// in binary> <manufacturer name...>` per line.
func (d *Database) LoadManufacturers(r io.Reader) error {
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return fmt.Errorf("parts: manufacturers line %d: expected code and name", line)
		}
		code, err := strconv.ParseUint(fields[0], 2, 16)
		if err != nil {
			return fmt.Errorf("parts: manufacturers line %d: %w", line, err)
		}
		d.manufacturers[uint16(code)] = strings.Join(fields[1:], " ")
	}
	return sc.Err()
}

// Lookup returns the part whose (possibly wildcarded) IDCode pattern
// matched raw at load time, if any.
func (d *Database) Lookup(raw uint32) (Part, bool) {
	p, ok := d.byIDCode[raw]
	return p, ok
}

// ManufacturerName resolves an 11-bit JEP106 code, preferring an explicitly
// loaded manufacturers.txt entry and falling back to the built-in table so
// the database stays useful with no data files present.
func (d *Database) ManufacturerName(code uint16) string {
	if name, ok := d.manufacturers[code]; ok {
		return name
	}
	if m, ok := idcode.LookupManufacturer(code); ok {
		return m.Name
	}
	return fmt.Sprintf("Unknown (0x%03X)", code)
}

// Len reports the number of expanded IDCode literals in the database.
func (d *Database) Len() int { return len(d.byIDCode) }
