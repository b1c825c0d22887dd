package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// configFileLexer tokenises a KEY = value configuration file: '#' comments
// to end of line, blank lines ignored, one assignment per line. Grounded on
// teacher pkg/bsdl/lexer.go's lexer.MustSimple usage, trimmed to the much
// smaller grammar this file format needs.
var configFileLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Newline", Pattern: `\r?\n`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Assign", Pattern: `=`},
	{Name: "Value", Pattern: `[^\n#]+`},
})

// assignment is one KEY = value line. A value starting with a letter (e.g.
// ftdi, false) lexes as Ident, so the value accepts Ident and Value tokens,
// concatenated.
type assignment struct {
	Key   string `@Ident Assign`
	Value string `@(Ident | Value)+`
}

// configFile is the top-level grammar: a sequence of assignments, one per
// line, interleaved with bare newlines so blank lines (and comment-only
// lines, already stripped by Elide) are simply skipped rather than
// requiring every line to hold an assignment.
type configFile struct {
	Assignments []*assignment `( @@ | Newline )*`
}

var fileParser = participle.MustBuild[configFile](
	participle.Lexer(configFileLexer),
	participle.Elide("Comment", "Whitespace"),
)

// LoadFile parses a KEY = value configuration file and applies every
// assignment via Set, grounded on userconfig.py's loadfile (which execs the
// file as Python into the config's attribute dict; this module uses a real
// grammar instead of an interpreter for the same KEY=value surface).
func (c *Config) LoadFile(r io.Reader) error {
	parsed, err := fileParser.Parse("", r)
	if err != nil {
		return fmt.Errorf("config: parse error: %w", err)
	}
	for _, a := range parsed.Assignments {
		key := strings.ToUpper(a.Key)
		value := strings.TrimSpace(a.Value)
		if err := c.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}

// LoadFilePath opens path and loads it via LoadFile.
func (c *Config) LoadFilePath(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return c.LoadFile(f)
}
