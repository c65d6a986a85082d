package trace

import (
	"strconv"
	"strings"
	"unicode"
)

// Dialect identifies which of the two text trace formats a line uses.
type Dialect int

const (
	// DialectNone marks a line that was skipped before dialect detection (empty).
	DialectNone Dialect = iota
	// DialectBlock is the whitespace-separated format:
	// <field0> <op> <sectorOffset> ... with op in {RS, WS, R, W} and the offset
	// in 512-byte sectors.
	DialectBlock
	// DialectCSV is the comma-separated format with at least five fields:
	// field[3] holds the request type and field[4] a byte offset that may carry
	// a fractional part.
	DialectCSV
)

func (d Dialect) String() string {
	switch d {
	case DialectBlock:
		return "block"
	case DialectCSV:
		return "csv"
	default:
		return "none"
	}
}

const (
	blockSize  = 4096
	sectorSize = 512
	// sectorsPerBlock rebases 512-byte sector offsets onto 4096-byte blocks.
	sectorsPerBlock = blockSize / sectorSize
)

// blockOps lists the op field values accepted by the whitespace dialect.
// Matching is case-sensitive.
var blockOps = map[string]bool{
	"RS": true,
	"WS": true,
	"R":  true,
	"W":  true,
}

// isTraceSpace reports whether r separates or pads trace fields: Unicode
// white space plus the zero-width no-break space U+FEFF, excluding U+0085.
func isTraceSpace(r rune) bool {
	return r == '\uFEFF' || (r != '\u0085' && unicode.IsSpace(r))
}

func trimTraceSpace(s string) string {
	return strings.TrimFunc(s, isTraceSpace)
}

// Sniff returns the dialect ParseLine would use for line. Any comma selects
// the CSV dialect; otherwise the whitespace dialect is attempted.
func Sniff(line string) Dialect {
	line = trimTraceSpace(line)
	if line == "" {
		return DialectNone
	}
	if strings.Contains(line, ",") {
		return DialectCSV
	}
	return DialectBlock
}

// ParseLine decodes one trace line. ok is false when the line is empty or does
// not match its sniffed dialect (too few fields, unknown op, non-numeric
// offset); such lines are skipped by callers and never counted.
func ParseLine(line string) (ev Event, ok bool) {
	ev, _, ok = parseLine(line)
	return ev, ok
}

func parseLine(line string) (Event, Dialect, bool) {
	line = trimTraceSpace(line)
	d := Sniff(line)
	switch d {
	case DialectCSV:
		ev, ok := parseCSV(line)
		return ev, d, ok
	case DialectBlock:
		ev, ok := parseBlock(line)
		return ev, d, ok
	default:
		return Event{}, d, false
	}
}

func parseBlock(line string) (Event, bool) {
	fields := strings.FieldsFunc(line, isTraceSpace)
	if len(fields) < 3 {
		return Event{}, false
	}
	op := fields[1]
	if !blockOps[op] {
		return Event{}, false
	}
	sector, ok := parseOffset(fields[2])
	if !ok {
		return Event{}, false
	}
	return Event{
		LBA:   sector / sectorsPerBlock,
		Write: strings.Contains(op, "W"),
	}, true
}

func parseCSV(line string) (Event, bool) {
	fields := strings.Split(line, ",")
	if len(fields) < 5 {
		return Event{}, false
	}
	offset, _, _ := strings.Cut(fields[4], ".")
	n, ok := parseOffset(offset)
	if !ok {
		return Event{}, false
	}
	return Event{
		LBA:   n / blockSize,
		Write: strings.Contains(strings.ToLower(fields[3]), "write"),
	}, true
}

// parseOffset decodes an offset field. Padding is trimmed and an empty field
// is zero. Decimal digits may carry a leading '+'; unsigned 0x, 0o and 0b
// prefixes select hex, octal and binary. Negative values, exponents, digit
// separators and values beyond 64 bits are rejected.
func parseOffset(s string) (uint64, bool) {
	s = trimTraceSpace(s)
	if s == "" {
		return 0, true
	}
	base := 10
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
	}
	if base != 10 {
		s = s[2:]
	} else if s[0] == '+' {
		s = s[1:]
	}
	// ParseUint with an explicit base accepts neither signs nor underscores.
	if s == "" || s[0] == '+' || s[0] == '-' {
		return 0, false
	}
	n, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseStats counts parser outcomes per dialect.
type ParseStats struct {
	Accepted map[Dialect]int64
	Skipped  map[Dialect]int64
}

// Total returns the number of accepted and skipped lines across dialects.
func (s ParseStats) Total() (accepted, skipped int64) {
	for _, n := range s.Accepted {
		accepted += n
	}
	for _, n := range s.Skipped {
		skipped += n
	}
	return accepted, skipped
}

// Parser wraps ParseLine with outcome counters. The zero value is not ready
// for use; call NewParser.
type Parser struct {
	stats ParseStats
}

// NewParser returns a Parser with empty counters.
func NewParser() *Parser {
	return &Parser{stats: ParseStats{
		Accepted: make(map[Dialect]int64),
		Skipped:  make(map[Dialect]int64),
	}}
}

// Parse decodes line like ParseLine and records the outcome.
func (p *Parser) Parse(line string) (Event, bool) {
	ev, d, ok := parseLine(line)
	if ok {
		p.stats.Accepted[d]++
	} else {
		p.stats.Skipped[d]++
	}
	return ev, ok
}

// Stats returns the counters accumulated so far.
func (p *Parser) Stats() ParseStats {
	return p.stats
}
