// Package tokenizer splits a single pasted line into trimmed, non-empty fields.
package tokenizer

import (
	"encoding/csv"
	"regexp"
	"strings"
)

// Delimiter identifies how the fields of a line are separated.
type Delimiter string

const (
	Tab         Delimiter = "tab"
	Pipe        Delimiter = "pipe"
	Comma       Delimiter = "comma"
	MultiSpace  Delimiter = "multi_space"
	SingleSpace Delimiter = "single_space"
	None        Delimiter = ""
)

// DefaultDelimiters is the detection priority used when none is configured.
var DefaultDelimiters = []Delimiter{Tab, Pipe, Comma, MultiSpace, SingleSpace}

var multiSpacePattern = regexp.MustCompile(` {2,}`)

// IsWhitespace reports whether fields are separated by spaces rather than a symbol.
func (d Delimiter) IsWhitespace() bool {
	return d == MultiSpace || d == SingleSpace
}

// Rune returns the separator for the symbol delimiters, or 0.
func (d Delimiter) Rune() rune {
	switch d {
	case Tab:
		return '\t'
	case Pipe:
		return '|'
	case Comma:
		return ','
	default:
		return 0
	}
}

// Split breaks a line into fields. It never fails: a line without the
// delimiter comes back as a single token, an empty line as no tokens.
func Split(line string, d Delimiter) []string {
	var raw []string

	switch d {
	case Tab, Pipe, Comma:
		raw = splitQuoted(line, d.Rune())
	case MultiSpace:
		raw = multiSpacePattern.Split(line, -1)
	case SingleSpace:
		raw = strings.Split(line, " ")
	default:
		raw = []string{line}
	}

	return clean(raw)
}

// splitQuoted uses the CSV reader so quoted cells keep embedded separators.
func splitQuoted(line string, sep rune) []string {
	reader := csv.NewReader(strings.NewReader(line))
	reader.Comma = sep
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	record, err := reader.Read()
	if err != nil {
		return strings.Split(line, string(sep))
	}
	return record
}

func clean(raw []string) []string {
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		tok = strings.TrimSpace(tok)
		if tok == "" || isSeparatorOnly(tok) {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// isSeparatorOnly reports tokens like "-" or ":" that only glue a name to a price.
func isSeparatorOnly(tok string) bool {
	for _, r := range tok {
		switch r {
		case '-', '–', '—', ':', '=':
		default:
			return false
		}
	}
	return true
}
