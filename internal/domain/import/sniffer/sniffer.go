// Package sniffer provides automatic detection of pasted price-list formats.
// It tells JSON, delimited tables and freeform text apart, picks the delimiter,
// and fingerprints the first row so repeated layouts can be recognized.
package sniffer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/FACorreiaa/billing-intake/internal/domain/import/tokenizer"
)

// Kind is the detected document shape.
type Kind string

const (
	KindEmpty    Kind = "empty"
	KindJSON     Kind = "json"
	KindTabular  Kind = "tabular"
	KindFreeform Kind = "freeform"
)

// jsonContainerKeys are the object fields that may wrap the item array.
var jsonContainerKeys = []string{"data", "items", "services"}

// Format holds the detected configuration for a document
type Format struct {
	Kind        Kind                `json:"kind"`
	Delimiter   tokenizer.Delimiter `json:"delimiter,omitempty"`
	FirstLine   int                 `json:"first_line"`            // Index of the line that decided the delimiter
	Fingerprint string              `json:"fingerprint,omitempty"` // SHA256 of the normalized first row
}

// Line is a cleaned, non-empty line. Index counts non-empty lines from zero.
type Line struct {
	Index int
	Text  string
}

// Sniff classifies the document. Delimiters are tried in the given priority
// order; the first one that splits some line into two or more tokens wins
// for the whole document.
func Sniff(text string, delimiters []tokenizer.Delimiter) Format {
	if strings.TrimSpace(text) == "" {
		return Format{Kind: KindEmpty}
	}

	if IsJSON(text) {
		return Format{Kind: KindJSON}
	}

	if len(delimiters) == 0 {
		delimiters = tokenizer.DefaultDelimiters
	}

	lines := Lines(text)
	for _, d := range delimiters {
		for _, line := range lines {
			if len(tokenizer.Split(line.Text, d)) < 2 {
				continue
			}
			first := tokenizer.Split(lines[0].Text, d)
			return Format{
				Kind:        KindTabular,
				Delimiter:   d,
				FirstLine:   line.Index,
				Fingerprint: generateFingerprint(first),
			}
		}
	}

	return Format{Kind: KindFreeform}
}

// IsJSON reports whether text is a JSON array, or an object carrying an
// array under one of the known container keys.
func IsJSON(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || (trimmed[0] != '[' && trimmed[0] != '{') {
		return false
	}

	var root any
	if err := json.Unmarshal([]byte(trimmed), &root); err != nil {
		return false
	}

	switch v := root.(type) {
	case []any:
		return true
	case map[string]any:
		_, ok := ContainerArray(v)
		return ok
	default:
		return false
	}
}

// ContainerArray returns the first array found under a known container key.
func ContainerArray(obj map[string]any) ([]any, bool) {
	for _, key := range jsonContainerKeys {
		if arr, ok := obj[key].([]any); ok {
			return arr, true
		}
	}
	return nil, false
}

// Lines splits text into cleaned, non-empty lines.
func Lines(text string) []Line {
	raw := strings.Split(text, "\n")
	lines := make([]Line, 0, len(raw))

	for i, l := range raw {
		if i == 0 {
			l = strings.TrimPrefix(l, "\ufeff")
		}
		l = cleanLine(l)
		if l == "" {
			continue
		}
		lines = append(lines, Line{Index: len(lines), Text: l})
	}

	return lines
}

// cleanLine strips carriage returns and surrounding blanks while keeping tabs
// between fields intact.
func cleanLine(line string) string {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return ""
	}
	return strings.Trim(line, " \u00a0")
}

// generateFingerprint creates a unique hash from the first row's tokens
func generateFingerprint(tokens []string) string {
	// Normalize tokens: lowercase, drop non-alphanumerics
	var normalized []string
	for _, h := range tokens {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	// Join and hash
	joined := strings.Join(normalized, "|")
	hash := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(hash[:])
}
