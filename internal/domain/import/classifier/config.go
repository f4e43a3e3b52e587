package classifier

import (
	"regexp"

	"github.com/FACorreiaa/billing-intake/internal/domain/import/normalizer"
)

// PriceSelection decides which price-shaped token of a wide row is the price.
type PriceSelection int

const (
	LastNonZeroPrice PriceSelection = iota
	FirstNonZeroPrice
)

var (
	// DefaultPricePattern matches a whole token that looks like an amount.
	DefaultPricePattern = regexp.MustCompile(`(?i)^(?:US\$|[$€£])?\s?\d[\d,]*(?:\.\d*)?(?:\s?(?:USD|EUR|GBP))?$`)

	// DefaultHeaderPattern flags a first token that names the service column.
	DefaultHeaderPattern = regexp.MustCompile(`(?i)service|product|item`)

	// DefaultHeaderWords flags column titles on a line with no amounts.
	DefaultHeaderWords = regexp.MustCompile(`(?i)^(name|price|amount|cost|rate|unit|unit price|event|meter|currency|description|type)$`)

	// DefaultFreeformPattern reads "<name> - $<price>" style lines.
	DefaultFreeformPattern = regexp.MustCompile(`^(.+?)[\s\-:–]+\$?(\d[\d,]*\.?\d*)$`)
)

// Config is the tuning surface shared by every rule.
type Config struct {
	PricePattern    *regexp.Regexp
	HeaderPattern   *regexp.Regexp
	HeaderWords     *regexp.Regexp
	FreeformPattern *regexp.Regexp
	PriceSelection  PriceSelection

	// IsHeader replaces the default header predicate when set.
	IsHeader func(Row) bool
}

// DefaultConfig returns the stock patterns.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.PricePattern == nil {
		c.PricePattern = DefaultPricePattern
	}
	if c.HeaderPattern == nil {
		c.HeaderPattern = DefaultHeaderPattern
	}
	if c.HeaderWords == nil {
		c.HeaderWords = DefaultHeaderWords
	}
	if c.FreeformPattern == nil {
		c.FreeformPattern = DefaultFreeformPattern
	}
	if c.IsHeader == nil {
		c.IsHeader = c.defaultIsHeader
	}
	return c
}

// defaultIsHeader only looks at the first line: a service-like first token,
// or column titles with no amount anywhere on the line.
func (c Config) defaultIsHeader(row Row) bool {
	if row.Index != 0 || len(row.Tokens) == 0 {
		return false
	}
	if c.HeaderPattern.MatchString(row.Tokens[0]) {
		return true
	}

	titled := false
	for _, tok := range row.Tokens {
		if c.isPriceToken(tok) {
			return false
		}
		if c.HeaderWords.MatchString(tok) {
			titled = true
		}
	}
	return titled
}

func (c Config) isPriceToken(tok string) bool {
	return c.PricePattern.MatchString(tok)
}

// isZeroPrice treats "0", "$0.00" and friends as placeholders, not prices.
func isZeroPrice(tok string) bool {
	p, err := normalizer.ParsePrice(tok)
	return err == nil && p.Amount == 0
}

// pickPrice returns the index of the canonical price in tokens, or -1.
func (c Config) pickPrice(tokens []string) int {
	found := -1
	for i, tok := range tokens {
		if !c.isPriceToken(tok) || isZeroPrice(tok) {
			continue
		}
		if c.PriceSelection == FirstNonZeroPrice {
			return i
		}
		found = i
	}
	return found
}
