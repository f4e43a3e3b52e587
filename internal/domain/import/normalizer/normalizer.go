// Package normalizer handles price, identifier and description cleanup.
// Converts the loose strings found in pasted price lists into canonical values.
package normalizer

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPrice  = errors.New("invalid price format")
	ErrNegativePrice = errors.New("price must not be negative")
)

// Price is a parsed amount in major units plus any currency the raw text named.
type Price struct {
	Amount   float64
	Currency string
}

// currencyMarks maps symbols and ISO codes that may wrap an amount.
var currencyMarks = []struct {
	mark     string
	currency string
}{
	{"USD", "USD"},
	{"EUR", "EUR"},
	{"GBP", "GBP"},
	{"US$", "USD"},
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
}

var spacePattern = regexp.MustCompile(`\s+`)

// ParsePrice converts a raw price token ("$1,200.50", "0.02 USD", "€5")
// into an amount in major units. Currency is empty when the token carried none.
func ParsePrice(raw string) (Price, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return Price{}, ErrInvalidPrice
	}

	// Drop per-unit suffixes such as "$0.02/GB"
	if idx := strings.Index(cleaned, "/"); idx > 0 {
		cleaned = strings.TrimSpace(cleaned[:idx])
	}

	cleaned, currency := stripCurrencyMarks(cleaned)
	cleaned = normalizeSeparators(cleaned)
	if cleaned == "" {
		return Price{}, ErrInvalidPrice
	}

	for _, r := range cleaned {
		if !unicode.IsDigit(r) && r != '.' && r != '-' && r != '+' {
			return Price{}, ErrInvalidPrice
		}
	}

	val, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
		return Price{}, ErrInvalidPrice
	}
	if val < 0 {
		return Price{}, ErrNegativePrice
	}

	return Price{Amount: val, Currency: currency}, nil
}

// stripCurrencyMarks removes every leading and trailing currency mark, so
// "$5.00 USD" and "US$ 5" both reduce to the number. The first mark found
// names the currency.
func stripCurrencyMarks(s string) (string, string) {
	var currency string
	for {
		s = strings.TrimSpace(s)
		upper := strings.ToUpper(s)
		stripped := false
		for _, cm := range currencyMarks {
			switch {
			case strings.HasPrefix(upper, cm.mark):
				s = s[len(cm.mark):]
			case strings.HasSuffix(upper, cm.mark):
				s = s[:len(s)-len(cm.mark)]
			default:
				continue
			}
			if currency == "" {
				currency = cm.currency
			}
			stripped = true
			break
		}
		if !stripped {
			return s, currency
		}
	}
}

// normalizeSeparators rewrites the amount with "." as the decimal point.
// A comma followed by one or two trailing digits after any "." is a decimal
// comma ("0,02", "1.234,56"); otherwise commas group thousands ("1,200.50").
func normalizeSeparators(s string) string {
	comma := strings.LastIndex(s, ",")
	if comma >= 0 && comma > strings.LastIndex(s, ".") {
		frac := s[comma+1:]
		if n := len(frac); n >= 1 && n <= 2 && isDigits(frac) {
			s = strings.ReplaceAll(s[:comma], ".", "") + "." + frac
		}
	}
	return strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ToMinorUnits converts a major-unit price to cents, rounding half away from zero.
func ToMinorUnits(price float64) int64 {
	return decimal.NewFromFloat(price).Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts cents to a major-unit price.
func FromMinorUnits(cents float64) float64 {
	return decimal.NewFromFloat(cents).Shift(-2).InexactFloat64()
}

// MinorUnitsDecimal returns the exact amount in cents and whether it is a whole
// number of cents. Prices like 0.0004 need Stripe's unit_amount_decimal.
func MinorUnitsDecimal(price float64) (float64, bool) {
	cents := decimal.NewFromFloat(price).Shift(2)
	return cents.InexactFloat64(), cents.IsInteger()
}

// NormalizeEventName lowercases the name and replaces every non-alphanumeric
// rune with an underscore, e.g. "Storage Usage" -> "storage_usage".
func NormalizeEventName(raw string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return unicode.ToLower(r)
		}
		return '_'
	}, strings.TrimSpace(raw))
}

// CleanDescription normalizes free text for names and descriptions
func CleanDescription(raw string) string {
	// Trim whitespace
	result := strings.TrimSpace(raw)

	// Collapse multiple spaces
	return spacePattern.ReplaceAllString(result, " ")
}
