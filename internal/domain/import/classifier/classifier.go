// Package classifier maps the tokens of one line onto line-item fields.
// Classification is an ordered list of pure rules; the first rule that
// matches or skips a row decides its fate.
package classifier

import (
	"regexp"
	"strings"

	"github.com/FACorreiaa/billing-intake/internal/domain/common"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/normalizer"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/tokenizer"
)

// Outcome is the verdict of a rule on a row.
type Outcome int

const (
	NoMatch Outcome = iota // rule does not apply, try the next one
	Matched                // rule produced a partial item
	Skip                   // row is known not to be an item (e.g. a header)
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case Skip:
		return "skip"
	default:
		return "no_match"
	}
}

// Row is one tokenized line.
type Row struct {
	Raw       string
	Tokens    []string
	Index     int
	Delimiter tokenizer.Delimiter
}

// Partial holds the raw fields a rule pulled out of a row. The price is kept
// as text; the assembler owns parsing and defaulting.
type Partial struct {
	Name           string
	PriceToken     string
	EventName      string
	Unit           string
	Description    string
	Interval       string
	Type           common.BillingType
	UsageType      common.UsageType
	AggregateUsage string
	Rule           string
	Confidence     float64
}

// Rule is a named classification step.
type Rule struct {
	Name  string
	Apply func(Row) (Partial, Outcome)
}

// Classifier runs rules in priority order.
type Classifier struct {
	rules []Rule
}

// New builds a classifier with the default rule order for cfg.
func New(cfg Config) *Classifier {
	return NewWithRules(DefaultRules(cfg)...)
}

// NewWithRules builds a classifier from an explicit rule list.
func NewWithRules(rules ...Rule) *Classifier {
	return &Classifier{rules: rules}
}

// DefaultRules returns header, whitespace freeform, wide row, pair and
// single-token freeform rules, in that order.
func DefaultRules(cfg Config) []Rule {
	cfg = cfg.withDefaults()
	return []Rule{
		HeaderRule(cfg),
		WhitespaceFreeformRule(cfg),
		WideRowRule(cfg),
		PairRule(cfg),
		FreeformRule(cfg),
	}
}

// Rules returns the configured rule names, mostly for logging.
func (c *Classifier) Rules() []string {
	names := make([]string, len(c.rules))
	for i, r := range c.rules {
		names[i] = r.Name
	}
	return names
}

// Classify returns the first decisive rule result. Rows no rule claims come
// back as NoMatch and are dropped by the caller.
func (c *Classifier) Classify(row Row) (Partial, Outcome) {
	for _, rule := range c.rules {
		p, outcome := rule.Apply(row)
		if outcome == NoMatch {
			continue
		}
		if outcome == Matched {
			p.Rule = rule.Name
			InferType(&p)
		}
		return p, outcome
	}
	return Partial{}, NoMatch
}

// HeaderRule skips a first line that names columns instead of a service.
func HeaderRule(cfg Config) Rule {
	cfg = cfg.withDefaults()
	return Rule{
		Name: "header",
		Apply: func(row Row) (Partial, Outcome) {
			if cfg.IsHeader(row) {
				return Partial{}, Skip
			}
			return Partial{}, NoMatch
		},
	}
}

// WhitespaceFreeformRule reads space-delimited lines as "name price" before
// the positional rules get a chance to split multi-word names.
func WhitespaceFreeformRule(cfg Config) Rule {
	cfg = cfg.withDefaults()
	return Rule{
		Name: "whitespace_freeform",
		Apply: func(row Row) (Partial, Outcome) {
			if row.Delimiter != tokenizer.SingleSpace {
				return Partial{}, NoMatch
			}
			return matchFreeform(cfg, row.Raw, 0.7)
		},
	}
}

// WideRowRule handles rows of three or more tokens: name first, then the
// canonical price, an optional event name and an optional unit.
func WideRowRule(cfg Config) Rule {
	cfg = cfg.withDefaults()
	return Rule{
		Name: "wide_row",
		Apply: func(row Row) (Partial, Outcome) {
			tokens := row.Tokens
			if len(tokens) < 3 {
				return Partial{}, NoMatch
			}

			priceIdx := cfg.pickPrice(tokens[1:])
			if priceIdx < 0 {
				return Partial{}, NoMatch
			}
			priceIdx++ // offset for the name token

			p := Partial{
				Name:       tokens[0],
				PriceToken: tokens[priceIdx],
				Confidence: 0.9,
			}

			var extras []string
			for i, tok := range tokens[1:] {
				idx := i + 1
				if idx == priceIdx || cfg.isPriceToken(tok) || tok == "0" {
					continue
				}
				if interval, ok := intervalOf(tok); ok && p.Interval == "" {
					p.Interval = interval
					continue
				}
				if idx < priceIdx {
					switch {
					case p.EventName == "":
						p.EventName = tok
					case p.Unit == "":
						p.Unit = tok
					default:
						extras = append(extras, tok)
					}
					continue
				}
				if p.Unit == "" {
					p.Unit = tok
					continue
				}
				extras = append(extras, tok)
			}

			if len(extras) > 0 {
				p.Description = strings.Join(extras, " ")
			}
			return p, Matched
		},
	}
}

// PairRule handles exactly two tokens: name and price, in either order.
func PairRule(cfg Config) Rule {
	cfg = cfg.withDefaults()
	return Rule{
		Name: "pair",
		Apply: func(row Row) (Partial, Outcome) {
			if len(row.Tokens) != 2 {
				return Partial{}, NoMatch
			}

			name, price := row.Tokens[0], row.Tokens[1]
			if cfg.isPriceToken(name) && !cfg.isPriceToken(price) {
				name, price = price, name
			}

			return Partial{Name: name, PriceToken: price, Confidence: 0.85}, Matched
		},
	}
}

// FreeformRule matches "<name> [- ]$<price>" against single-token lines.
func FreeformRule(cfg Config) Rule {
	cfg = cfg.withDefaults()
	return Rule{
		Name: "freeform",
		Apply: func(row Row) (Partial, Outcome) {
			switch {
			case len(row.Tokens) == 1:
				return matchFreeform(cfg, row.Tokens[0], 0.6)
			case len(row.Tokens) > 1 && (row.Delimiter.IsWhitespace() || row.Delimiter == tokenizer.None):
				return matchFreeform(cfg, row.Raw, 0.6)
			default:
				return Partial{}, NoMatch
			}
		},
	}
}

func matchFreeform(cfg Config, text string, confidence float64) (Partial, Outcome) {
	m := cfg.FreeformPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return Partial{}, NoMatch
	}

	name := strings.TrimSpace(m[1])
	p := Partial{Name: name, PriceToken: m[2], Confidence: confidence}
	if interval, ok := intervalOf(lastWord(name)); ok {
		p.Interval = interval
	}
	return p, Matched
}

// InferType sets billing type and usage fields from the event name, unit
// and interval a rule found.
func InferType(p *Partial) {
	if p.EventName != "" {
		p.EventName = normalizer.NormalizeEventName(p.EventName)
	}

	switch {
	case p.EventName != "" && p.Unit != "":
		p.Type = common.BillingTypeMetered
		p.UsageType = common.UsageTypeMetered
		p.AggregateUsage = common.AggregateUsageSum
	case p.Interval != "":
		p.Type = common.BillingTypeRecurring
		p.UsageType = common.UsageTypeLicensed
	default:
		p.Type = common.BillingTypeOneTime
	}
}

var intervalPatterns = []struct {
	pattern  *regexp.Regexp
	interval string
}{
	{regexp.MustCompile(`(?i)^(/|per\s+)?(mo|month|monthly)$`), "month"},
	{regexp.MustCompile(`(?i)^(/|per\s+)?(yr|year|yearly|annual|annually)$`), "year"},
	{regexp.MustCompile(`(?i)^(/|per\s+)?(wk|week|weekly)$`), "week"},
	{regexp.MustCompile(`(?i)^(/|per\s+)?(day|daily)$`), "day"},
}

// intervalOf recognizes recurring-interval words such as "monthly" or "/yr".
func intervalOf(tok string) (string, bool) {
	tok = strings.Trim(strings.TrimSpace(tok), "()")
	for _, ip := range intervalPatterns {
		if ip.pattern.MatchString(tok) {
			return ip.interval, true
		}
	}
	return "", false
}

func lastWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
