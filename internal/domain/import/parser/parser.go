// Package parser is the single entry point for turning pasted text, OCR
// output or extracted file text into billing line items.
package parser

import (
	"github.com/FACorreiaa/billing-intake/internal/domain/common"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/assembler"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/classifier"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/sniffer"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/tokenizer"
)

// Strategy names the pass that produced the items.
type Strategy string

const (
	StrategyNone     Strategy = ""
	StrategyJSON     Strategy = "json"
	StrategyTabular  Strategy = "tabular"
	StrategyFreeform Strategy = "freeform"
)

// Options is the one configuration surface shared by every caller.
type Options struct {
	// Delimiters in detection priority order. Empty means tokenizer.DefaultDelimiters.
	Delimiters []tokenizer.Delimiter

	// Classifier tunes price shape, header detection and the price tie-break.
	Classifier classifier.Config

	// Rules replaces the default rule chain when non-empty.
	Rules []classifier.Rule

	// Defaults fill currency, source tag and recurring interval.
	Defaults assembler.Defaults
}

// Result is the outcome of one parse.
type Result struct {
	Items        []common.BillingLineItem `json:"items"`
	Format       sniffer.Format           `json:"format"`
	Strategy     Strategy                 `json:"strategy"`
	LinesTotal   int                      `json:"lines_total"`
	LinesSkipped int                      `json:"lines_skipped"`
}

// Parser is immutable after construction and safe for concurrent use.
type Parser struct {
	opts       Options
	classifier *classifier.Classifier
}

// New builds a parser for opts.
func New(opts Options) *Parser {
	if len(opts.Delimiters) == 0 {
		opts.Delimiters = tokenizer.DefaultDelimiters
	}

	c := classifier.New(opts.Classifier)
	if len(opts.Rules) > 0 {
		c = classifier.NewWithRules(opts.Rules...)
	}

	return &Parser{opts: opts, classifier: c}
}

// Parse runs the package default parser.
func Parse(text string) (*Result, error) {
	return New(Options{}).Parse(text)
}

// WithSource returns a copy of the parser that tags items with source.
func (p *Parser) WithSource(source string) *Parser {
	cp := *p
	cp.opts.Defaults.Source = source
	return &cp
}

// WithCurrency returns a copy of the parser that prices every item in code,
// ignoring symbols, ISO suffixes and JSON currency fields in the document.
func (p *Parser) WithCurrency(code string) *Parser {
	cp := *p
	cp.opts.Defaults.CurrencyOverride = code
	return &cp
}

// Sniff reports how Parse would read text without classifying any row.
func (p *Parser) Sniff(text string) sniffer.Format {
	return sniffer.Sniff(text, p.opts.Delimiters)
}

// Parse sniffs the document and runs JSON, tabular and freeform passes in that
// order, keeping the first pass that yields items. Bad rows are dropped
// silently; common.ErrNoItemsFound is returned only when every pass is empty.
func (p *Parser) Parse(text string) (*Result, error) {
	format := sniffer.Sniff(text, p.opts.Delimiters)
	res := &Result{Format: format, Items: []common.BillingLineItem{}}

	if format.Kind == sniffer.KindEmpty {
		return res, common.ErrNoItemsFound
	}

	if format.Kind == sniffer.KindJSON {
		items, total, err := p.parseJSON(text)
		if err == nil && len(items) > 0 {
			res.Items = items
			res.Strategy = StrategyJSON
			res.LinesTotal = total
			res.LinesSkipped = total - len(items)
			return res, nil
		}
	}

	lines := sniffer.Lines(text)
	res.LinesTotal = len(lines)

	if format.Kind == sniffer.KindTabular {
		items, skipped := p.parseLines(lines, format.Delimiter)
		if len(items) > 0 {
			res.Items = items
			res.Strategy = StrategyTabular
			res.LinesSkipped = skipped
			return res, nil
		}
	}

	items, skipped := p.parseLines(lines, tokenizer.None)
	res.LinesSkipped = skipped
	if len(items) == 0 {
		return res, common.ErrNoItemsFound
	}

	res.Items = items
	res.Strategy = StrategyFreeform
	return res, nil
}

// parseLines classifies every line with delimiter d.
func (p *Parser) parseLines(lines []sniffer.Line, d tokenizer.Delimiter) ([]common.BillingLineItem, int) {
	items := make([]common.BillingLineItem, 0, len(lines))
	skipped := 0

	for _, line := range lines {
		row := classifier.Row{
			Raw:       line.Text,
			Tokens:    tokenizer.Split(line.Text, d),
			Index:     line.Index,
			Delimiter: d,
		}

		partial, outcome := p.classifier.Classify(row)
		if outcome != classifier.Matched {
			skipped++
			continue
		}

		item, ok := assembler.Assemble(partial, p.opts.Defaults)
		if !ok {
			skipped++
			continue
		}
		items = append(items, item)
	}

	return items, skipped
}
