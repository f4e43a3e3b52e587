// Package assembler turns classified fields into complete line items.
package assembler

import (
	"fmt"
	"strings"

	"github.com/FACorreiaa/billing-intake/internal/domain/common"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/classifier"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/normalizer"
)

// Defaults fill the fields a row did not carry. CurrencyOverride, when set,
// replaces every currency the document names.
type Defaults struct {
	Currency         string
	CurrencyOverride string
	Source           string
	Interval         string
}

// Extras are values only structured input (JSON) can supply.
type Extras struct {
	Currency      string
	BillingScheme common.BillingScheme
	Tiers         []common.PriceTier
}

func (d Defaults) withDefaults() Defaults {
	if d.Currency == "" {
		d.Currency = common.DefaultCurrency
	}
	if d.Source == "" {
		d.Source = common.SourcePasteParser
	}
	if d.Interval == "" {
		d.Interval = common.DefaultInterval
	}
	return d
}

// Assemble builds an item from a partial. It reports false when the row has
// no usable name or price, which callers treat as "drop silently".
func Assemble(p classifier.Partial, d Defaults) (common.BillingLineItem, bool) {
	return AssembleWith(p, d, Extras{})
}

// AssembleWith is Assemble plus explicit currency, scheme and tiers.
func AssembleWith(p classifier.Partial, d Defaults, x Extras) (common.BillingLineItem, bool) {
	d = d.withDefaults()

	name := normalizer.CleanDescription(strings.Trim(p.Name, `"'`))
	if name == "" {
		return common.BillingLineItem{}, false
	}

	price, err := normalizer.ParsePrice(p.PriceToken)
	if err != nil {
		return common.BillingLineItem{}, false
	}

	item := common.BillingLineItem{
		Name:           name,
		Price:          price.Amount,
		Currency:       pickCurrency(d.CurrencyOverride, x.Currency, price.Currency, d.Currency),
		Type:           p.Type,
		EventName:      p.EventName,
		Unit:           normalizer.CleanDescription(p.Unit),
		Description:    normalizer.CleanDescription(p.Description),
		BillingScheme:  common.BillingSchemePerUnit,
		UsageType:      p.UsageType,
		AggregateUsage: p.AggregateUsage,
		Source:         d.Source,
		Confidence:     p.Confidence,
	}

	if item.Type == "" {
		item.Type = common.BillingTypeOneTime
	}
	if item.Description == "" {
		item.Description = fmt.Sprintf(common.DescriptionTemplate, name)
	}

	if item.IsMetered() {
		if item.EventName == "" {
			item.EventName = normalizer.NormalizeEventName(name)
		}
		item.UsageType = common.UsageTypeMetered
		if item.AggregateUsage == "" {
			item.AggregateUsage = common.AggregateUsageSum
		}
	}
	if item.Type == common.BillingTypeRecurring && item.UsageType == "" {
		item.UsageType = common.UsageTypeLicensed
	}

	if item.IsRecurring() {
		item.Interval = p.Interval
		if item.Interval == "" {
			item.Interval = d.Interval
		}
	}

	if x.BillingScheme == common.BillingSchemeTiered && len(x.Tiers) > 0 {
		item.BillingScheme = common.BillingSchemeTiered
		item.Tiers = append([]common.PriceTier(nil), x.Tiers...)
	}

	return item, true
}

func pickCurrency(candidates ...string) string {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return strings.ToUpper(c)
		}
	}
	return common.DefaultCurrency
}
