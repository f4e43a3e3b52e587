package parser

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/FACorreiaa/billing-intake/internal/domain/common"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/assembler"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/classifier"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/normalizer"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/sniffer"
)

var ErrNotItemArray = errors.New("json document has no item array")

// Accepted spellings for each field, first match wins.
var (
	nameKeys        = []string{"name", "product", "service", "title"}
	priceKeys       = []string{"price", "amount", "unit_price", "unitPrice"}
	minorUnitKeys   = []string{"unit_amount", "unit_amount_decimal"}
	currencyKeys    = []string{"currency"}
	typeKeys        = []string{"type", "billing_type", "billingType"}
	descriptionKeys = []string{"description"}
	eventKeys       = []string{"event_name", "eventName", "meter_name", "meterName", "meter"}
	unitKeys        = []string{"unit", "unit_label", "unitLabel"}
	schemeKeys      = []string{"billing_scheme", "billingScheme"}
	intervalKeys    = []string{"interval"}
)

// parseJSON reads a top-level array or a {data|items|services: [...]} wrapper.
// It returns the items and the number of array elements seen.
func (p *Parser) parseJSON(text string) ([]common.BillingLineItem, int, error) {
	var root any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &root); err != nil {
		return nil, 0, err
	}

	var elements []any
	switch v := root.(type) {
	case []any:
		elements = v
	case map[string]any:
		arr, ok := sniffer.ContainerArray(v)
		if !ok {
			return nil, 0, ErrNotItemArray
		}
		elements = arr
	default:
		return nil, 0, ErrNotItemArray
	}

	items := make([]common.BillingLineItem, 0, len(elements))
	for _, el := range elements {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		if item, ok := p.jsonItem(obj); ok {
			items = append(items, item)
		}
	}

	return items, len(elements), nil
}

func (p *Parser) jsonItem(obj map[string]any) (common.BillingLineItem, bool) {
	partial := classifier.Partial{
		Name:        stringField(obj, nameKeys),
		PriceToken:  stringField(obj, priceKeys),
		EventName:   stringField(obj, eventKeys),
		Unit:        stringField(obj, unitKeys),
		Description: stringField(obj, descriptionKeys),
		Interval:    strings.ToLower(stringField(obj, intervalKeys)),
		Rule:        "json",
		Confidence:  1,
	}

	// Stripe-shaped exports carry cents in unit_amount
	if partial.PriceToken == "" {
		if cents, err := normalizer.ParsePrice(stringField(obj, minorUnitKeys)); err == nil {
			partial.PriceToken = formatFloat(normalizer.FromMinorUnits(cents.Amount))
		}
	}

	extras := assembler.Extras{Currency: stringField(obj, currencyKeys)}

	rawType := strings.ToLower(stringField(obj, typeKeys))
	if scheme, ok := parseScheme(stringField(obj, schemeKeys)); ok {
		extras.BillingScheme = scheme
	} else if scheme, ok := parseScheme(rawType); ok {
		// billing_type sometimes carries the scheme instead of the type
		extras.BillingScheme = scheme
		rawType = ""
	}

	if typ, ok := parseType(rawType); ok {
		partial.Type = typ
		if partial.EventName != "" {
			partial.EventName = normalizer.NormalizeEventName(partial.EventName)
		}
		switch typ {
		case common.BillingTypeMetered:
			partial.UsageType = common.UsageTypeMetered
			partial.AggregateUsage = common.AggregateUsageSum
		case common.BillingTypeRecurring:
			partial.UsageType = common.UsageTypeLicensed
		}
	} else {
		classifier.InferType(&partial)
	}

	if tiers, ok := obj["tiers"].([]any); ok {
		extras.Tiers = parseTiers(tiers)
		if len(extras.Tiers) > 0 && extras.BillingScheme == "" {
			extras.BillingScheme = common.BillingSchemeTiered
		}
		// A tiered item may omit the flat price; the first tier stands in
		if partial.PriceToken == "" && len(extras.Tiers) > 0 {
			partial.PriceToken = formatFloat(extras.Tiers[0].UnitAmount)
		}
	}

	return assembler.AssembleWith(partial, p.opts.Defaults, extras)
}

func parseType(raw string) (common.BillingType, bool) {
	switch strings.ReplaceAll(strings.ReplaceAll(raw, "-", "_"), " ", "_") {
	case "one_time", "onetime", "once":
		return common.BillingTypeOneTime, true
	case "recurring", "subscription", "licensed":
		return common.BillingTypeRecurring, true
	case "metered", "usage", "usage_based":
		return common.BillingTypeMetered, true
	default:
		return "", false
	}
}

func parseScheme(raw string) (common.BillingScheme, bool) {
	switch strings.ToLower(strings.ReplaceAll(raw, "-", "_")) {
	case "per_unit":
		return common.BillingSchemePerUnit, true
	case "tiered":
		return common.BillingSchemeTiered, true
	default:
		return "", false
	}
}

func parseTiers(raw []any) []common.PriceTier {
	tiers := make([]common.PriceTier, 0, len(raw))
	for _, el := range raw {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}

		unit, err := normalizer.ParsePrice(stringField(obj, []string{"unit_amount", "unitAmount", "price"}))
		if err != nil {
			continue
		}
		tier := common.PriceTier{UnitAmount: unit.Amount}

		if flat, err := normalizer.ParsePrice(stringField(obj, []string{"flat_amount", "flatAmount"})); err == nil {
			tier.FlatAmount = flat.Amount
		}
		upTo, err := strconv.ParseFloat(stringField(obj, []string{"up_to", "upTo"}), 64)
		if err == nil && upTo > 0 && !math.IsInf(upTo, 0) {
			tier.UpTo = int64(upTo)
		}

		tiers = append(tiers, tier)
	}
	return tiers
}

// stringField returns the first present key rendered as text. Numbers are
// formatted without exponent so they survive price parsing.
func stringField(obj map[string]any, keys []string) string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return formatFloat(v)
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return ""
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
