package gateway

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/stripe/stripe-go/v76"

	"github.com/FACorreiaa/billing-intake/internal/domain/common"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/normalizer"
)

var (
	ErrInvalidItem   = errors.New("line item cannot be priced")
	ErrMeterRequired = errors.New("metered price needs a meter")
)

// Meter payload keys. Usage events must carry the customer under
// CustomerPayloadKey and the quantity under ValuePayloadKey.
const (
	CustomerPayloadKey = "stripe_customer_id"
	ValuePayloadKey    = "value"
)

// maxUnitLabel is Stripe's unit_label limit.
const maxUnitLabel = 12

// MeterParams builds the meter for a metered item.
func MeterParams(item common.BillingLineItem) (*stripe.BillingMeterParams, error) {
	if !item.IsMetered() || item.EventName == "" {
		return nil, fmt.Errorf("%w: %q is not metered", ErrInvalidItem, item.Name)
	}

	return &stripe.BillingMeterParams{
		DisplayName: stripe.String(item.Name),
		EventName:   stripe.String(item.EventName),
		DefaultAggregation: &stripe.BillingMeterDefaultAggregationParams{
			Formula: stripe.String(meterFormula(item.AggregateUsage)),
		},
		CustomerMapping: &stripe.BillingMeterCustomerMappingParams{
			Type:            stripe.String("by_id"),
			EventPayloadKey: stripe.String(CustomerPayloadKey),
		},
		ValueSettings: &stripe.BillingMeterValueSettingsParams{
			EventPayloadKey: stripe.String(ValuePayloadKey),
		},
	}, nil
}

// ProductParams builds the product an item is sold as.
func ProductParams(item common.BillingLineItem) *stripe.ProductParams {
	params := &stripe.ProductParams{
		Name: stripe.String(item.Name),
	}
	if item.Description != "" {
		params.Description = stripe.String(item.Description)
	}
	if item.Unit != "" {
		params.UnitLabel = stripe.String(truncate(item.Unit, maxUnitLabel))
	}
	if item.Source != "" {
		params.AddMetadata("source", item.Source)
	}
	return params
}

// PriceParams builds the price for an item attached to productID. meterID is
// required for metered items and ignored otherwise.
func PriceParams(item common.BillingLineItem, productID, meterID string) (*stripe.PriceParams, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: missing product", ErrInvalidItem)
	}
	if item.Price < 0 {
		return nil, fmt.Errorf("%w: negative price", ErrInvalidItem)
	}

	currency := strings.ToLower(item.Currency)
	if currency == "" {
		currency = strings.ToLower(common.DefaultCurrency)
	}

	params := &stripe.PriceParams{
		Product:  stripe.String(productID),
		Currency: stripe.String(currency),
		Nickname: stripe.String(item.Name),
	}
	params.AddMetadata("type", string(item.Type))
	if item.EventName != "" {
		params.AddMetadata("event_name", item.EventName)
	}

	interval := item.Interval
	if interval == "" {
		interval = common.DefaultInterval
	}

	switch item.Type {
	case common.BillingTypeMetered:
		if meterID == "" {
			return nil, fmt.Errorf("%w: %q", ErrMeterRequired, item.Name)
		}
		params.Recurring = &stripe.PriceRecurringParams{
			Interval:  stripe.String(interval),
			UsageType: stripe.String(string(stripe.PriceRecurringUsageTypeMetered)),
			Meter:     stripe.String(meterID),
		}
	case common.BillingTypeRecurring:
		params.Recurring = &stripe.PriceRecurringParams{
			Interval:  stripe.String(interval),
			UsageType: stripe.String(string(stripe.PriceRecurringUsageTypeLicensed)),
		}
	}

	if item.BillingScheme == common.BillingSchemeTiered && len(item.Tiers) > 0 {
		if params.Recurring == nil {
			return nil, fmt.Errorf("%w: tiered pricing needs a recurring or metered item", ErrInvalidItem)
		}
		params.BillingScheme = stripe.String(string(stripe.PriceBillingSchemeTiered))
		params.TiersMode = stripe.String(string(stripe.PriceTiersModeGraduated))
		params.Tiers = tierParams(item.Tiers)
		return params, nil
	}

	params.BillingScheme = stripe.String(string(stripe.PriceBillingSchemePerUnit))
	setUnitAmount(params, item.Price)
	return params, nil
}

// setUnitAmount uses whole minor units when possible and unit_amount_decimal
// for sub-cent prices such as 0.005.
func setUnitAmount(params *stripe.PriceParams, price float64) {
	if cents, whole := normalizer.MinorUnitsDecimal(price); !whole {
		params.UnitAmountDecimal = stripe.Float64(cents)
		return
	}
	params.UnitAmount = stripe.Int64(normalizer.ToMinorUnits(price))
}

func tierParams(tiers []common.PriceTier) []*stripe.PriceTierParams {
	out := make([]*stripe.PriceTierParams, 0, len(tiers))
	for i, t := range tiers {
		p := &stripe.PriceTierParams{}
		if cents, whole := normalizer.MinorUnitsDecimal(t.UnitAmount); whole {
			p.UnitAmount = stripe.Int64(normalizer.ToMinorUnits(t.UnitAmount))
		} else {
			p.UnitAmountDecimal = stripe.Float64(cents)
		}
		if t.FlatAmount > 0 {
			p.FlatAmount = stripe.Int64(normalizer.ToMinorUnits(t.FlatAmount))
		}
		// The last tier is open-ended
		if i == len(tiers)-1 || t.UpTo <= 0 {
			p.UpToInf = stripe.Bool(true)
		} else {
			p.UpTo = stripe.Int64(t.UpTo)
		}
		out = append(out, p)
		if p.UpToInf != nil {
			break
		}
	}
	return out
}

func meterFormula(aggregate string) string {
	switch aggregate {
	case "count":
		return "count"
	case "last", "last_during_period", "last_ever":
		return "last"
	default:
		return "sum"
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
