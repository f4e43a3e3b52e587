package common

// BillingType classifies how a line item is charged.
type BillingType string

const (
	BillingTypeOneTime   BillingType = "one_time"
	BillingTypeRecurring BillingType = "recurring"
	BillingTypeMetered   BillingType = "metered"
)

// BillingScheme mirrors Stripe's price billing_scheme.
type BillingScheme string

const (
	BillingSchemePerUnit BillingScheme = "per_unit"
	BillingSchemeTiered  BillingScheme = "tiered"
)

// UsageType mirrors Stripe's recurring.usage_type.
type UsageType string

const (
	UsageTypeLicensed UsageType = "licensed"
	UsageTypeMetered  UsageType = "metered"
)

const (
	DefaultCurrency     = "USD"
	DefaultInterval     = "month"
	AggregateUsageSum   = "sum"
	SourcePasteParser   = "paste_parser"
	SourceOCR           = "OCR"
	DescriptionTemplate = "%s service"
)

// PriceTier is one step of a tiered price. UpTo of zero means "and above".
type PriceTier struct {
	UpTo       int64   `json:"up_to,omitempty" csv:"-"`
	UnitAmount float64 `json:"unit_amount" csv:"-"`
	FlatAmount float64 `json:"flat_amount,omitempty" csv:"-"`
}

// BillingLineItem is the normalized record every parser path produces.
type BillingLineItem struct {
	Name           string        `json:"name" csv:"name"`
	Price          float64       `json:"price" csv:"price"`
	Currency       string        `json:"currency" csv:"currency"`
	Type           BillingType   `json:"type" csv:"type"`
	EventName      string        `json:"event_name,omitempty" csv:"event_name"`
	Unit           string        `json:"unit,omitempty" csv:"unit"`
	Description    string        `json:"description" csv:"description"`
	BillingScheme  BillingScheme `json:"billing_scheme" csv:"billing_scheme"`
	UsageType      UsageType     `json:"usage_type,omitempty" csv:"usage_type"`
	AggregateUsage string        `json:"aggregate_usage,omitempty" csv:"aggregate_usage"`
	Interval       string        `json:"interval,omitempty" csv:"interval"`
	Tiers          []PriceTier   `json:"tiers,omitempty" csv:"-"`
	Source         string        `json:"source,omitempty" csv:"source"`
	Confidence     float64       `json:"confidence,omitempty" csv:"confidence"`
}

// IsMetered reports whether the item bills per reported usage event.
func (i BillingLineItem) IsMetered() bool {
	return i.Type == BillingTypeMetered
}

// IsRecurring reports whether the item needs a recurring Stripe price.
func (i BillingLineItem) IsRecurring() bool {
	return i.Type == BillingTypeRecurring || i.Type == BillingTypeMetered
}
