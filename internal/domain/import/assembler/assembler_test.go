package assembler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/billing-intake/internal/domain/common"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/classifier"
)

func TestAssemble_Defaults(t *testing.T) {
	item, ok := Assemble(classifier.Partial{Name: " API  Calls ", PriceToken: "0.02"}, Defaults{})
	require.True(t, ok)

	assert.Equal(t, "API Calls", item.Name)
	assert.Equal(t, 0.02, item.Price)
	assert.Equal(t, "USD", item.Currency)
	assert.Equal(t, common.BillingTypeOneTime, item.Type)
	assert.Equal(t, "API Calls service", item.Description)
	assert.Equal(t, common.BillingSchemePerUnit, item.BillingScheme)
	assert.Equal(t, common.SourcePasteParser, item.Source)
	assert.Empty(t, item.Interval)
	assert.Empty(t, item.UsageType)
}

func TestAssemble_Drops(t *testing.T) {
	tests := []struct {
		name string
		p    classifier.Partial
	}{
		{"empty name", classifier.Partial{Name: "  ", PriceToken: "5"}},
		{"quotes only", classifier.Partial{Name: `""`, PriceToken: "5"}},
		{"unparseable price", classifier.Partial{Name: "Consulting", PriceToken: "Services"}},
		{"missing price", classifier.Partial{Name: "Storage"}},
		{"negative price", classifier.Partial{Name: "Refund", PriceToken: "-5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Assemble(tt.p, Defaults{})
			assert.False(t, ok)
		})
	}
}

func TestAssemble_Metered(t *testing.T) {
	p := classifier.Partial{
		Name:           "Storage",
		PriceToken:     "$0.02",
		EventName:      "storage_usage",
		Unit:           "GB-Hour",
		Type:           common.BillingTypeMetered,
		UsageType:      common.UsageTypeMetered,
		AggregateUsage: common.AggregateUsageSum,
	}

	item, ok := Assemble(p, Defaults{Source: common.SourceOCR})
	require.True(t, ok)

	assert.Equal(t, common.BillingTypeMetered, item.Type)
	assert.Equal(t, "storage_usage", item.EventName)
	assert.Equal(t, "GB-Hour", item.Unit)
	assert.Equal(t, common.UsageTypeMetered, item.UsageType)
	assert.Equal(t, "sum", item.AggregateUsage)
	assert.Equal(t, "month", item.Interval)
	assert.Equal(t, "OCR", item.Source)
}

func TestAssemble_MeteredWithoutEventNameDerivesOne(t *testing.T) {
	item, ok := Assemble(classifier.Partial{Name: "API Calls", PriceToken: "0.001", Type: common.BillingTypeMetered}, Defaults{})
	require.True(t, ok)

	assert.Equal(t, "api_calls", item.EventName)
	assert.Equal(t, common.UsageTypeMetered, item.UsageType)
	assert.Equal(t, "sum", item.AggregateUsage)
}

func TestAssemble_Recurring(t *testing.T) {
	p := classifier.Partial{Name: "Support", PriceToken: "49", Type: common.BillingTypeRecurring, Interval: "year"}

	item, ok := Assemble(p, Defaults{})
	require.True(t, ok)

	assert.Equal(t, common.UsageTypeLicensed, item.UsageType)
	assert.Equal(t, "year", item.Interval)
}

func TestAssemble_Currency(t *testing.T) {
	// Symbol on the price beats the default
	item, _ := Assemble(classifier.Partial{Name: "Hosting", PriceToken: "€10"}, Defaults{Currency: "GBP"})
	assert.Equal(t, "EUR", item.Currency)

	// Default when nothing else is known
	item, _ = Assemble(classifier.Partial{Name: "Hosting", PriceToken: "10"}, Defaults{Currency: "gbp"})
	assert.Equal(t, "GBP", item.Currency)

	// Explicit currency wins over everything
	item, _ = AssembleWith(classifier.Partial{Name: "Hosting", PriceToken: "$10"}, Defaults{}, Extras{Currency: "cad"})
	assert.Equal(t, "CAD", item.Currency)

	// A caller override beats symbols and structured fields
	item, _ = AssembleWith(classifier.Partial{Name: "Hosting", PriceToken: "$10"}, Defaults{CurrencyOverride: "eur"}, Extras{Currency: "cad"})
	assert.Equal(t, "EUR", item.Currency)
}

func TestAssembleWith_Tiers(t *testing.T) {
	tiers := []common.PriceTier{{UpTo: 1000, UnitAmount: 0.01}, {UnitAmount: 0.005}}

	item, ok := AssembleWith(
		classifier.Partial{Name: "Requests", PriceToken: "0.01"},
		Defaults{},
		Extras{BillingScheme: common.BillingSchemeTiered, Tiers: tiers},
	)
	require.True(t, ok)

	assert.Equal(t, common.BillingSchemeTiered, item.BillingScheme)
	assert.Equal(t, tiers, item.Tiers)

	// Caller's slice is not shared
	tiers[0].UpTo = 5
	assert.Equal(t, int64(1000), item.Tiers[0].UpTo)
}
