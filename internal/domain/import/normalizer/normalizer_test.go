package normalizer

import (
	"errors"
	"testing"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input    string
		amount   float64
		currency string
	}{
		{"5.00", 5.0, ""},
		{"$5.00", 5.0, "USD"},
		{"$1,200.50", 1200.50, "USD"},
		{"0.02", 0.02, ""},
		{"  $0.02  ", 0.02, "USD"},
		{"0.02 USD", 0.02, "USD"},
		{"€5", 5, "EUR"},
		{"£ 12.99", 12.99, "GBP"},
		{"$0.02/GB", 0.02, "USD"},
		{"0", 0, ""},
		{"10.", 10, ""},
		{"$5.00 USD", 5.0, "USD"},
		{"US$ 5", 5, "USD"},
		{"€ 12,50 EUR", 12.50, "EUR"},
		{"€0,02", 0.02, "EUR"},
		{"0,5", 0.5, ""},
		{"1.234,56", 1234.56, ""},
		{"$1,200", 1200, "USD"},
		{"1,234,567.89", 1234567.89, ""},
	}

	for _, tc := range tests {
		got, err := ParsePrice(tc.input)
		if err != nil {
			t.Errorf("ParsePrice(%q) error: %v", tc.input, err)
			continue
		}
		if got.Amount != tc.amount {
			t.Errorf("ParsePrice(%q).Amount = %v, want %v", tc.input, got.Amount, tc.amount)
		}
		if got.Currency != tc.currency {
			t.Errorf("ParsePrice(%q).Currency = %q, want %q", tc.input, got.Currency, tc.currency)
		}
	}
}

func TestParsePrice_Invalid(t *testing.T) {
	tests := []struct {
		input string
		err   error
	}{
		{"", ErrInvalidPrice},
		{"Services", ErrInvalidPrice},
		{"$", ErrInvalidPrice},
		{"$ USD", ErrInvalidPrice},
		{"NaN", ErrInvalidPrice},
		{"Inf", ErrInvalidPrice},
		{"1.2.3", ErrInvalidPrice},
		{"-5.00", ErrNegativePrice},
	}

	for _, tc := range tests {
		_, err := ParsePrice(tc.input)
		if !errors.Is(err, tc.err) {
			t.Errorf("ParsePrice(%q) error = %v, want %v", tc.input, err, tc.err)
		}
	}
}

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		price float64
		cents int64
	}{
		{5.0, 500},
		{0.02, 2},
		{19.99, 1999},
		{1.005, 101}, // half rounds away from zero
		{0.125, 13},
		{0.124, 12},
		{0, 0},
	}

	for _, tc := range tests {
		if got := ToMinorUnits(tc.price); got != tc.cents {
			t.Errorf("ToMinorUnits(%v) = %d, want %d", tc.price, got, tc.cents)
		}
	}
}

func TestMinorUnitsDecimal(t *testing.T) {
	cents, whole := MinorUnitsDecimal(0.02)
	if !whole || cents != 2 {
		t.Errorf("MinorUnitsDecimal(0.02) = %v, %v; want 2, true", cents, whole)
	}

	cents, whole = MinorUnitsDecimal(0.0004)
	if whole {
		t.Error("0.0004 should not be a whole number of cents")
	}
	if cents != 0.04 {
		t.Errorf("MinorUnitsDecimal(0.0004) = %v, want 0.04", cents)
	}
}

func TestNormalizeEventName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"storage_usage", "storage_usage"},
		{"Storage Usage", "storage_usage"},
		{"API-Calls", "api_calls"},
		{" GB.Hour ", "gb_hour"},
		{"Überweisung", "_berweisung"},
	}

	for _, tc := range tests {
		if got := NormalizeEventName(tc.input); got != tc.expected {
			t.Errorf("NormalizeEventName(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestCleanDescription(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  API   Calls  ", "API Calls"},
		{"Storage\t\tTier", "Storage Tier"},
		{"Normal", "Normal"},
	}

	for _, tc := range tests {
		got := CleanDescription(tc.input)
		if got != tc.expected {
			t.Errorf("CleanDescription(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestFromMinorUnits(t *testing.T) {
	tests := []struct {
		cents float64
		price float64
	}{
		{2000, 20},
		{2, 0.02},
		{0.04, 0.0004},
		{0, 0},
	}

	for _, tc := range tests {
		if got := FromMinorUnits(tc.cents); got != tc.price {
			t.Errorf("FromMinorUnits(%v) = %v, want %v", tc.cents, got, tc.price)
		}
	}
}
