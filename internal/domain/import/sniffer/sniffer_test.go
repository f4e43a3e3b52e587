package sniffer

import (
	"testing"

	"github.com/FACorreiaa/billing-intake/internal/domain/import/tokenizer"
)

// Sample spreadsheet paste (tab separated, with header)
const sampleTSV = "Service\tEvent\tUnit\tPrice\n" +
	"Storage\tstorage_usage\tGB-Hour\t$0.02\n" +
	"API Calls\tapi_calls\tRequest\t$0.001\n"

// Sample CSV export
const sampleCSV = `Service,Price
API Calls,0.02
Support,49.00
`

const samplePipe = `API Calls | 0.02
Support | 49.00`

const sampleAligned = `API Calls      0.02
Premium Support    49.00`

func TestSniff_Delimiters(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		delim tokenizer.Delimiter
	}{
		{"tab", sampleTSV, tokenizer.Tab},
		{"comma", sampleCSV, tokenizer.Comma},
		{"pipe", samplePipe, tokenizer.Pipe},
		{"aligned columns", sampleAligned, tokenizer.MultiSpace},
		{"single space", "Storage - $5.00", tokenizer.SingleSpace},
		{"windows line endings", "API Calls,0.02\r\nSupport,49\r\n", tokenizer.Comma},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Sniff(tt.text, nil)
			if f.Kind != KindTabular {
				t.Fatalf("Expected kind %q, got %q", KindTabular, f.Kind)
			}
			if f.Delimiter != tt.delim {
				t.Errorf("Expected delimiter %q, got %q", tt.delim, f.Delimiter)
			}
			if f.Fingerprint == "" {
				t.Error("Expected non-empty fingerprint")
			}
		})
	}
}

func TestSniff_DelimiterPriority(t *testing.T) {
	// A title line splits on spaces, but the tab rows below it win
	text := "Cloud pricing sheet\nStorage\t0.02\nCompute\t0.10"
	f := Sniff(text, nil)
	if f.Delimiter != tokenizer.Tab {
		t.Errorf("Expected tab delimiter, got %q", f.Delimiter)
	}
	if f.FirstLine != 1 {
		t.Errorf("Expected deciding line 1, got %d", f.FirstLine)
	}
}

func TestSniff_CustomDelimiterList(t *testing.T) {
	f := Sniff("API Calls,0.02", []tokenizer.Delimiter{tokenizer.Tab})
	if f.Kind != KindFreeform {
		t.Errorf("Expected freeform when comma is not configured, got %q", f.Kind)
	}
}

func TestSniff_JSON(t *testing.T) {
	tests := []struct {
		name string
		text string
		kind Kind
	}{
		{"array", `[{"name":"API Calls","price":0.02}]`, KindJSON},
		{"data wrapper", `{"data":[{"name":"A","price":1}]}`, KindJSON},
		{"items wrapper", `{"items":[]}`, KindJSON},
		{"services wrapper", `  {"services":[{"name":"A"}]}  `, KindJSON},
		{"object without container", `{"name":"A","price":1}`, KindTabular},
		{"malformed", `[{"name":"A",`, KindFreeform},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.text, nil).Kind; got != tt.kind {
				t.Errorf("Expected kind %q, got %q", tt.kind, got)
			}
		})
	}
}

func TestSniff_FreeformAndEmpty(t *testing.T) {
	if got := Sniff("Storage-$5.00\nCompute-$9", nil).Kind; got != KindFreeform {
		t.Errorf("Expected freeform, got %q", got)
	}
	if got := Sniff(" \n\t\n", nil).Kind; got != KindEmpty {
		t.Errorf("Expected empty, got %q", got)
	}
}

func TestLines(t *testing.T) {
	lines := Lines("\ufeffService,Price\r\n\r\n  API Calls,0.02  \n\t\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if lines[0].Text != "Service,Price" {
		t.Errorf("Expected BOM stripped, got %q", lines[0].Text)
	}
	if lines[1].Index != 1 || lines[1].Text != "API Calls,0.02" {
		t.Errorf("Unexpected second line %+v", lines[1])
	}
}

func TestGenerateFingerprint(t *testing.T) {
	a := generateFingerprint([]string{"Service", "Price"})
	b := generateFingerprint([]string{"service ", "PRICE"})
	c := generateFingerprint([]string{"Service", "Amount"})

	if a != b {
		t.Error("Fingerprints should ignore case and spacing")
	}
	if a == c {
		t.Error("Different headers should yield different fingerprints")
	}
}
