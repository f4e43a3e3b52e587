package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/billing-intake/internal/domain/common"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/parser"
)

func runApp(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	app := newApp()
	app.Reader = strings.NewReader(stdin)
	app.Writer = &out
	app.ErrWriter = &errOut

	err := app.Run(append([]string{"billingctl"}, args...))
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseCommand_Stdin(t *testing.T) {
	out, err := runApp(t, "API Calls,0.02\n\"Hosting\",\"$1,200.00\"", "parse", "--currency", "eur", "--source", "cli", "-")
	require.NoError(t, err)

	var res parser.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Items, 2)
	assert.Equal(t, "API Calls", res.Items[0].Name)
	assert.Equal(t, "EUR", res.Items[0].Currency)
	assert.Equal(t, "cli", res.Items[0].Source)
	// --currency replaces the "$" the row names
	assert.Equal(t, "EUR", res.Items[1].Currency)
}

func TestParseCommand_File(t *testing.T) {
	path := writeFile(t, "prices.txt", "Storage - $5.00")

	out, err := runApp(t, "", "parse", path)
	require.NoError(t, err)

	var res parser.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Storage", res.Items[0].Name)
	assert.Equal(t, 5.0, res.Items[0].Price)
	assert.Equal(t, common.DefaultCurrency, res.Items[0].Currency)
}

func TestParseCommand_Errors(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{name: "missing file", args: []string{"parse"}, want: "missing FILE"},
		{name: "no items", stdin: "Consulting Services", args: []string{"parse", "-"}, want: "no services detected"},
		{name: "bad currency", stdin: "Storage,5", args: []string{"parse", "--currency", "EURO", "-"}, want: "invalid currency"},
		{name: "unreadable file", args: []string{"parse", "/nonexistent/prices.csv"}, want: "no such file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runApp(t, tt.stdin, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSniffCommand(t *testing.T) {
	out, err := runApp(t, "Service,Price\nAPI Calls,0.02", "sniff", "-")
	require.NoError(t, err)

	var format map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &format))
	assert.Equal(t, "tabular", format["kind"])
	assert.Equal(t, "comma", format["delimiter"])
}

func TestExportCommand_CSV(t *testing.T) {
	in := writeFile(t, "prices.csv", "Storage,5\nCompute,12.50")
	out := filepath.Join(t.TempDir(), "items.csv")

	msg, err := runApp(t, "", "export", "--format", "csv", "--out", out, in)
	require.NoError(t, err)
	assert.Contains(t, msg, "wrote 2 items")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Storage")
	assert.Contains(t, string(data), "Compute")
}

func TestExportCommand_XLSX(t *testing.T) {
	out := filepath.Join(t.TempDir(), "items.xlsx")

	_, err := runApp(t, "Storage,5", "export", "-o", out, "-")
	require.NoError(t, err)

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 2)
	assert.Equal(t, "Storage", rows[1][0])
}

func TestExportCommand_BadFormat(t *testing.T) {
	_, err := runApp(t, "Storage,5", "export", "--format", "pdf", "--out", filepath.Join(t.TempDir(), "x"), "-")
	require.Error(t, err)
}

func TestCatalogCommand_RequiresKey(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "")

	_, err := runApp(t, "", "catalog")
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	t.Run("missing file is silent", func(t *testing.T) {
		var buf bytes.Buffer
		loadDotEnv(&buf, filepath.Join(t.TempDir(), ".env"))
		assert.Empty(t, buf.String())
	})

	t.Run("unreadable file warns", func(t *testing.T) {
		var buf bytes.Buffer
		loadDotEnv(&buf, t.TempDir())
		assert.Contains(t, buf.String(), "failed to load .env file")
	})

	t.Run("loads values", func(t *testing.T) {
		t.Setenv("BILLINGCTL_TEST_VALUE", "")
		require.NoError(t, os.Unsetenv("BILLINGCTL_TEST_VALUE"))
		path := writeFile(t, ".env", "BILLINGCTL_TEST_VALUE=loaded\n")

		var buf bytes.Buffer
		loadDotEnv(&buf, path)
		assert.Empty(t, buf.String())
		assert.Equal(t, "loaded", os.Getenv("BILLINGCTL_TEST_VALUE"))
	})
}
