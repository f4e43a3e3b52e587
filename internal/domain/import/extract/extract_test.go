package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/billing-intake/internal/domain/common"
)

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFromFile_XLSX(t *testing.T) {
	blob := mkXLSX([][]any{
		{"Service", "Event", "Unit", "Price"},
		{"Storage", "storage_usage", "GB-Hour", "$0.02"},
		{"Support", nil, nil, 49},
	})

	doc, err := New(nil, 0).FromFile(context.Background(), "prices.xlsx", blob)
	require.NoError(t, err)

	assert.Equal(t, KindXLSX, doc.Kind)
	assert.Equal(t, SourceXLSX, doc.Source)
	assert.Equal(t, "Service\tEvent\tUnit\tPrice\nStorage\tstorage_usage\tGB-Hour\t$0.02\nSupport\t49\n", doc.Text)
}

func TestFromFile_XLSXSniffedWithoutExtension(t *testing.T) {
	blob := mkXLSX([][]any{{"Storage", 5}})

	doc, err := New(nil, 0).FromFile(context.Background(), "upload", blob)
	require.NoError(t, err)
	assert.Equal(t, KindXLSX, doc.Kind)
	assert.Equal(t, "Storage\t5\n", doc.Text)
}

func TestFromFile_HTMLTable(t *testing.T) {
	html := `<html><body>
		<h1>Pricing</h1>
		<table>
			<tr><th>Service</th><th>Price</th></tr>
			<tr><td>API   Calls</td><td>$0.02</td></tr>
			<tr><td></td><td></td></tr>
			<tr><td>Support</td><td>$49.00</td></tr>
		</table>
	</body></html>`

	doc, err := New(nil, 0).FromFile(context.Background(), "pricing.html", []byte(html))
	require.NoError(t, err)

	assert.Equal(t, SourceHTML, doc.Source)
	assert.Equal(t, "Service\tPrice\nAPI Calls\t$0.02\nSupport\t$49.00\n", doc.Text)
}

func TestHTMLText_NoTable(t *testing.T) {
	text, err := HTMLText([]byte(`<html><head><style>p{}</style></head><body><p>Storage - $5.00</p></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Storage - $5.00", text)
}

func TestFromFile_TextStripsBOM(t *testing.T) {
	doc, err := New(nil, 0).FromFile(context.Background(), "prices.csv", []byte("\ufeffService,Price\nAPI Calls,0.02"))
	require.NoError(t, err)

	assert.Equal(t, KindText, doc.Kind)
	assert.Equal(t, SourceFile, doc.Source)
	assert.Equal(t, "Service,Price\nAPI Calls,0.02", doc.Text)
}

func TestFromFile_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := New(nil, 0).FromFile(ctx, "a.csv", []byte("  \n"))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = New(nil, 4).FromFile(ctx, "a.csv", []byte("Storage,5"))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = New(nil, 0).FromFile(ctx, "scan.png", []byte("\x89PNG\r\n\x1a\n"))
	assert.ErrorIs(t, err, ErrOCRUnavailable)

	_, err = New(nil, 0).FromFile(ctx, "broken.pdf", []byte("not a pdf"))
	assert.Error(t, err)

	_, err = New(nil, 0).FromFile(ctx, "archive.bin", []byte{0x00, 0x01, 0x02, 0xff})
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Kind
	}{
		{"prices.TSV", nil, KindText},
		{"items.json", nil, KindJSON},
		{"Quote.PDF", nil, KindPDF},
		{"photo.jpeg", nil, KindImage},
		{"upload", []byte("%PDF-1.7\n"), KindPDF},
		{"upload", []byte("<!DOCTYPE html><html><table></table></html>"), KindHTML},
		{"upload", []byte("Storage,5.00\n"), KindText},
		{"upload", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), KindImage},
	}

	for _, tt := range tests {
		got, err := DetectKind(tt.name, tt.data)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

type stubRecognizer struct {
	text string
	err  error
}

func (s stubRecognizer) Recognize(context.Context, string, []byte) (string, error) {
	return s.text, s.err
}

func TestFromFile_ImageUsesRecognizer(t *testing.T) {
	e := New(stubRecognizer{text: "Storage\t$5.00"}, 0)

	doc, err := e.FromFile(context.Background(), "scan.png", []byte("\x89PNG\r\n\x1a\n"))
	require.NoError(t, err)
	assert.Equal(t, common.SourceOCR, doc.Source)
	assert.Equal(t, "Storage\t$5.00", doc.Text)

	e = New(stubRecognizer{err: ErrOCRFailed}, 0)
	_, err = e.FromFile(context.Background(), "scan.png", []byte("\x89PNG\r\n\x1a\n"))
	assert.ErrorIs(t, err, ErrOCRFailed)
}

func TestOCRClient_Recognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "secret", r.FormValue("apikey"))
		assert.Equal(t, "true", r.FormValue("isTable"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "scan.png", header.Filename)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"ParsedResults": []map[string]any{
				{"ParsedText": "Storage\t$5.00\r\n"},
				{"ParsedText": "Backups\t$3.50\r\n"},
			},
			"IsErroredOnProcessing": false,
		})
	}))
	defer srv.Close()

	client := NewOCRClient(srv.URL, "secret", testLogger())
	text, err := client.Recognize(context.Background(), "scan.png", []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "Storage\t$5.00\r\nBackups\t$3.50\r\n", text)
}

func TestOCRClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"processing error", func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"IsErroredOnProcessing": true,
				"ErrorMessage":          []string{"Unable to recognize the file type"},
			})
		}},
		{"bad status", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewOCRClient(srv.URL, "k", testLogger()).Recognize(context.Background(), "a.png", []byte("x"))
			assert.True(t, errors.Is(err, ErrOCRFailed), "got %v", err)
		})
	}
}
