// Package extract turns uploaded files into plain text the parser can read.
// Spreadsheet and HTML cells are joined with tabs so the sniffer picks the
// tab delimiter for them.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/billing-intake/internal/domain/common"
)

// Kind is the detected file type.
type Kind string

const (
	KindText  Kind = "text"
	KindJSON  Kind = "json"
	KindXLSX  Kind = "xlsx"
	KindPDF   Kind = "pdf"
	KindHTML  Kind = "html"
	KindImage Kind = "image"
)

// Source tags attached to items parsed from each kind.
const (
	SourceFile = "file_upload"
	SourceXLSX = "xlsx"
	SourcePDF  = "pdf"
	SourceHTML = "html"
)

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file exceeds size limit")
	ErrOCRUnavailable  = errors.New("image uploads need an OCR service")
)

// Document is the text pulled out of one file.
type Document struct {
	Name   string `json:"name"`
	Kind   Kind   `json:"kind"`
	Source string `json:"source"`
	Text   string `json:"text"`
}

// Recognizer reads text out of an image. Implementations call an external
// OCR service.
type Recognizer interface {
	Recognize(ctx context.Context, name string, image []byte) (string, error)
}

// Extractor dispatches files to the right reader.
type Extractor struct {
	ocr      Recognizer
	maxBytes int64
}

// New returns an Extractor. ocr may be nil, in which case images are rejected.
// maxBytes of zero disables the size check.
func New(ocr Recognizer, maxBytes int64) *Extractor {
	return &Extractor{ocr: ocr, maxBytes: maxBytes}
}

// FromFile extracts text from a named upload.
func (e *Extractor) FromFile(ctx context.Context, name string, data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}
	if e.maxBytes > 0 && int64(len(data)) > e.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(data))
	}

	kind, err := DetectKind(name, data)
	if err != nil {
		return nil, err
	}

	doc := &Document{Name: name, Kind: kind}

	switch kind {
	case KindText, KindJSON:
		doc.Source = SourceFile
		doc.Text = strings.TrimPrefix(string(data), "\ufeff")
	case KindXLSX:
		doc.Source = SourceXLSX
		doc.Text, err = XLSXText(data)
	case KindPDF:
		doc.Source = SourcePDF
		doc.Text, err = PDFText(data)
	case KindHTML:
		doc.Source = SourceHTML
		doc.Text, err = HTMLText(data)
	case KindImage:
		if e.ocr == nil {
			return nil, ErrOCRUnavailable
		}
		doc.Source = common.SourceOCR
		doc.Text, err = e.ocr.Recognize(ctx, name, data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", kind, err)
	}

	return doc, nil
}

// DetectKind uses the extension first and falls back to content sniffing.
func DetectKind(name string, data []byte) (Kind, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv", ".txt", ".text", ".md":
		return KindText, nil
	case ".json":
		return KindJSON, nil
	case ".xlsx", ".xlsm":
		return KindXLSX, nil
	case ".pdf":
		return KindPDF, nil
	case ".html", ".htm":
		return KindHTML, nil
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tif", ".tiff":
		return KindImage, nil
	}

	// No useful extension: look at the bytes
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return KindPDF, nil
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return KindXLSX, nil
	}

	mime := http.DetectContentType(data)
	switch {
	case strings.HasPrefix(mime, "text/html"):
		return KindHTML, nil
	case strings.HasPrefix(mime, "image/"):
		return KindImage, nil
	case strings.HasPrefix(mime, "text/"):
		return KindText, nil
	}

	return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, name)
}

// XLSXText renders every sheet as tab-separated lines.
func XLSXText(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for _, row := range rows {
			cells := normalizeCells(row)
			if len(cells) == 0 {
				continue
			}
			sb.WriteString(strings.Join(cells, "\t"))
			sb.WriteByte('\n')
		}
	}

	return sb.String(), nil
}

// PDFText concatenates the plain text of every page.
func PDFText(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			sb.WriteByte('\n')
		}
	}

	return sb.String(), nil
}

// HTMLText renders table rows as tab-separated lines. Pages without tables
// fall back to the visible body text.
func HTMLText(content []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			var cells []string
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, cell.Text())
			})
			cells = normalizeCells(cells)
			if len(cells) == 0 {
				return
			}
			sb.WriteString(strings.Join(cells, "\t"))
			sb.WriteByte('\n')
		})
	})

	if sb.Len() > 0 {
		return sb.String(), nil
	}

	doc.Find("script,style").Remove()
	return strings.TrimSpace(doc.Find("body").Text()), nil
}

// normalizeCells collapses whitespace inside cells and drops empty ones.
func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		c = strings.Join(strings.Fields(c), " ")
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}
