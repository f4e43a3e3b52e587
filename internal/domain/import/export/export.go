// Package export renders reviewed line items as downloadable files.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/billing-intake/internal/domain/common"
)

// Format is an export file type.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

var ErrUnknownFormat = errors.New("unknown export format")

// File is a rendered export.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

var columns = []string{
	"name", "price", "currency", "type", "event_name", "unit", "description",
	"billing_scheme", "usage_type", "aggregate_usage", "interval", "source",
}

// ParseFormat accepts "xlsx", "csv" and their extensions.
func ParseFormat(raw string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(raw)), ".") {
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "csv", "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, raw)
	}
}

// Render produces the export named base.<ext>.
func Render(items []common.BillingLineItem, format Format, base string) (*File, error) {
	if base == "" {
		base = "billing-items"
	}

	switch format {
	case FormatXLSX:
		content, err := XLSX(items)
		if err != nil {
			return nil, err
		}
		return &File{
			Name:        base + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Content:     content,
		}, nil
	case FormatCSV:
		content, err := CSV(items)
		if err != nil {
			return nil, err
		}
		return &File{Name: base + ".csv", ContentType: "text/csv", Content: content}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// CSV renders items with a header row.
func CSV(items []common.BillingLineItem) ([]byte, error) {
	if items == nil {
		items = []common.BillingLineItem{}
	}
	out, err := gocsv.MarshalBytes(&items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal csv: %w", err)
	}
	return out, nil
}

// XLSX renders items into the first sheet of a new workbook.
func XLSX(items []common.BillingLineItem) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, h := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, item := range items {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, item.Name)
		set(2, item.Price)
		set(3, item.Currency)
		set(4, string(item.Type))
		set(5, item.EventName)
		set(6, item.Unit)
		set(7, item.Description)
		set(8, string(item.BillingScheme))
		set(9, string(item.UsageType))
		set(10, item.AggregateUsage)
		set(11, item.Interval)
		set(12, item.Source)
	}

	buf := bytes.NewBuffer(nil)
	if _, err := f.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("failed to write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
