package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"learnstore/internal/domain"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter reads course seat catalog exports and inserts/updates products.
type CSVImporter struct {
	reader      *csv.Reader
	productRepo ProductWriter
	siteID      string
}

func NewCSVImporter(r io.Reader, repo ProductWriter, siteID string) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{
		reader:      csvr,
		productRepo: repo,
		siteID:      siteID,
	}
}

// Run parses CSV rows and upserts one product per row, keyed by SKU.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, required := range []string{"sku", "title", "price", "currency"} {
		if _, ok := index[required]; !ok {
			return 0, fmt.Errorf("missing column %q", required)
		}
	}

	imported := 0
	line := 1
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return imported, fmt.Errorf("read row %d: %w", line, err)
		}
		if blank(record) {
			continue
		}

		p, err := i.parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("row %d: %w", line, err)
		}
		if _, err := i.productRepo.Upsert(ctx, p); err != nil {
			return imported, fmt.Errorf("upsert product %q: %w", p.SKU, err)
		}
		imported++
	}
	return imported, nil
}

func (i *CSVImporter) parseRow(record []string, index map[string]int) (domain.Product, error) {
	p := domain.Product{
		SiteID:         i.siteID,
		SKU:            pick(record, index, "sku"),
		Title:          pick(record, index, "title"),
		Currency:       strings.ToUpper(pick(record, index, "currency")),
		ProductClass:   pick(record, index, "product_class"),
		CourseID:       pick(record, index, "course_id"),
		SeatType:       pick(record, index, "seat_type"),
		CreditProvider: pick(record, index, "credit_provider"),
		IsDiscountable: true,
		IsAvailable:    true,
	}
	if p.SKU == "" || p.Title == "" || p.Currency == "" {
		return p, fmt.Errorf("invalid product row (missing required fields) for sku %q", p.SKU)
	}
	if p.ProductClass == "" {
		p.ProductClass = domain.ProductClassSeat
	}

	price, err := decimal.NewFromString(pick(record, index, "price"))
	if err != nil || price.IsNegative() {
		return p, fmt.Errorf("invalid price for sku %q", p.SKU)
	}
	p.PriceCents = price.Shift(2).Round(0).IntPart()

	if raw := pick(record, index, "credit_hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil {
			return p, fmt.Errorf("invalid credit_hours for sku %q", p.SKU)
		}
		p.CreditHours = hours
	}
	if raw := pick(record, index, "discountable"); raw != "" {
		p.IsDiscountable, err = strconv.ParseBool(raw)
		if err != nil {
			return p, fmt.Errorf("invalid discountable for sku %q", p.SKU)
		}
	}
	if raw := pick(record, index, "available"); raw != "" {
		p.IsAvailable, err = strconv.ParseBool(raw)
		if err != nil {
			return p, fmt.Errorf("invalid available for sku %q", p.SKU)
		}
	}
	return p, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
