// Package gateway creates and lists Stripe catalog objects for billing line items.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/billing-intake/internal/domain/common"
	"github.com/FACorreiaa/billing-intake/pkg/observability"
)

var ErrNotConfigured = errors.New("stripe secret key is not configured")

// DefaultListLimit is used when a list call passes no limit.
const DefaultListLimit = 10

// Gateway is the subset of Stripe the billing service talks to.
type Gateway interface {
	CreateMeter(ctx context.Context, item common.BillingLineItem) (string, error)
	CreateProduct(ctx context.Context, item common.BillingLineItem) (string, error)
	CreatePrice(ctx context.Context, item common.BillingLineItem, productID, meterID string) (string, error)
	ListProducts(ctx context.Context, limit int) ([]Product, error)
	ListPrices(ctx context.Context, limit int) ([]Price, error)
	ListMeters(ctx context.Context, limit int) ([]Meter, error)
}

// Product is a catalog product as listed by Stripe.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	UnitLabel   string `json:"unit_label,omitempty"`
	Active      bool   `json:"active"`
}

// Price is a catalog price as listed by Stripe.
type Price struct {
	ID                string  `json:"id"`
	ProductID         string  `json:"product_id"`
	Nickname          string  `json:"nickname,omitempty"`
	Currency          string  `json:"currency"`
	UnitAmount        int64   `json:"unit_amount"`
	UnitAmountDecimal float64 `json:"unit_amount_decimal,omitempty"`
	BillingScheme     string  `json:"billing_scheme"`
	Interval          string  `json:"interval,omitempty"`
	UsageType         string  `json:"usage_type,omitempty"`
	MeterID           string  `json:"meter_id,omitempty"`
	Active            bool    `json:"active"`
}

// Meter is a billing meter as listed by Stripe.
type Meter struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	EventName   string `json:"event_name"`
	Status      string `json:"status"`
}

// Config configures the Stripe client.
type Config struct {
	SecretKey string
	// APIURL overrides the Stripe API base URL, e.g. for stripe-mock.
	APIURL  string
	Timeout time.Duration
}

// StripeGateway implements Gateway with stripe-go.
type StripeGateway struct {
	sc     *client.API
	tracer trace.Tracer
	logger *slog.Logger
}

var _ Gateway = (*StripeGateway)(nil)

// NewStripeGateway builds a client with its own backends. Network retries are
// disabled so a failed call surfaces immediately.
func NewStripeGateway(cfg Config, logger *slog.Logger) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &slogAdapter{logger: logger},
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}

	sc := client.New(cfg.SecretKey, stripe.NewBackendsWithConfig(backendCfg))

	return &StripeGateway{
		sc:     sc,
		tracer: otel.Tracer("billing-intake/stripe"),
		logger: logger,
	}, nil
}

// CreateMeter creates the usage meter for a metered item and returns its ID.
func (g *StripeGateway) CreateMeter(ctx context.Context, item common.BillingLineItem) (string, error) {
	params, err := MeterParams(item)
	if err != nil {
		return "", err
	}

	var id string
	err = g.call(ctx, "meter.create", func(ctx context.Context) error {
		params.Context = ctx
		m, err := g.sc.BillingMeters.New(params)
		if err != nil {
			return err
		}
		id = m.ID
		return nil
	}, attribute.String("stripe.event_name", item.EventName))

	return id, err
}

// CreateProduct creates the product and returns its ID.
func (g *StripeGateway) CreateProduct(ctx context.Context, item common.BillingLineItem) (string, error) {
	params := ProductParams(item)

	var id string
	err := g.call(ctx, "product.create", func(ctx context.Context) error {
		params.Context = ctx
		p, err := g.sc.Products.New(params)
		if err != nil {
			return err
		}
		id = p.ID
		return nil
	}, attribute.String("stripe.product_name", item.Name))

	return id, err
}

// CreatePrice creates the price for productID and returns its ID.
func (g *StripeGateway) CreatePrice(ctx context.Context, item common.BillingLineItem, productID, meterID string) (string, error) {
	params, err := PriceParams(item, productID, meterID)
	if err != nil {
		return "", err
	}

	var id string
	err = g.call(ctx, "price.create", func(ctx context.Context) error {
		params.Context = ctx
		p, err := g.sc.Prices.New(params)
		if err != nil {
			return err
		}
		id = p.ID
		return nil
	}, attribute.String("stripe.product_id", productID), attribute.String("billing.type", string(item.Type)))

	return id, err
}

// ListProducts returns up to limit active products.
func (g *StripeGateway) ListProducts(ctx context.Context, limit int) ([]Product, error) {
	limit = clampLimit(limit)
	var out []Product
	err := g.call(ctx, "product.list", func(ctx context.Context) error {
		params := &stripe.ProductListParams{Active: stripe.Bool(true)}
		params.Context = ctx
		params.Limit = stripe.Int64(int64(limit))

		it := g.sc.Products.List(params)
		for len(out) < limit && it.Next() {
			p := it.Product()
			out = append(out, Product{
				ID:          p.ID,
				Name:        p.Name,
				Description: p.Description,
				UnitLabel:   p.UnitLabel,
				Active:      p.Active,
			})
		}
		return it.Err()
	})
	return out, err
}

// ListPrices returns up to limit active prices.
func (g *StripeGateway) ListPrices(ctx context.Context, limit int) ([]Price, error) {
	limit = clampLimit(limit)
	var out []Price
	err := g.call(ctx, "price.list", func(ctx context.Context) error {
		params := &stripe.PriceListParams{Active: stripe.Bool(true)}
		params.Context = ctx
		params.Limit = stripe.Int64(int64(limit))

		it := g.sc.Prices.List(params)
		for len(out) < limit && it.Next() {
			out = append(out, toPrice(it.Price()))
		}
		return it.Err()
	})
	return out, err
}

// ListMeters returns up to limit active meters.
func (g *StripeGateway) ListMeters(ctx context.Context, limit int) ([]Meter, error) {
	limit = clampLimit(limit)
	var out []Meter
	err := g.call(ctx, "meter.list", func(ctx context.Context) error {
		params := &stripe.BillingMeterListParams{Status: stripe.String(string(stripe.BillingMeterStatusActive))}
		params.Context = ctx
		params.Limit = stripe.Int64(int64(limit))

		it := g.sc.BillingMeters.List(params)
		for len(out) < limit && it.Next() {
			m := it.BillingMeter()
			out = append(out, Meter{
				ID:          m.ID,
				DisplayName: m.DisplayName,
				EventName:   m.EventName,
				Status:      string(m.Status),
			})
		}
		return it.Err()
	})
	return out, err
}

// call wraps one Stripe operation in a span and counts it.
func (g *StripeGateway) call(ctx context.Context, op string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := g.tracer.Start(ctx, "stripe."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attrs...)

	start := time.Now()
	err := fn(ctx)
	observability.RecordStripe(op, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Warn("stripe call failed",
			"operation", op,
			"duration", time.Since(start),
			"error", err)
		return err
	}

	span.SetStatus(codes.Ok, "ok")
	g.logger.Debug("stripe call", "operation", op, "duration", time.Since(start))
	return nil
}

func toPrice(p *stripe.Price) Price {
	out := Price{
		ID:                p.ID,
		Nickname:          p.Nickname,
		Currency:          string(p.Currency),
		UnitAmount:        p.UnitAmount,
		UnitAmountDecimal: p.UnitAmountDecimal,
		BillingScheme:     string(p.BillingScheme),
		Active:            p.Active,
	}
	if p.Product != nil {
		out.ProductID = p.Product.ID
	}
	if p.Recurring != nil {
		out.Interval = string(p.Recurring.Interval)
		out.UsageType = string(p.Recurring.UsageType)
		out.MeterID = p.Recurring.Meter
	}
	return out
}

// clampLimit keeps limit within Stripe's 1..100 page range.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > 100:
		return 100
	default:
		return limit
	}
}
