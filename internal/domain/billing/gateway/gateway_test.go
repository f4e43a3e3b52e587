package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/billing-intake/internal/domain/common"
)

type fakeStripe struct {
	mu    sync.Mutex
	forms map[string]url.Values
	fail  map[string]int
}

func newFakeStripe(t *testing.T) (*fakeStripe, *StripeGateway) {
	t.Helper()
	fs := &fakeStripe{forms: make(map[string]url.Values), fail: make(map[string]int)}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)

	gw, err := NewStripeGateway(Config{SecretKey: "sk_test_123", APIURL: srv.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return fs, gw
}

func (f *fakeStripe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	key := r.Method + " " + r.URL.Path

	f.mu.Lock()
	f.forms[key] = r.Form
	status := f.fail[key]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Request-Id", "req_test")
	if status != 0 {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"type": "invalid_request_error", "message": "boom", "code": "resource_missing"},
		})
		return
	}

	var body any
	switch key {
	case "POST /v1/billing/meters":
		body = map[string]any{"id": "mtr_123", "object": "billing.meter", "event_name": r.Form.Get("event_name"), "status": "active"}
	case "POST /v1/products":
		body = map[string]any{"id": "prod_123", "object": "product", "name": r.Form.Get("name"), "active": true}
	case "POST /v1/prices":
		body = map[string]any{"id": "price_123", "object": "price", "currency": r.Form.Get("currency")}
	case "GET /v1/products":
		body = list("/v1/products",
			map[string]any{"id": "prod_1", "object": "product", "name": "Storage", "active": true, "unit_label": "GB-Hour"},
			map[string]any{"id": "prod_2", "object": "product", "name": "Support", "active": true},
			map[string]any{"id": "prod_3", "object": "product", "name": "Setup", "active": true},
		)
	case "GET /v1/prices":
		body = list("/v1/prices",
			map[string]any{
				"id": "price_1", "object": "price", "currency": "usd", "unit_amount": 2, "active": true,
				"billing_scheme": "per_unit", "product": "prod_1",
				"recurring": map[string]any{"interval": "month", "usage_type": "metered", "meter": "mtr_1"},
			},
		)
	case "GET /v1/billing/meters":
		body = list("/v1/billing/meters",
			map[string]any{"id": "mtr_1", "object": "billing.meter", "display_name": "Storage", "event_name": "storage_usage", "status": "active"},
		)
	default:
		w.WriteHeader(http.StatusNotFound)
		body = map[string]any{"error": map[string]any{"type": "invalid_request_error", "message": "unknown path " + key}}
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeStripe) form(key string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forms[key]
}

func list(path string, data ...map[string]any) map[string]any {
	return map[string]any{"object": "list", "url": path, "has_more": false, "data": data}
}

func TestNewStripeGateway_RequiresKey(t *testing.T) {
	_, err := NewStripeGateway(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestStripeGateway_CreateMeteredItem(t *testing.T) {
	fs, gw := newFakeStripe(t)
	ctx := context.Background()
	item := meteredItem()

	meterID, err := gw.CreateMeter(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, "mtr_123", meterID)

	form := fs.form("POST /v1/billing/meters")
	assert.Equal(t, "storage_usage", form.Get("event_name"))
	assert.Equal(t, "sum", form.Get("default_aggregation[formula]"))
	assert.Equal(t, CustomerPayloadKey, form.Get("customer_mapping[event_payload_key]"))

	productID, err := gw.CreateProduct(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, "prod_123", productID)
	assert.Equal(t, "GB-Hour", fs.form("POST /v1/products").Get("unit_label"))

	priceID, err := gw.CreatePrice(ctx, item, productID, meterID)
	require.NoError(t, err)
	assert.Equal(t, "price_123", priceID)

	form = fs.form("POST /v1/prices")
	assert.Equal(t, "usd", form.Get("currency"))
	assert.Equal(t, "2", form.Get("unit_amount"))
	assert.Equal(t, "metered", form.Get("recurring[usage_type]"))
	assert.Equal(t, "mtr_123", form.Get("recurring[meter]"))
	assert.Equal(t, "prod_123", form.Get("product"))
}

func TestStripeGateway_Lists(t *testing.T) {
	_, gw := newFakeStripe(t)
	ctx := context.Background()

	products, err := gw.ListProducts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "GB-Hour", products[0].UnitLabel)

	prices, err := gw.ListPrices(ctx, 0)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, "prod_1", prices[0].ProductID)
	assert.Equal(t, "mtr_1", prices[0].MeterID)
	assert.Equal(t, int64(2), prices[0].UnitAmount)

	meters, err := gw.ListMeters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, meters, 1)
	assert.Equal(t, "storage_usage", meters[0].EventName)
}

func TestStripeGateway_ErrorSurfaced(t *testing.T) {
	fs, gw := newFakeStripe(t)
	fs.fail["POST /v1/products"] = http.StatusBadRequest

	_, err := gw.CreateProduct(context.Background(), common.BillingLineItem{Name: "Setup", Price: 1})
	require.Error(t, err)

	se, ok := StripeError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, se.HTTPStatusCode)
	assert.Equal(t, "boom", se.Msg)
}
