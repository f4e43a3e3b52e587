package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/billing-intake/internal/domain/billing/gateway"
	"github.com/FACorreiaa/billing-intake/internal/domain/common"
)

// MockModelRepo is a mock implementation of BillingModelRepository
type MockModelRepo struct {
	mock.Mock
}

func (m *MockModelRepo) CreateModel(ctx context.Context, model *common.BillingModel) error {
	args := m.Called(ctx, model)
	return args.Error(0)
}

func (m *MockModelRepo) FinishModel(ctx context.Context, model *common.BillingModel) error {
	args := m.Called(ctx, model)
	return args.Error(0)
}

func (m *MockModelRepo) GetModel(ctx context.Context, id uuid.UUID) (*common.BillingModel, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*common.BillingModel), args.Error(1)
}

func (m *MockModelRepo) ListModels(ctx context.Context, userID string, limit int) ([]*common.BillingModel, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*common.BillingModel), args.Error(1)
}

// MockGateway is a mock implementation of gateway.Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateMeter(ctx context.Context, item common.BillingLineItem) (string, error) {
	args := m.Called(ctx, item)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) CreateProduct(ctx context.Context, item common.BillingLineItem) (string, error) {
	args := m.Called(ctx, item)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) CreatePrice(ctx context.Context, item common.BillingLineItem, productID, meterID string) (string, error) {
	args := m.Called(ctx, item, productID, meterID)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) ListProducts(ctx context.Context, limit int) ([]gateway.Product, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]gateway.Product), args.Error(1)
}

func (m *MockGateway) ListPrices(ctx context.Context, limit int) ([]gateway.Price, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]gateway.Price), args.Error(1)
}

func (m *MockGateway) ListMeters(ctx context.Context, limit int) ([]gateway.Meter, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]gateway.Meter), args.Error(1)
}

func setupBillingServiceTest() (*BillingService, *MockModelRepo, *MockGateway) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := new(MockModelRepo)
	gw := new(MockGateway)
	return NewBillingService(repo, gw, logger), repo, gw
}

func byName(name string) any {
	return mock.MatchedBy(func(item common.BillingLineItem) bool { return item.Name == name })
}

func reviewedItems() []common.BillingLineItem {
	return []common.BillingLineItem{
		{Name: "Storage", Price: 0.02, Type: common.BillingTypeMetered, EventName: "storage_usage", Unit: "GB-Hour"},
		{Name: "Storage overage", Price: 0.03, Type: common.BillingTypeMetered, EventName: "Storage Usage", Unit: "GB-Hour"},
		{Name: "Support", Price: 49, Type: common.BillingTypeRecurring},
	}
}

func TestBillingService_CreateBillingModel(t *testing.T) {
	svc, repo, gw := setupBillingServiceTest()
	ctx := context.Background()

	repo.On("CreateModel", ctx, mock.AnythingOfType("*common.BillingModel")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*common.BillingModel).ID = uuid.New()
		}).
		Return(nil).Once()
	repo.On("FinishModel", mock.Anything, mock.AnythingOfType("*common.BillingModel")).Return(nil).Once()

	// Both storage items share one meter once "Storage Usage" is normalized
	gw.On("CreateMeter", ctx, byName("Storage")).Return("mtr_1", nil).Once()
	gw.On("CreateProduct", ctx, byName("Storage")).Return("prod_1", nil).Once()
	gw.On("CreatePrice", ctx, byName("Storage"), "prod_1", "mtr_1").Return("price_1", nil).Once()
	gw.On("CreateProduct", ctx, byName("Storage overage")).Return("prod_2", nil).Once()
	gw.On("CreatePrice", ctx, byName("Storage overage"), "prod_2", "mtr_1").Return("price_2", nil).Once()
	gw.On("CreateProduct", ctx, byName("Support")).Return("prod_3", nil).Once()
	gw.On("CreatePrice", ctx, byName("Support"), "prod_3", "").Return("price_3", nil).Once()

	model, err := svc.CreateBillingModel(ctx, "user-1", "  Acme  ", reviewedItems())
	require.NoError(t, err)

	assert.Equal(t, "Acme", model.Name)
	assert.Equal(t, common.BillingModelStatusActive, model.Status)
	assert.Nil(t, model.ErrorMessage)
	require.Len(t, model.Items, 3)

	assert.Equal(t, "mtr_1", *model.Items[0].StripeMeterID)
	assert.Equal(t, "mtr_1", *model.Items[1].StripeMeterID)
	assert.Nil(t, model.Items[2].StripeMeterID)
	assert.Equal(t, "price_3", *model.Items[2].StripePriceID)

	// Defaults filled before Stripe sees the item
	assert.Equal(t, "USD", model.Items[0].Item.Currency)
	assert.Equal(t, common.UsageTypeLicensed, model.Items[2].Item.UsageType)
	assert.Equal(t, "month", model.Items[2].Item.Interval)

	repo.AssertExpectations(t)
	gw.AssertExpectations(t)
	gw.AssertNumberOfCalls(t, "CreateMeter", 1)
}

func TestBillingService_CreateBillingModel_StripeFailure(t *testing.T) {
	svc, repo, gw := setupBillingServiceTest()
	ctx := context.Background()

	var finished *common.BillingModel
	repo.On("CreateModel", ctx, mock.Anything).Return(nil).Once()
	repo.On("FinishModel", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { finished = args.Get(1).(*common.BillingModel) }).
		Return(nil).Once()

	stripeErr := errors.New("stripe unavailable")
	gw.On("CreateMeter", ctx, byName("Storage")).Return("mtr_1", nil).Once()
	gw.On("CreateProduct", ctx, byName("Storage")).Return("", stripeErr).Once()

	model, err := svc.CreateBillingModel(ctx, "user-1", "Acme", reviewedItems()[:1])
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelFailed)
	assert.ErrorIs(t, err, stripeErr)

	require.NotNil(t, model)
	assert.Same(t, model, finished)
	assert.Equal(t, common.BillingModelStatusFailed, model.Status)
	require.NotNil(t, model.ErrorMessage)
	assert.Contains(t, *model.ErrorMessage, "item 1 (Storage): create product")
	// The meter created before the failure stays recorded
	assert.Equal(t, "mtr_1", *model.Items[0].StripeMeterID)
	assert.Nil(t, model.Items[0].StripeProductID)

	gw.AssertNotCalled(t, "CreatePrice", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestBillingService_CreateBillingModel_Validation(t *testing.T) {
	svc, repo, gw := setupBillingServiceTest()

	_, err := svc.CreateBillingModel(context.Background(), "user-1", "x", nil)
	assert.ErrorIs(t, err, common.ErrBadRequest)

	_, err = svc.CreateBillingModel(context.Background(), "user-1", "x", []common.BillingLineItem{
		{Name: " ", Price: 1, Type: common.BillingTypeOneTime},
		{Name: "Setup", Price: -1, Type: common.BillingTypeOneTime},
		{Name: "Seats", Price: 1, Type: "weekly"},
	})
	require.ErrorIs(t, err, common.ErrBadRequest)
	assert.Contains(t, err.Error(), "item 1: name is required")
	assert.Contains(t, err.Error(), "item 2: price must not be negative")
	assert.Contains(t, err.Error(), `item 3: unknown type "weekly"`)

	repo.AssertNotCalled(t, "CreateModel", mock.Anything, mock.Anything)
	gw.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
}

func TestBillingService_NoGateway(t *testing.T) {
	svc := NewBillingService(new(MockModelRepo), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := svc.CreateBillingModel(context.Background(), "user-1", "x", reviewedItems())
	assert.ErrorIs(t, err, ErrStripeUnavailable)

	_, err = svc.ListCatalog(context.Background(), 10)
	assert.ErrorIs(t, err, ErrStripeUnavailable)
}

func TestValidateItems_DerivesEventName(t *testing.T) {
	items, err := ValidateItems([]common.BillingLineItem{
		{Name: "API Calls", Price: 0.001, Currency: "eur", Type: common.BillingTypeMetered},
	})
	require.NoError(t, err)

	assert.Equal(t, "api_calls", items[0].EventName)
	assert.Equal(t, "EUR", items[0].Currency)
	assert.Equal(t, common.UsageTypeMetered, items[0].UsageType)
	assert.Equal(t, "sum", items[0].AggregateUsage)
	assert.Equal(t, common.BillingSchemePerUnit, items[0].BillingScheme)
}

func TestValidateItems_NormalizesEventName(t *testing.T) {
	items, err := ValidateItems([]common.BillingLineItem{
		{Name: "Storage", Price: 0.02, Type: common.BillingTypeMetered, EventName: "Storage Usage"},
		{Name: "Egress", Price: 0.09, Type: common.BillingTypeMetered, EventName: " egress-GB "},
	})
	require.NoError(t, err)
	assert.Equal(t, "storage_usage", items[0].EventName)
	assert.Equal(t, "egress_gb", items[1].EventName)

	_, err = ValidateItems([]common.BillingLineItem{
		{Name: "!!!", Price: 0.02, Type: common.BillingTypeMetered},
	})
	require.ErrorIs(t, err, common.ErrBadRequest)
	assert.Contains(t, err.Error(), "item 1: event name is required")
}

func TestBillingService_GetBillingModel(t *testing.T) {
	svc, repo, _ := setupBillingServiceTest()
	ctx := context.Background()
	id := uuid.New()

	repo.On("GetModel", ctx, id).Return(&common.BillingModel{ID: id, UserID: "user-1"}, nil)

	model, err := svc.GetBillingModel(ctx, "user-1", id)
	require.NoError(t, err)
	assert.Equal(t, id, model.ID)

	_, err = svc.GetBillingModel(ctx, "user-2", id)
	assert.ErrorIs(t, err, common.ErrNotFound)

	missing := uuid.New()
	repo.On("GetModel", ctx, missing).Return(nil, nil)
	_, err = svc.GetBillingModel(ctx, "user-1", missing)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestBillingService_ListCatalog(t *testing.T) {
	svc, _, gw := setupBillingServiceTest()
	ctx := context.Background()

	gw.On("ListProducts", ctx, 5).Return([]gateway.Product{{ID: "prod_1"}}, nil)
	gw.On("ListPrices", ctx, 5).Return([]gateway.Price{{ID: "price_1"}}, nil)
	gw.On("ListMeters", ctx, 5).Return([]gateway.Meter{}, errors.New("forbidden"))

	_, err := svc.ListCatalog(ctx, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list meters")
}
