// Package service turns reviewed line items into Stripe catalog objects and
// keeps a record of what was created.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/billing-intake/internal/domain/billing/gateway"
	"github.com/FACorreiaa/billing-intake/internal/domain/billing/repository"
	"github.com/FACorreiaa/billing-intake/internal/domain/common"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/normalizer"
)

const maxItemsPerModel = 100

var (
	ErrStripeUnavailable = errors.New("stripe is not configured")
	ErrModelFailed       = errors.New("billing model creation failed")
)

// Catalog is what Stripe currently holds.
type Catalog struct {
	Products []gateway.Product `json:"products"`
	Prices   []gateway.Price   `json:"prices"`
	Meters   []gateway.Meter   `json:"meters"`
}

// BillingService creates billing models
type BillingService struct {
	repo    repository.BillingModelRepository
	gateway gateway.Gateway
	logger  *slog.Logger
}

// NewBillingService creates a new billing service. gw may be nil when no
// Stripe key is configured; creation and catalog calls then fail with
// ErrStripeUnavailable.
func NewBillingService(repo repository.BillingModelRepository, gw gateway.Gateway, logger *slog.Logger) *BillingService {
	return &BillingService{repo: repo, gateway: gw, logger: logger}
}

// CreateBillingModel validates items, stores a pending model and creates the
// meter, product and price of every item in order. The first Stripe failure
// stops the run; the model is then stored as failed together with the IDs
// created so far, and returned with an error wrapping ErrModelFailed.
func (s *BillingService) CreateBillingModel(ctx context.Context, userID, name string, items []common.BillingLineItem) (*common.BillingModel, error) {
	if s.gateway == nil {
		return nil, ErrStripeUnavailable
	}

	clean, err := ValidateItems(items)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Billing model %s", time.Now().UTC().Format("2006-01-02 15:04"))
	}

	model := &common.BillingModel{
		UserID: userID,
		Name:   name,
		Status: common.BillingModelStatusPending,
		Items:  make([]common.BillingModelItem, len(clean)),
	}
	for i, item := range clean {
		model.Items[i] = common.BillingModelItem{Position: i, Item: item}
	}

	if err := s.repo.CreateModel(ctx, model); err != nil {
		return nil, fmt.Errorf("failed to store billing model: %w", err)
	}

	start := time.Now()
	runErr := s.provision(ctx, model)

	model.Status = common.BillingModelStatusActive
	if runErr != nil {
		msg := runErr.Error()
		model.Status = common.BillingModelStatusFailed
		model.ErrorMessage = &msg
	}

	// Record the outcome even when the caller has gone away
	if err := s.repo.FinishModel(context.WithoutCancel(ctx), model); err != nil {
		s.logger.Error("failed to record billing model outcome", "model_id", model.ID, "error", err)
		if runErr == nil {
			return nil, fmt.Errorf("failed to record billing model: %w", err)
		}
	}

	s.logger.Info("billing model processed",
		"model_id", model.ID,
		"status", model.Status,
		"items", len(model.Items),
		"duration", time.Since(start))

	if runErr != nil {
		return model, fmt.Errorf("%w: %w", ErrModelFailed, runErr)
	}
	return model, nil
}

// provision creates Stripe objects item by item. Items that share an event
// name share one meter.
func (s *BillingService) provision(ctx context.Context, model *common.BillingModel) error {
	meters := make(map[string]string)

	for i := range model.Items {
		mi := &model.Items[i]
		item := mi.Item

		var meterID string
		if item.IsMetered() {
			if id, ok := meters[item.EventName]; ok {
				meterID = id
			} else {
				id, err := s.gateway.CreateMeter(ctx, item)
				if err != nil {
					return itemError(i, item, "meter", err)
				}
				meters[item.EventName] = id
				meterID = id
			}
			mi.StripeMeterID = &meterID
		}

		productID, err := s.gateway.CreateProduct(ctx, item)
		if err != nil {
			return itemError(i, item, "product", err)
		}
		mi.StripeProductID = &productID

		priceID, err := s.gateway.CreatePrice(ctx, item, productID, meterID)
		if err != nil {
			return itemError(i, item, "price", err)
		}
		mi.StripePriceID = &priceID
	}

	return nil
}

func itemError(i int, item common.BillingLineItem, object string, err error) error {
	return fmt.Errorf("item %d (%s): create %s: %w", i+1, item.Name, object, err)
}

// GetBillingModel returns a model owned by userID
func (s *BillingService) GetBillingModel(ctx context.Context, userID string, id uuid.UUID) (*common.BillingModel, error) {
	model, err := s.repo.GetModel(ctx, id)
	if err != nil {
		return nil, err
	}
	if model == nil || model.UserID != userID {
		return nil, common.ErrNotFound
	}
	return model, nil
}

// ListBillingModels returns the caller's models, newest first
func (s *BillingService) ListBillingModels(ctx context.Context, userID string, limit int) ([]*common.BillingModel, error) {
	return s.repo.ListModels(ctx, userID, limit)
}

// ListCatalog reads products, prices and meters straight from Stripe
func (s *BillingService) ListCatalog(ctx context.Context, limit int) (*Catalog, error) {
	if s.gateway == nil {
		return nil, ErrStripeUnavailable
	}

	products, err := s.gateway.ListProducts(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	prices, err := s.gateway.ListPrices(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}
	meters, err := s.gateway.ListMeters(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list meters: %w", err)
	}

	return &Catalog{Products: products, Prices: prices, Meters: meters}, nil
}

// ValidateItems checks reviewed items before anything is sent to Stripe and
// fills fields the review screen may have cleared. All problems are reported
// together.
func ValidateItems(items []common.BillingLineItem) ([]common.BillingLineItem, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items", common.ErrBadRequest)
	}
	if len(items) > maxItemsPerModel {
		return nil, fmt.Errorf("%w: %d items exceeds %d", common.ErrBadRequest, len(items), maxItemsPerModel)
	}

	out := make([]common.BillingLineItem, len(items))
	var problems []string
	for i, item := range items {
		item.Name = normalizer.CleanDescription(item.Name)
		if item.Name == "" {
			problems = append(problems, fmt.Sprintf("item %d: name is required", i+1))
		}
		if item.Price < 0 {
			problems = append(problems, fmt.Sprintf("item %d: price must not be negative", i+1))
		}
		if item.Currency == "" {
			item.Currency = common.DefaultCurrency
		}
		item.Currency = strings.ToUpper(item.Currency)
		if len(item.Currency) != 3 {
			problems = append(problems, fmt.Sprintf("item %d: invalid currency %q", i+1, item.Currency))
		}
		if item.BillingScheme == "" {
			item.BillingScheme = common.BillingSchemePerUnit
		}

		switch item.Type {
		case common.BillingTypeMetered:
			event := item.EventName
			if strings.TrimSpace(event) == "" {
				event = item.Name
			}
			item.EventName = normalizer.NormalizeEventName(event)
			if strings.Trim(item.EventName, "_") == "" {
				problems = append(problems, fmt.Sprintf("item %d: event name is required for metered items", i+1))
			}
			item.UsageType = common.UsageTypeMetered
			if item.AggregateUsage == "" {
				item.AggregateUsage = common.AggregateUsageSum
			}
			if item.Interval == "" {
				item.Interval = common.DefaultInterval
			}
		case common.BillingTypeRecurring:
			item.UsageType = common.UsageTypeLicensed
			if item.Interval == "" {
				item.Interval = common.DefaultInterval
			}
		case common.BillingTypeOneTime:
			if item.BillingScheme == common.BillingSchemeTiered {
				problems = append(problems, fmt.Sprintf("item %d: tiered pricing needs a recurring or metered item", i+1))
			}
		default:
			problems = append(problems, fmt.Sprintf("item %d: unknown type %q", i+1, item.Type))
		}

		out[i] = item
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", common.ErrBadRequest, strings.Join(problems, "; "))
	}
	return out, nil
}
