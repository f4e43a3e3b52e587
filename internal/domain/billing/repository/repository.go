// Package repository persists billing models and their Stripe object IDs.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/FACorreiaa/billing-intake/internal/domain/common"
)

// BillingModelRepository defines data access operations for billing models
type BillingModelRepository interface {
	// CreateModel stores a model and its items in one transaction.
	CreateModel(ctx context.Context, model *common.BillingModel) error
	// FinishModel stores the final status and the Stripe IDs of every item.
	FinishModel(ctx context.Context, model *common.BillingModel) error
	GetModel(ctx context.Context, id uuid.UUID) (*common.BillingModel, error)
	ListModels(ctx context.Context, userID string, limit int) ([]*common.BillingModel, error)
}
