package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/billing-intake/internal/domain/common"
	"github.com/FACorreiaa/billing-intake/pkg/db"
)

const (
	insertModelQuery = `
		INSERT INTO billing_models (id, user_id, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`
	finishModelQuery = `
		UPDATE billing_models SET status = $2, error_message = $3, updated_at = $4
		WHERE id = $1
	`
	updateItemStripeQuery = `
		UPDATE billing_model_items SET stripe_product_id = $2, stripe_price_id = $3, stripe_meter_id = $4
		WHERE id = $1
	`
	getModelQuery = `
		SELECT id, user_id, name, status, error_message, created_at, updated_at
		FROM billing_models WHERE id = $1
	`
	listItemsQuery = `
		SELECT id, model_id, position, name, price, currency, type, event_name, unit, description,
		       billing_scheme, usage_type, aggregate_usage, interval, tiers, source,
		       stripe_product_id, stripe_price_id, stripe_meter_id
		FROM billing_model_items WHERE model_id = $1
		ORDER BY position
	`
	listModelsQuery = `
		SELECT id, user_id, name, status, error_message, created_at, updated_at
		FROM billing_models WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
)

const defaultListLimit = 50

var itemColumns = []string{
	"id", "model_id", "position", "name", "price", "currency", "type", "event_name", "unit",
	"description", "billing_scheme", "usage_type", "aggregate_usage", "interval", "tiers", "source",
	"stripe_product_id", "stripe_price_id", "stripe_meter_id",
}

// PostgresBillingModelRepository implements BillingModelRepository using PostgreSQL
type PostgresBillingModelRepository struct {
	pool db.PgxPool
}

// NewPostgresBillingModelRepository creates a new PostgreSQL billing model repository
func NewPostgresBillingModelRepository(pool db.PgxPool) *PostgresBillingModelRepository {
	return &PostgresBillingModelRepository{pool: pool}
}

// CreateModel inserts the model row and bulk copies its items
func (r *PostgresBillingModelRepository) CreateModel(ctx context.Context, model *common.BillingModel) error {
	if model.ID == uuid.Nil {
		model.ID = uuid.New()
	}
	if model.Status == "" {
		model.Status = common.BillingModelStatusPending
	}
	now := time.Now().UTC()
	model.CreatedAt = now
	model.UpdatedAt = now

	for i := range model.Items {
		if model.Items[i].ID == uuid.Nil {
			model.Items[i].ID = uuid.New()
		}
		model.Items[i].ModelID = model.ID
		model.Items[i].Position = i
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, insertModelQuery, model.ID, model.UserID, model.Name, model.Status, now); err != nil {
		return fmt.Errorf("failed to create billing model: %w", err)
	}

	if len(model.Items) > 0 {
		items := model.Items
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"billing_model_items"},
			itemColumns,
			pgx.CopyFromSlice(len(items), func(i int) ([]any, error) {
				return itemRow(items[i])
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to insert billing model items: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit billing model: %w", err)
	}
	return nil
}

// FinishModel updates status and Stripe IDs in one transaction
func (r *PostgresBillingModelRepository) FinishModel(ctx context.Context, model *common.BillingModel) error {
	model.UpdatedAt = time.Now().UTC()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, finishModelQuery, model.ID, model.Status, model.ErrorMessage, model.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to finish billing model: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}

	for _, item := range model.Items {
		if item.StripeProductID == nil && item.StripePriceID == nil && item.StripeMeterID == nil {
			continue
		}
		_, err := tx.Exec(ctx, updateItemStripeQuery, item.ID, item.StripeProductID, item.StripePriceID, item.StripeMeterID)
		if err != nil {
			return fmt.Errorf("failed to update billing model item %d: %w", item.Position, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit billing model: %w", err)
	}
	return nil
}

// GetModel loads a model with its items. A missing model returns nil, nil.
func (r *PostgresBillingModelRepository) GetModel(ctx context.Context, id uuid.UUID) (*common.BillingModel, error) {
	model, err := scanModel(r.pool.QueryRow(ctx, getModelQuery, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get billing model: %w", err)
	}

	rows, err := r.pool.Query(ctx, listItemsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list billing model items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan billing model item: %w", err)
		}
		model.Items = append(model.Items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate billing model items: %w", err)
	}

	return model, nil
}

// ListModels returns a user's models, newest first, without items
func (r *PostgresBillingModelRepository) ListModels(ctx context.Context, userID string, limit int) ([]*common.BillingModel, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := r.pool.Query(ctx, listModelsQuery, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list billing models: %w", err)
	}
	defer rows.Close()

	var models []*common.BillingModel
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan billing model: %w", err)
		}
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate billing models: %w", err)
	}

	return models, nil
}

func scanModel(row pgx.Row) (*common.BillingModel, error) {
	var m common.BillingModel
	if err := row.Scan(&m.ID, &m.UserID, &m.Name, &m.Status, &m.ErrorMessage, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanItem(row pgx.Row) (*common.BillingModelItem, error) {
	var (
		it    common.BillingModelItem
		tiers []byte
	)
	err := row.Scan(
		&it.ID, &it.ModelID, &it.Position,
		&it.Item.Name, &it.Item.Price, &it.Item.Currency, &it.Item.Type, &it.Item.EventName,
		&it.Item.Unit, &it.Item.Description, &it.Item.BillingScheme, &it.Item.UsageType,
		&it.Item.AggregateUsage, &it.Item.Interval, &tiers, &it.Item.Source,
		&it.StripeProductID, &it.StripePriceID, &it.StripeMeterID,
	)
	if err != nil {
		return nil, err
	}
	if len(tiers) > 0 {
		if err := json.Unmarshal(tiers, &it.Item.Tiers); err != nil {
			return nil, fmt.Errorf("failed to decode tiers: %w", err)
		}
	}
	return &it, nil
}

func itemRow(it common.BillingModelItem) ([]any, error) {
	var tiers []byte
	if len(it.Item.Tiers) > 0 {
		b, err := json.Marshal(it.Item.Tiers)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tiers: %w", err)
		}
		tiers = b
	}
	i := it.Item
	return []any{
		it.ID, it.ModelID, it.Position, i.Name, i.Price, i.Currency, string(i.Type), i.EventName,
		i.Unit, i.Description, string(i.BillingScheme), string(i.UsageType), i.AggregateUsage,
		i.Interval, tiers, i.Source, it.StripeProductID, it.StripePriceID, it.StripeMeterID,
	}, nil
}
