package common

import (
	"time"

	"github.com/google/uuid"
)

type BillingModelStatus string

const (
	BillingModelStatusPending BillingModelStatus = "pending"
	BillingModelStatusActive  BillingModelStatus = "active"
	BillingModelStatusFailed  BillingModelStatus = "failed"
)

// BillingModel is a reviewed list of line items submitted to Stripe.
type BillingModel struct {
	ID           uuid.UUID          `json:"id" db:"id"`
	UserID       string             `json:"user_id" db:"user_id"`
	Name         string             `json:"name" db:"name"`
	Status       BillingModelStatus `json:"status" db:"status"`
	ErrorMessage *string            `json:"error_message,omitempty" db:"error_message"`
	Items        []BillingModelItem `json:"items"`
	CreatedAt    time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" db:"updated_at"`
}

// BillingModelItem is a line item together with the Stripe objects created for it.
type BillingModelItem struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	ModelID         uuid.UUID       `json:"model_id" db:"model_id"`
	Position        int             `json:"position" db:"position"`
	Item            BillingLineItem `json:"item"`
	StripeProductID *string         `json:"stripe_product_id,omitempty" db:"stripe_product_id"`
	StripePriceID   *string         `json:"stripe_price_id,omitempty" db:"stripe_price_id"`
	StripeMeterID   *string         `json:"stripe_meter_id,omitempty" db:"stripe_meter_id"`
}

type ParseJobStatus string

const (
	ParseJobStatusRunning   ParseJobStatus = "running"
	ParseJobStatusCompleted ParseJobStatus = "completed"
	ParseJobStatusFailed    ParseJobStatus = "failed"
)

// ParseJob records one parse request for auditing. Parsed items are not stored.
type ParseJob struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	UserID       string         `json:"user_id" db:"user_id"`
	Source       string         `json:"source" db:"source"`
	FileName     *string        `json:"file_name,omitempty" db:"file_name"`
	Format       string         `json:"format" db:"format"`
	Status       ParseJobStatus `json:"status" db:"status"`
	ItemsFound   int            `json:"items_found" db:"items_found"`
	LinesSkipped int            `json:"lines_skipped" db:"lines_skipped"`
	ErrorMessage *string        `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty" db:"finished_at"`
}
