// Package handler implements the BillingService Connect RPC handlers.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/FACorreiaa/billing-intake/internal/domain/billing/gateway"
	billingservice "github.com/FACorreiaa/billing-intake/internal/domain/billing/service"
	"github.com/FACorreiaa/billing-intake/internal/domain/common"
	"github.com/FACorreiaa/billing-intake/pkg/interceptors"
)

// ModelIDHeader carries the ID of a model that was stored as failed.
const ModelIDHeader = "Billing-Model-Id"

// BillingHandler implements the BillingService Connect handlers.
type BillingHandler struct {
	billingSvc *billingservice.BillingService
	logger     *slog.Logger
}

// NewBillingHandler constructs a new handler.
func NewBillingHandler(billingSvc *billingservice.BillingService, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		billingSvc: billingSvc,
		logger:     logger,
	}
}

// CreateBillingModel submits reviewed items to Stripe.
func (h *BillingHandler) CreateBillingModel(
	ctx context.Context,
	req *connect.Request[CreateBillingModelRequest],
) (*connect.Response[BillingModelResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if len(req.Msg.Items) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("items are required"))
	}

	model, err := h.billingSvc.CreateBillingModel(ctx, userID, req.Msg.Name, req.Msg.Items)
	if err != nil {
		connectErr := h.toConnectError(err)
		if model != nil {
			connectErr.Meta().Set(ModelIDHeader, model.ID.String())
		}
		return nil, connectErr
	}

	email, _ := interceptors.GetUserEmailFromContext(ctx)
	h.logger.Info("billing model created",
		"model_id", model.ID,
		"user_id", userID,
		"user_email", email,
		"items", len(model.Items))

	return connect.NewResponse(&BillingModelResponse{Model: model}), nil
}

// GetBillingModel returns one of the caller's models with its items.
func (h *BillingHandler) GetBillingModel(
	ctx context.Context,
	req *connect.Request[GetBillingModelRequest],
) (*connect.Response[BillingModelResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(req.Msg.ID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("invalid id"))
	}

	model, err := h.billingSvc.GetBillingModel(ctx, userID, id)
	if err != nil {
		return nil, h.toConnectError(err)
	}
	return connect.NewResponse(&BillingModelResponse{Model: model}), nil
}

// ListBillingModels returns the caller's models, newest first.
func (h *BillingHandler) ListBillingModels(
	ctx context.Context,
	req *connect.Request[ListBillingModelsRequest],
) (*connect.Response[ListBillingModelsResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.Limit < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("limit must not be negative"))
	}

	models, err := h.billingSvc.ListBillingModels(ctx, userID, req.Msg.Limit)
	if err != nil {
		return nil, h.toConnectError(err)
	}
	if models == nil {
		models = []*common.BillingModel{}
	}
	return connect.NewResponse(&ListBillingModelsResponse{Models: models}), nil
}

// ListCatalog lists what the Stripe account currently holds.
func (h *BillingHandler) ListCatalog(
	ctx context.Context,
	req *connect.Request[ListCatalogRequest],
) (*connect.Response[ListCatalogResponse], error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}

	catalog, err := h.billingSvc.ListCatalog(ctx, req.Msg.Limit)
	if err != nil {
		return nil, h.toConnectError(err)
	}

	return connect.NewResponse(&ListCatalogResponse{
		Products: catalog.Products,
		Prices:   catalog.Prices,
		Meters:   catalog.Meters,
	}), nil
}

func requireUser(ctx context.Context) (string, error) {
	userID, ok := interceptors.GetUserIDFromContext(ctx)
	if !ok {
		return "", connect.NewError(connect.CodeUnauthenticated, errors.New("authentication required"))
	}
	return userID, nil
}

func (h *BillingHandler) toConnectError(err error) *connect.Error {
	if se, ok := gateway.StripeError(err); ok {
		h.logger.Warn("stripe request failed",
			"status", se.HTTPStatusCode,
			"type", se.Type,
			"code", se.Code,
			"request_id", se.RequestID)
		code := connect.CodeFailedPrecondition
		if se.HTTPStatusCode >= http.StatusInternalServerError || se.HTTPStatusCode == http.StatusTooManyRequests {
			code = connect.CodeUnavailable
		}
		return connect.NewError(code, err)
	}

	switch {
	case errors.Is(err, common.ErrBadRequest), errors.Is(err, gateway.ErrInvalidItem):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, common.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, errors.New("billing model not found"))
	case errors.Is(err, billingservice.ErrStripeUnavailable):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, billingservice.ErrModelFailed):
		// Network failures reaching Stripe
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		h.logger.Error("billing request failed", "error", err)
		return connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
}
