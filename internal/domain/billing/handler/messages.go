package handler

import (
	"github.com/FACorreiaa/billing-intake/internal/domain/billing/gateway"
	"github.com/FACorreiaa/billing-intake/internal/domain/common"
)

type CreateBillingModelRequest struct {
	Name  string                   `json:"name,omitempty"`
	Items []common.BillingLineItem `json:"items"`
}

type BillingModelResponse struct {
	Model *common.BillingModel `json:"model"`
}

type GetBillingModelRequest struct {
	ID string `json:"id"`
}

type ListBillingModelsRequest struct {
	Limit int `json:"limit,omitempty"`
}

type ListBillingModelsResponse struct {
	Models []*common.BillingModel `json:"models"`
}

type ListCatalogRequest struct {
	Limit int `json:"limit,omitempty"`
}

type ListCatalogResponse struct {
	Products []gateway.Product `json:"products"`
	Prices   []gateway.Price   `json:"prices"`
	Meters   []gateway.Meter   `json:"meters"`
}
