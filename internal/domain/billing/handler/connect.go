package handler

import (
	"net/http"

	"connectrpc.com/connect"

	"github.com/FACorreiaa/billing-intake/pkg/rpc"
)

// BillingServiceName is the fully-qualified name of the billing service.
const BillingServiceName = "billing.v1.BillingService"

var (
	BillingServiceCreateBillingModelProcedure = rpc.Procedure(BillingServiceName, "CreateBillingModel")
	BillingServiceGetBillingModelProcedure    = rpc.Procedure(BillingServiceName, "GetBillingModel")
	BillingServiceListBillingModelsProcedure  = rpc.Procedure(BillingServiceName, "ListBillingModels")
	BillingServiceListCatalogProcedure        = rpc.Procedure(BillingServiceName, "ListCatalog")
)

// NewBillingServiceHandler mounts every BillingService procedure.
func NewBillingServiceHandler(h *BillingHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	svc := rpc.NewService(BillingServiceName, opts...)
	rpc.Handle(svc, "CreateBillingModel", h.CreateBillingModel)
	rpc.Handle(svc, "GetBillingModel", h.GetBillingModel)
	rpc.Handle(svc, "ListBillingModels", h.ListBillingModels)
	rpc.Handle(svc, "ListCatalog", h.ListCatalog)
	return svc.Handler()
}
