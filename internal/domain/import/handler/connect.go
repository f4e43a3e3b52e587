package handler

import (
	"net/http"

	"connectrpc.com/connect"

	"github.com/FACorreiaa/billing-intake/pkg/rpc"
)

// ImportServiceName is the fully-qualified name of the import service.
const ImportServiceName = "billing.v1.ImportService"

var (
	ImportServiceSniffFormatProcedure   = rpc.Procedure(ImportServiceName, "SniffFormat")
	ImportServiceParseTextProcedure     = rpc.Procedure(ImportServiceName, "ParseText")
	ImportServiceParseFilesProcedure    = rpc.Procedure(ImportServiceName, "ParseFiles")
	ImportServiceExportItemsProcedure   = rpc.Procedure(ImportServiceName, "ExportItems")
	ImportServiceGetParseJobProcedure   = rpc.Procedure(ImportServiceName, "GetParseJob")
	ImportServiceListParseJobsProcedure = rpc.Procedure(ImportServiceName, "ListParseJobs")
)

// NewImportServiceHandler mounts every ImportService procedure and returns
// the path prefix to register on a mux.
func NewImportServiceHandler(h *ImportHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	svc := rpc.NewService(ImportServiceName, opts...)
	rpc.Handle(svc, "SniffFormat", h.SniffFormat)
	rpc.Handle(svc, "ParseText", h.ParseText)
	rpc.Handle(svc, "ParseFiles", h.ParseFiles)
	rpc.Handle(svc, "ExportItems", h.ExportItems)
	rpc.Handle(svc, "GetParseJob", h.GetParseJob)
	rpc.Handle(svc, "ListParseJobs", h.ListParseJobs)
	return svc.Handler()
}
