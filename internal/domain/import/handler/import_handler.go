// Package handler implements the ImportService Connect RPC handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/FACorreiaa/billing-intake/internal/domain/common"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/export"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/extract"
	importservice "github.com/FACorreiaa/billing-intake/internal/domain/import/service"
	"github.com/FACorreiaa/billing-intake/pkg/interceptors"
)

// maxTextBytes bounds pasted text. Files have their own limit in extract.
const maxTextBytes = 1 << 20

// ImportHandler implements the ImportService Connect handlers.
type ImportHandler struct {
	importSvc *importservice.ImportService
	logger    *slog.Logger
}

// NewImportHandler constructs a new handler.
func NewImportHandler(importSvc *importservice.ImportService, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{
		importSvc: importSvc,
		logger:    logger,
	}
}

// SniffFormat reports how a document would be read without parsing it.
func (h *ImportHandler) SniffFormat(
	_ context.Context,
	req *connect.Request[SniffFormatRequest],
) (*connect.Response[SniffFormatResponse], error) {
	if len(req.Msg.Text) > maxTextBytes {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("text is too large"))
	}

	f := h.importSvc.SniffFormat(req.Msg.Text)
	return connect.NewResponse(&SniffFormatResponse{
		Kind:        string(f.Kind),
		Delimiter:   string(f.Delimiter),
		FirstLine:   f.FirstLine,
		Fingerprint: f.Fingerprint,
	}), nil
}

// ParseText parses pasted billing data.
func (h *ImportHandler) ParseText(
	ctx context.Context,
	req *connect.Request[ParseTextRequest],
) (*connect.Response[ParseTextResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Msg.Text) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("text is required"))
	}
	if len(req.Msg.Text) > maxTextBytes {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("text is too large"))
	}
	if c := req.Msg.Currency; c != "" && len(c) != 3 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("currency must be a 3-letter code"))
	}

	result, err := h.importSvc.ParseText(ctx, importservice.TextRequest{
		UserID:   userID,
		Text:     req.Msg.Text,
		Source:   req.Msg.Source,
		Currency: req.Msg.Currency,
	})
	if err != nil {
		return nil, h.toConnectError(err)
	}

	resp := &ParseTextResponse{
		Items:        result.Items,
		Format:       importservice.FormatLabel(result.Format),
		Strategy:     string(result.Strategy),
		LinesTotal:   result.LinesTotal,
		LinesSkipped: result.LinesSkipped,
	}
	if result.JobID != uuid.Nil {
		resp.JobID = result.JobID.String()
	}
	return connect.NewResponse(resp), nil
}

// ParseFiles extracts and parses uploaded files. Files that fail are reported
// individually; the call only fails when no file yielded anything.
func (h *ImportHandler) ParseFiles(
	ctx context.Context,
	req *connect.Request[ParseFilesRequest],
) (*connect.Response[ParseFilesResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	if len(req.Msg.Files) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("files are required"))
	}

	uploads := make([]importservice.Upload, len(req.Msg.Files))
	for i, f := range req.Msg.Files {
		uploads[i] = importservice.Upload{Name: f.Name, Content: f.Content}
	}

	result, err := h.importSvc.ParseFiles(ctx, userID, uploads)
	if err != nil {
		return nil, h.toConnectError(err)
	}

	resp := &ParseFilesResponse{Files: make([]FileOutcome, len(result.Files))}
	if result.JobID != uuid.Nil {
		resp.JobID = result.JobID.String()
	}

	itemsFound := 0
	var fileErrors []string
	for i, f := range result.Files {
		out := FileOutcome{
			Name:     f.Name,
			Kind:     string(f.Kind),
			Source:   f.Source,
			Strategy: string(f.Strategy),
			Items:    f.Items,
		}
		if out.Items == nil {
			out.Items = []common.BillingLineItem{}
		}
		if f.Err != nil {
			out.Error = f.Err.Error()
			fileErrors = append(fileErrors, fmt.Sprintf("%s: %v", f.Name, f.Err))
		}
		itemsFound += len(f.Items)
		resp.Files[i] = out
	}

	if itemsFound == 0 && len(fileErrors) > 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New(formatImportErrors(fileErrors)))
	}

	return connect.NewResponse(resp), nil
}

// ExportItems renders reviewed items as an XLSX or CSV download.
func (h *ImportHandler) ExportItems(
	_ context.Context,
	req *connect.Request[ExportItemsRequest],
) (*connect.Response[ExportItemsResponse], error) {
	file, err := h.importSvc.ExportItems(req.Msg.Items, req.Msg.Format, req.Msg.FileName)
	if err != nil {
		return nil, h.toConnectError(err)
	}

	return connect.NewResponse(&ExportItemsResponse{
		Content:     file.Content,
		ContentType: file.ContentType,
		FileName:    file.Name,
	}), nil
}

// GetParseJob returns one of the caller's parse jobs.
func (h *ImportHandler) GetParseJob(
	ctx context.Context,
	req *connect.Request[GetParseJobRequest],
) (*connect.Response[GetParseJobResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(req.Msg.ID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("invalid id"))
	}

	job, err := h.importSvc.GetParseJob(ctx, userID, id)
	if err != nil {
		return nil, h.toConnectError(err)
	}
	return connect.NewResponse(&GetParseJobResponse{Job: toParseJob(job)}), nil
}

// ListParseJobs returns the caller's recent parse jobs.
func (h *ImportHandler) ListParseJobs(
	ctx context.Context,
	req *connect.Request[ListParseJobsRequest],
) (*connect.Response[ListParseJobsResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.Limit < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("limit must not be negative"))
	}

	jobs, err := h.importSvc.ListParseJobs(ctx, userID, req.Msg.Limit)
	if err != nil {
		return nil, h.toConnectError(err)
	}

	resp := &ListParseJobsResponse{Jobs: make([]ParseJob, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toParseJob(j))
	}
	return connect.NewResponse(resp), nil
}

func requireUser(ctx context.Context) (string, error) {
	userID, ok := interceptors.GetUserIDFromContext(ctx)
	if !ok {
		return "", connect.NewError(connect.CodeUnauthenticated, errors.New("authentication required"))
	}
	return userID, nil
}

func (h *ImportHandler) toConnectError(err error) error {
	switch {
	case errors.Is(err, common.ErrNoItemsFound),
		errors.Is(err, common.ErrBadRequest),
		errors.Is(err, importservice.ErrTooManyFiles),
		errors.Is(err, export.ErrUnknownFormat),
		errors.Is(err, extract.ErrFileTooLarge),
		errors.Is(err, extract.ErrUnsupportedFile):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, common.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, errors.New("parse job not found"))
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		h.logger.Error("import request failed", "error", err)
		return connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
}

const maxImportErrorsInResponse = 10

func formatImportErrors(errs []string) string {
	if len(errs) == 0 {
		return "import failed: no items detected"
	}

	limit := min(len(errs), maxImportErrorsInResponse)

	message := fmt.Sprintf("import failed: %d error(s). ", len(errs))
	message += strings.Join(errs[:limit], "; ")
	if limit < len(errs) {
		message += fmt.Sprintf(" (and %d more)", len(errs)-limit)
	}

	return message
}
