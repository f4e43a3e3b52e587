package handler

import (
	"time"

	"github.com/FACorreiaa/billing-intake/internal/domain/common"
)

type SniffFormatRequest struct {
	Text string `json:"text"`
}

type SniffFormatResponse struct {
	Kind        string `json:"kind"`
	Delimiter   string `json:"delimiter,omitempty"`
	FirstLine   int    `json:"first_line"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

type ParseTextRequest struct {
	Text     string `json:"text"`
	Source   string `json:"source,omitempty"`
	Currency string `json:"currency,omitempty"`
}

type ParseTextResponse struct {
	Items        []common.BillingLineItem `json:"items"`
	Format       string                   `json:"format"`
	Strategy     string                   `json:"strategy"`
	LinesTotal   int                      `json:"lines_total"`
	LinesSkipped int                      `json:"lines_skipped"`
	JobID        string                   `json:"job_id,omitempty"`
}

// FileUpload carries raw bytes; JSON clients send them base64 encoded.
type FileUpload struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

type ParseFilesRequest struct {
	Files []FileUpload `json:"files"`
}

type FileOutcome struct {
	Name     string                   `json:"name"`
	Kind     string                   `json:"kind,omitempty"`
	Source   string                   `json:"source,omitempty"`
	Strategy string                   `json:"strategy,omitempty"`
	Items    []common.BillingLineItem `json:"items"`
	Error    string                   `json:"error,omitempty"`
}

type ParseFilesResponse struct {
	Files []FileOutcome `json:"files"`
	JobID string        `json:"job_id,omitempty"`
}

type ExportItemsRequest struct {
	Items    []common.BillingLineItem `json:"items"`
	Format   string                   `json:"format"`
	FileName string                   `json:"file_name,omitempty"`
}

type ExportItemsResponse struct {
	Content     []byte `json:"content"`
	ContentType string `json:"content_type"`
	FileName    string `json:"file_name"`
}

type GetParseJobRequest struct {
	ID string `json:"id"`
}

type ParseJob struct {
	ID           string     `json:"id"`
	Source       string     `json:"source"`
	FileName     string     `json:"file_name,omitempty"`
	Format       string     `json:"format"`
	Status       string     `json:"status"`
	ItemsFound   int        `json:"items_found"`
	LinesSkipped int        `json:"lines_skipped"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

type GetParseJobResponse struct {
	Job ParseJob `json:"job"`
}

type ListParseJobsRequest struct {
	Limit int `json:"limit,omitempty"`
}

type ListParseJobsResponse struct {
	Jobs []ParseJob `json:"jobs"`
}

func toParseJob(j *common.ParseJob) ParseJob {
	out := ParseJob{
		ID:           j.ID.String(),
		Source:       j.Source,
		Format:       j.Format,
		Status:       string(j.Status),
		ItemsFound:   j.ItemsFound,
		LinesSkipped: j.LinesSkipped,
		CreatedAt:    j.CreatedAt,
		FinishedAt:   j.FinishedAt,
	}
	if j.FileName != nil {
		out.FileName = *j.FileName
	}
	if j.ErrorMessage != nil {
		out.ErrorMessage = *j.ErrorMessage
	}
	return out
}
