// Package service provides the import orchestration logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/billing-intake/internal/domain/common"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/export"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/extract"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/parser"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/repository"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/sniffer"
	"github.com/FACorreiaa/billing-intake/pkg/observability"
)

// maxFilesPerRequest bounds ParseFiles.
const maxFilesPerRequest = 20

var ErrTooManyFiles = errors.New("too many files in one request")

// TextRequest is one pasted document.
type TextRequest struct {
	UserID   string
	Text     string
	Source   string
	Currency string
}

// TextResult is a parse result together with the job that recorded it.
type TextResult struct {
	JobID uuid.UUID
	*parser.Result
}

// Upload is one file of a ParseFiles request.
type Upload struct {
	Name    string
	Content []byte
}

// FileResult is the outcome for one upload. Err is set when the file could
// not be read or yielded no items; other files are unaffected.
type FileResult struct {
	Name     string
	Kind     extract.Kind
	Source   string
	Strategy parser.Strategy
	Items    []common.BillingLineItem
	Err      error
}

// FilesResult lists file outcomes in upload order.
type FilesResult struct {
	JobID uuid.UUID
	Files []FileResult
}

// ImportService orchestrates extraction, parsing and export
type ImportService struct {
	repo      repository.ParseJobRepository
	parser    *parser.Parser
	extractor *extract.Extractor
	logger    *slog.Logger
}

type fileJob struct {
	index  int
	upload Upload
}

type fileOutcome struct {
	index        int
	result       FileResult
	linesSkipped int
}

// NewImportService creates a new import service. repo may be nil, in which
// case parse jobs are not recorded.
func NewImportService(repo repository.ParseJobRepository, p *parser.Parser, extractor *extract.Extractor, logger *slog.Logger) *ImportService {
	if p == nil {
		p = parser.New(parser.Options{})
	}
	if extractor == nil {
		extractor = extract.New(nil, 0)
	}
	return &ImportService{
		repo:      repo,
		parser:    p,
		extractor: extractor,
		logger:    logger,
	}
}

// SniffFormat reports the detected document shape
func (s *ImportService) SniffFormat(text string) sniffer.Format {
	return s.parser.Sniff(text)
}

// ParseText parses pasted text and records a parse job. common.ErrNoItemsFound
// is returned alongside the (empty) result when nothing was detected.
func (s *ImportService) ParseText(ctx context.Context, req TextRequest) (*TextResult, error) {
	p := s.parser
	if req.Source != "" {
		p = p.WithSource(req.Source)
	}
	if req.Currency != "" {
		p = p.WithCurrency(strings.ToUpper(req.Currency))
	}

	source := req.Source
	if source == "" {
		source = common.SourcePasteParser
	}

	job := s.startJob(ctx, req.UserID, source, nil)

	start := time.Now()
	res, err := p.Parse(req.Text)
	observability.RecordParse(source, string(res.Strategy), len(res.Items), err)

	s.finishJob(ctx, job, res, err)

	s.logger.Info("text parsed",
		"source", source,
		"strategy", res.Strategy,
		"items", len(res.Items),
		"lines_skipped", res.LinesSkipped,
		"duration", time.Since(start))

	out := &TextResult{Result: res}
	if job != nil {
		out.JobID = job.ID
	}
	if err != nil {
		return out, err
	}
	return out, nil
}

// ParseFiles extracts and parses uploads concurrently. Results keep upload
// order. Per-file failures are reported on the file, not as an error.
func (s *ImportService) ParseFiles(ctx context.Context, userID string, uploads []Upload) (*FilesResult, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: no files", common.ErrBadRequest)
	}
	if len(uploads) > maxFilesPerRequest {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyFiles, len(uploads), maxFilesPerRequest)
	}

	var fileName *string
	if len(uploads) == 1 {
		fileName = &uploads[0].Name
	}
	job := s.startJob(ctx, userID, extract.SourceFile, fileName)

	parseCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := s.parseFilesStream(parseCtx, uploads)

	files := make([]FileResult, len(uploads))
	var itemsFound, linesSkipped int
	var fileErrors []string
	for outcome := range outcomes {
		files[outcome.index] = outcome.result
		itemsFound += len(outcome.result.Items)
		linesSkipped += outcome.linesSkipped
		if outcome.result.Err != nil {
			fileErrors = append(fileErrors, fmt.Sprintf("file %d (%s): %v", outcome.index+1, outcome.result.Name, outcome.result.Err))
		}
	}

	if err := ctx.Err(); err != nil {
		s.failJob(ctx, job, err)
		return nil, err
	}

	// Workers finish out of order
	sort.Strings(fileErrors)

	if job != nil && s.repo != nil {
		stats := repository.JobStats{
			Status:       common.ParseJobStatusCompleted,
			Format:       kindsOf(files),
			ItemsFound:   itemsFound,
			LinesSkipped: linesSkipped,
		}
		if len(fileErrors) > 0 {
			msg := strings.Join(fileErrors, "; ")
			stats.ErrorMessage = &msg
		}
		if itemsFound == 0 {
			stats.Status = common.ParseJobStatusFailed
		}
		if err := s.repo.FinishParseJob(ctx, job.ID, stats); err != nil {
			s.logger.Warn("failed to finish parse job", "job_id", job.ID, "error", err)
		}
	}

	s.logger.Info("files parsed",
		"files", len(uploads),
		"items", itemsFound,
		"failed_files", len(fileErrors))

	out := &FilesResult{Files: files}
	if job != nil {
		out.JobID = job.ID
	}
	return out, nil
}

// parseFilesStream fans uploads out to a bounded worker pool.
func (s *ImportService) parseFilesStream(ctx context.Context, uploads []Upload) <-chan fileOutcome {
	workerCount := runtime.GOMAXPROCS(0)
	if workerCount > len(uploads) {
		workerCount = len(uploads)
	}
	if workerCount < 1 {
		workerCount = 1
	}

	results := make(chan fileOutcome, workerCount*4)
	jobs := make(chan fileJob, workerCount*4)

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					return
				}
				outcome := s.parseFile(ctx, job)
				select {
				case results <- outcome:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, u := range uploads {
			select {
			case jobs <- fileJob{index: i, upload: u}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// parseFile extracts one upload and runs the parser over its text
func (s *ImportService) parseFile(ctx context.Context, job fileJob) fileOutcome {
	out := fileOutcome{index: job.index, result: FileResult{Name: job.upload.Name}}

	doc, err := s.extractor.FromFile(ctx, job.upload.Name, job.upload.Content)
	if err != nil {
		observability.RecordParse(extract.SourceFile, "", 0, err)
		out.result.Err = err
		return out
	}
	out.result.Kind = doc.Kind
	out.result.Source = doc.Source

	res, err := s.parser.WithSource(doc.Source).Parse(doc.Text)
	observability.RecordParse(doc.Source, string(res.Strategy), len(res.Items), err)

	out.result.Items = res.Items
	out.result.Strategy = res.Strategy
	out.result.Err = err
	out.linesSkipped = res.LinesSkipped
	return out
}

// ExportItems renders reviewed items as a download
func (s *ImportService) ExportItems(items []common.BillingLineItem, format, baseName string) (*export.File, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items to export", common.ErrBadRequest)
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	file, err := export.Render(items, f, baseName)
	if err != nil {
		return nil, fmt.Errorf("failed to render export: %w", err)
	}

	s.logger.Info("items exported", "format", f, "items", len(items), "bytes", len(file.Content))
	return file, nil
}

// GetParseJob returns a job owned by userID
func (s *ImportService) GetParseJob(ctx context.Context, userID string, id uuid.UUID) (*common.ParseJob, error) {
	if s.repo == nil {
		return nil, common.ErrNotFound
	}
	job, err := s.repo.GetParseJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil || job.UserID != userID {
		return nil, common.ErrNotFound
	}
	return job, nil
}

// ListParseJobs returns the caller's recent jobs
func (s *ImportService) ListParseJobs(ctx context.Context, userID string, limit int) ([]*common.ParseJob, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.ListParseJobs(ctx, userID, limit)
}

// startJob records a running job. Recording is best effort: a failure is
// logged and parsing continues without a job.
func (s *ImportService) startJob(ctx context.Context, userID, source string, fileName *string) *common.ParseJob {
	if s.repo == nil || userID == "" {
		return nil
	}
	job := &common.ParseJob{
		UserID:   userID,
		Source:   source,
		FileName: fileName,
		Status:   common.ParseJobStatusRunning,
	}
	if err := s.repo.CreateParseJob(ctx, job); err != nil {
		s.logger.Warn("failed to create parse job", "error", err)
		return nil
	}
	return job
}

func (s *ImportService) finishJob(ctx context.Context, job *common.ParseJob, res *parser.Result, parseErr error) {
	if job == nil {
		return
	}
	stats := repository.JobStats{
		Status:       common.ParseJobStatusCompleted,
		Format:       FormatLabel(res.Format),
		ItemsFound:   len(res.Items),
		LinesSkipped: res.LinesSkipped,
	}
	if parseErr != nil {
		msg := parseErr.Error()
		stats.Status = common.ParseJobStatusFailed
		stats.ErrorMessage = &msg
	}
	if err := s.repo.FinishParseJob(ctx, job.ID, stats); err != nil {
		s.logger.Warn("failed to finish parse job", "job_id", job.ID, "error", err)
	}
}

func (s *ImportService) failJob(ctx context.Context, job *common.ParseJob, cause error) {
	if job == nil {
		return
	}
	msg := cause.Error()
	stats := repository.JobStats{Status: common.ParseJobStatusFailed, ErrorMessage: &msg}
	// ctx is already done here
	if err := s.repo.FinishParseJob(context.WithoutCancel(ctx), job.ID, stats); err != nil {
		s.logger.Warn("failed to finish parse job", "job_id", job.ID, "error", err)
	}
}

// FormatLabel renders a sniffed format as "tabular:tab", "json" and so on.
func FormatLabel(f sniffer.Format) string {
	if f.Kind == sniffer.KindTabular {
		return fmt.Sprintf("%s:%s", f.Kind, f.Delimiter)
	}
	return string(f.Kind)
}

func kindsOf(files []FileResult) string {
	seen := make(map[extract.Kind]bool)
	var kinds []string
	for _, f := range files {
		if f.Kind == "" || seen[f.Kind] {
			continue
		}
		seen[f.Kind] = true
		kinds = append(kinds, string(f.Kind))
	}
	sort.Strings(kinds)
	return strings.Join(kinds, ",")
}
