package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

var ErrOCRFailed = errors.New("ocr service failed")

// DefaultOCREndpoint is the public OCR.space parse endpoint.
const DefaultOCREndpoint = "https://api.ocr.space/parse/image"

// OCRClient calls an OCR.space compatible HTTP endpoint. Table mode is
// requested so price lists come back one row per line.
type OCRClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOCRClient returns a client for endpoint. An empty endpoint uses DefaultOCREndpoint.
func NewOCRClient(endpoint, apiKey string, logger *slog.Logger) *OCRClient {
	if endpoint == "" {
		endpoint = DefaultOCREndpoint
	}
	return &OCRClient{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

type ocrResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool `json:"IsErroredOnProcessing"`
	ErrorMessage          any  `json:"ErrorMessage"`
}

// Recognize uploads the image and returns the recognized text.
func (c *OCRClient) Recognize(ctx context.Context, name string, image []byte) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	fields := map[string]string{
		"apikey":    c.apiKey,
		"isTable":   "true",
		"OCREngine": "2",
		"scale":     "true",
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return "", fmt.Errorf("failed to write ocr field: %w", err)
		}
	}

	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("failed to create ocr form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("failed to write ocr image: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close ocr form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("failed to build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOCRFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read ocr response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrOCRFailed, resp.StatusCode)
	}

	var parsed ocrResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode ocr response: %w", err)
	}
	if parsed.IsErroredOnProcessing {
		return "", fmt.Errorf("%w: %v", ErrOCRFailed, parsed.ErrorMessage)
	}

	var sb strings.Builder
	for _, r := range parsed.ParsedResults {
		sb.WriteString(r.ParsedText)
	}

	c.logger.Info("ocr completed",
		"file", name,
		"bytes", len(image),
		"chars", sb.Len(),
		"duration", time.Since(start))

	return sb.String(), nil
}
