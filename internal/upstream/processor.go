package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnreachable means the processing service could not be reached at the
	// network level, even after retries. Maps to 502 at the HTTP boundary.
	ErrUnreachable = errors.New("processing service unreachable")
	// ErrBadResponse means the service answered but the payload did not match
	// the documented upload contract.
	ErrBadResponse = errors.New("invalid response from processing service")
)

// APIError carries a non-2xx answer from the processing service; the status
// is relayed to the caller as-is.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("processing service returned %d: %s", e.Status, e.Body)
}

// ProcessedFile is one entry of the upload response. The id becomes the
// document's primary key on our side.
type ProcessedFile struct {
	ID        uuid.UUID       `json:"id"`
	FileName  string          `json:"file_name"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt string          `json:"created_at"`
}

// CreatedTime parses the service's timestamp, falling back to now when the
// format is unrecognized.
func (f ProcessedFile) CreatedTime() time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999"} {
		if ts, err := time.Parse(layout, f.CreatedAt); err == nil {
			return ts
		}
	}
	return time.Now()
}

// UploadPart is one file of a multipart upload request.
type UploadPart struct {
	FileName string
	Content  []byte
}

// ProcessorClient forwards uploaded files to the document processing service.
type ProcessorClient struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	retryDelay time.Duration
}

func NewProcessorClient(baseURL string, timeout time.Duration, retries int, retryDelay time.Duration) *ProcessorClient {
	if retries < 0 {
		retries = 0
	}
	return &ProcessorClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retries:    retries,
		retryDelay: retryDelay,
	}
}

// UploadFiles posts the files as multipart form data and returns the parsed
// per-file results. Network-level failures are retried a fixed number of
// times with a fixed delay; HTTP error statuses are never retried.
func (c *ProcessorClient) UploadFiles(ctx context.Context, parts []UploadPart) ([]ProcessedFile, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: no files to upload", ErrBadResponse)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, part := range parts {
		fw, err := writer.CreateFormFile("files", part.FileName)
		if err != nil {
			return nil, fmt.Errorf("build multipart request failed: %w", err)
		}
		if _, err := fw.Write(part.Content); err != nil {
			return nil, fmt.Errorf("build multipart request failed: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build multipart request failed: %w", err)
	}

	resp, err := c.postWithRetry(ctx, c.baseURL+"/upload/", writer.FormDataContentType(), body.Bytes())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var files []ProcessedFile
	if err := json.Unmarshal(raw, &files); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	for _, f := range files {
		if f.ID == uuid.Nil || f.FileName == "" {
			return nil, fmt.Errorf("%w: missing id or file_name", ErrBadResponse)
		}
	}
	return files, nil
}

func (c *ProcessorClient) postWithRetry(ctx context.Context, url, contentType string, body []byte) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrUnreachable, ctx.Err())
			case <-time.After(c.retryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build upload request failed: %w", err)
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := c.httpClient.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", ErrUnreachable, lastErr)
}
