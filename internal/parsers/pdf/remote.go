package pdf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
)

// RemoteExtractor uploads the document to an extraction service as the
// multipart field "file". The service answers {"expenses": [...]} on success
// and {"error": "..."} otherwise.
type RemoteExtractor struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// RemoteConfig configures a RemoteExtractor.
type RemoteConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// NewRemoteExtractor returns an extractor for the service at cfg.Endpoint.
func NewRemoteExtractor(cfg RemoteConfig) (*RemoteExtractor, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("pdf extraction endpoint is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RemoteExtractor{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

type remoteResponse struct {
	Expenses []Item `json:"expenses"`
	Error    string `json:"error"`
}

// Extract implements Extractor.
func (e *RemoteExtractor) Extract(ctx context.Context, name string, data []byte) (domain.ParseResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return domain.ParseResult{}, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return domain.ParseResult{}, fmt.Errorf("failed to build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return domain.ParseResult{}, fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, &body)
	if err != nil {
		return domain.ParseResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return domain.ParseResult{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return domain.ParseResult{}, fmt.Errorf("failed to read response: %w", err)
	}

	var decoded remoteResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := decoded.Error
		if decodeErr != nil || msg == "" {
			msg = "Failed to parse PDF"
		}
		return domain.ParseResult{}, &ExtractionError{Message: msg}
	}
	if decodeErr != nil {
		return domain.ParseResult{}, fmt.Errorf("failed to decode response: %w", decodeErr)
	}

	return Normalize(decoded.Expenses), nil
}
