package categorize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPCategorizer calls a remote categorization endpoint that accepts
// {"expenses": [{description, amount}]} and answers
// {"categorizations": [{index, category, confidence}]} or {"error": "..."}.
type HTTPCategorizer struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// HTTPConfig configures an HTTPCategorizer.
type HTTPConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// NewHTTPCategorizer returns a categorizer for the endpoint in cfg.
func NewHTTPCategorizer(cfg HTTPConfig) (*HTTPCategorizer, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("categorization endpoint is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPCategorizer{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Request is the body of a categorization call.
type Request struct {
	Expenses []Item `json:"expenses"`
}

// Response is the body of a categorization answer.
type Response struct {
	Categorizations []Result `json:"categorizations,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// Categorize implements Categorizer.
func (h *HTTPCategorizer) Categorize(ctx context.Context, items []Item) ([]Result, error) {
	if len(items) > MaxItemsPerRequest {
		return nil, fmt.Errorf("too many expenses in one request: %d (max %d)", len(items), MaxItemsPerRequest)
	}

	body, err := json.Marshal(Request{Expenses: items})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("categorization request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var decoded Response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decoded.Error != "" {
			return nil, fmt.Errorf("categorization service: %s", decoded.Error)
		}
		return nil, fmt.Errorf("categorization service returned status %d", resp.StatusCode)
	}

	return decoded.Categorizations, nil
}
