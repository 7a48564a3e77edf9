package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/slipcheck/internal/common"
	"github.com/Veraticus/slipcheck/internal/model"
)

// Client defaults.
const (
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 60
	DefaultCacheTTL  = 15 * time.Minute
	DefaultModel     = "receipt-ocr-v1"

	maxResponseBytes = 4 << 20
)

// Config configures the HTTP OCR client.
type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
	// CacheTTL of zero uses DefaultCacheTTL; negative disables caching.
	CacheTTL  time.Duration
	RateLimit int
}

// HTTPClient calls a JSON OCR endpoint.
type HTTPClient struct {
	httpClient *http.Client
	limiter    *rateLimiter
	cache      *resultCache
	endpoint   string
	apiKey     string
	model      string
}

var _ Client = (*HTTPClient)(nil)

type extractRequest struct {
	Model string `json:"model"`
	Image string `json:"image"`
}

type extractResponse struct {
	Fields     *Fields `json:"fields,omitempty"`
	Text       string  `json:"text"`
	Model      string  `json:"model"`
	Error      string  `json:"error,omitempty"`
	Confidence float64 `json:"confidence"`
}

// NewHTTPClient creates a client for the OCR service at cfg.Endpoint.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("%w: ocr endpoint is required", common.ErrMissingConfig)
	}

	modelID := cfg.Model
	if modelID == "" {
		modelID = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &HTTPClient{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    modelID,
		limiter:  newRateLimiter(cfg.RateLimit),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	if cfg.CacheTTL >= 0 {
		c.cache = newResultCache(cfg.CacheTTL)
	}
	return c, nil
}

// Extract sends the image to the OCR service. Every failure wraps
// common.ErrOCRUnavailable; a 429 additionally wraps common.ErrRateLimit.
func (c *HTTPClient) Extract(ctx context.Context, image []byte) (Result, error) {
	if len(image) == 0 {
		return Result{}, fmt.Errorf("%w: empty image", common.ErrOCRUnavailable)
	}

	var key string
	if c.cache != nil {
		key = imageKey(image)
		if cached, ok := c.cache.get(key); ok {
			slog.Debug("OCR cache hit", "key", key[:12])
			return cached, nil
		}
	}

	if err := c.limiter.wait(ctx); err != nil {
		return Result{}, fmt.Errorf("%w: %w", common.ErrOCRUnavailable, err)
	}

	body, err := json.Marshal(extractRequest{
		Model: c.model,
		Image: base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: request failed: %w", common.ErrOCRUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("%w: failed to read response: %w", common.ErrOCRUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Result{}, fmt.Errorf("%w: %w", common.ErrOCRUnavailable, common.ErrRateLimit)
	case resp.StatusCode != http.StatusOK:
		return Result{}, fmt.Errorf("%w: status %d: %s", common.ErrOCRUnavailable, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed extractResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Result{}, fmt.Errorf("%w: failed to parse response: %w", common.ErrOCRUnavailable, err)
	}
	if parsed.Error != "" {
		return Result{}, fmt.Errorf("%w: %s", common.ErrOCRUnavailable, parsed.Error)
	}

	result := Result{
		Text:       parsed.Text,
		ModelID:    parsed.Model,
		Confidence: model.ClampConfidence(parsed.Confidence),
		Fields:     parsed.Fields,
	}
	if result.ModelID == "" {
		result.ModelID = c.model
	}
	if c.cache != nil && (result.Text != "" || !result.Fields.Empty()) {
		c.cache.set(key, result)
	}
	return result, nil
}

// Close releases background goroutines.
func (c *HTTPClient) Close() {
	c.limiter.Close()
	if c.cache != nil {
		c.cache.Close()
	}
}
