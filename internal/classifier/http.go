package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opensource-media/magpie/internal/domain"
)

// HTTPClassifier calls a remote sentiment model endpoint
// (e.g. a DistilBERT SST-2 model behind a serving layer).
type HTTPClassifier struct {
	endpoint string
	token    string
	client   *http.Client
}

// classifyRequest is the wire request to the model endpoint.
type classifyRequest struct {
	Text string `json:"text"`
}

// classifyResponse is the wire response from the model endpoint.
type classifyResponse struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// NewHTTPClassifier creates a classifier backed by a remote endpoint.
func NewHTTPClassifier(cfg domain.ClassifierConfig) (*HTTPClassifier, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("http classifier requires an endpoint")
	}

	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &HTTPClassifier{
		endpoint: cfg.Endpoint,
		token:    cfg.Token,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Classify sends the text to the model endpoint and normalizes the
// returned label. Connection failures map to ErrUnavailable so callers
// can degrade to rule-based scoring.
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (*domain.Classification, error) {
	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return nil, fmt.Errorf("%w: endpoint returned 503", ErrUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode classify response: %w", err)
	}
	if out.Label == "" {
		return nil, fmt.Errorf("classifier returned no label")
	}

	return &domain.Classification{
		Label:      strings.ToUpper(out.Label),
		Confidence: out.Score,
	}, nil
}

// Ping probes the endpoint with a HEAD request.
func (c *HTTPClassifier) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp.Body.Close()
	return nil
}

// Close releases idle connections.
func (c *HTTPClassifier) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
