package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"resonance/internal/adapters/config"
	"resonance/internal/domain/engagement"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

const defaultHTTPTimeout = 30 * time.Second

// Client is the HTTP adapter for the engagement collector service. The
// collector owns raw acquisition (platform APIs, scraping actors); this
// client only pulls the processed samples it exposes.
type Client struct {
	baseURL    string
	apiToken   string
	maxItems   int
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a collector API client.
func NewClient(cfg config.CollectorConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "collector base URL is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = 100
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiToken:   cfg.APIToken,
		maxItems:   maxItems,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.Get().With("component", "collector_client"),
	}, nil
}

// RecentSamples pulls samples observed since the given time for a topic set.
// The collector may return samples in any order and may repeat ones already
// delivered; the aggregator dedupes downstream.
func (c *Client) RecentSamples(ctx context.Context, topics []string, since time.Time) ([]engagement.MetricSample, error) {
	if len(topics) == 0 {
		return nil, nil
	}

	payload := url.Values{
		"topics": []string{strings.Join(topics, ",")},
		"limit":  []string{strconv.Itoa(c.maxItems)},
	}
	if !since.IsZero() {
		payload.Set("since", since.UTC().Format(time.RFC3339))
	}

	var res struct {
		Samples []engagement.MetricSample `json:"samples"`
	}
	if err := c.get(ctx, "/v1/samples", payload, &res); err != nil {
		return nil, err
	}

	return res.Samples, nil
}

// Health pings the collector service.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil, nil)
}

func (c *Client) get(ctx context.Context, endpoint string, payload url.Values, dest interface{}) error {
	target := c.baseURL + endpoint
	if len(payload) > 0 {
		target += "?" + payload.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return errors.Wrap(err, "build collector request")
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(errors.ErrUnavailable, "collector request %s: %v", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Wrapf(errors.ErrUnavailable,
			"collector returned %d for %s: %s", resp.StatusCode, endpoint, strings.TrimSpace(string(body)))
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return errors.Wrap(err, fmt.Sprintf("decode collector response for %s", endpoint))
	}

	return nil
}
