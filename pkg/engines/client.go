// Package engines queries the enrichment engines: independent lookups for
// pricing, sales history, significance, and census population. Each query
// stands alone; callers are expected to settle a batch best-effort.
package engines

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://engines.slabworks.dev"

// EngineID names one of the four enrichment engines.
type EngineID string

const (
	EnginePricing      EngineID = "pricing"
	EngineSales        EngineID = "sales"
	EngineSignificance EngineID = "significance"
	EnginePopulation   EngineID = "population"
)

// AllEngines lists the canonical engine set in query order.
var AllEngines = []EngineID{EnginePricing, EngineSales, EngineSignificance, EnginePopulation}

// Client runs one enrichment query.
type Client interface {
	Query(ctx context.Context, engine EngineID, prompt string) (string, error)
}

type queryRequest struct {
	Engine string `json:"engine"`
	Prompt string `json:"prompt"`
}

type queryResponse struct {
	Result string `json:"result"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default service URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) { c.baseURL = url }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit overrides the default 2 req/s throttle.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an enrichment-engine client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 45 * time.Second,
		},
		limiter: rate.NewLimiter(2, 2),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Query(ctx context.Context, engine EngineID, prompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "engines: rate limit")
		}
	}

	body, err := json.Marshal(queryRequest{Engine: string(engine), Prompt: prompt})
	if err != nil {
		return "", eris.Wrap(err, "engines: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/query", bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "engines: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", eris.Wrapf(err, "engines: query %s", engine)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "engines: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("engines: %s unexpected status %d: %s", engine, resp.StatusCode, string(respBody))
	}

	var result queryResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", eris.Wrap(err, "engines: unmarshal response")
	}
	return result.Result, nil
}
