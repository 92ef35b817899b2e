// Package vision wraps the vision-ensemble grading service: a single call
// fans out to several vision models and returns one opinion per model.
package vision

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

const defaultBaseURL = "https://vision.slabworks.dev"

// Client runs the vision ensemble over captured images.
type Client interface {
	Run(ctx context.Context, req RunRequest) ([]ModelOpinion, error)
}

// ItemContext carries the identity the models grade against.
type ItemContext struct {
	Title        string   `json:"title"`
	Issue        string   `json:"issue"`
	Publisher    string   `json:"publisher,omitempty"`
	Year         int      `json:"year,omitempty"`
	KnownDefects []string `json:"known_defects,omitempty"`
}

// ImagePayload is one captured side, base64-encoded by the JSON marshal of
// the byte slice.
type ImagePayload struct {
	Side string `json:"side"` // front, back, detail
	Data []byte `json:"data"`
}

// RunRequest is the body for POST /v1/ensemble/run.
type RunRequest struct {
	Item   ItemContext    `json:"item"`
	Images []ImagePayload `json:"images"`
}

// ModelOpinion is one ensemble member's verdict. Grade is nil when the
// model declined to produce a number.
type ModelOpinion struct {
	Model      string   `json:"model"`
	Grade      *float64 `json:"grade"`
	Confidence int      `json:"confidence"`
	Defects    []string `json:"defects"`
	Analysis   string   `json:"analysis"`
}

type runResponse struct {
	Opinions []ModelOpinion `json:"opinions"`
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

// WithRateLimit overrides the default 1 req/s throttle.
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

// NewClient creates a vision-ensemble client. Ensemble runs are slow and
// heavy, so the default timeout is generous and calls are throttled.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 120 * time.Second,
		},
		limiter: rate.NewLimiter(1, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Run(ctx context.Context, req RunRequest) ([]ModelOpinion, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "vision: rate limit")
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "vision: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/ensemble/run", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "vision: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "vision: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "vision: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("vision: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result runResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "vision: unmarshal response")
	}
	return result.Opinions, nil
}
