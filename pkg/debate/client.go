// Package debate wraps the adversarial-debate service: a bull advocate, a
// bear critic, and a judge argue the working grade over one or more rounds
// and may adjust it.
package debate

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://arena.slabworks.dev"

// Client runs a debate over a working grade.
type Client interface {
	Debate(ctx context.Context, req Request) (*Result, error)
}

// Request seeds the debate with the current consensus.
type Request struct {
	Title        string   `json:"title"`
	Issue        string   `json:"issue"`
	CurrentGrade float64  `json:"current_grade"`
	Defects      []string `json:"defects,omitempty"`
	Research     string   `json:"research,omitempty"`
}

// Round is one bull/bear/judge exchange.
type Round struct {
	Bull  string `json:"bull"`
	Bear  string `json:"bear"`
	Judge string `json:"judge"`
}

// Result carries the judge's adjusted grade, nil when the judge let the
// seeded grade stand.
type Result struct {
	AdjustedGrade *float64 `json:"adjusted_grade"`
	Rounds        []Round  `json:"rounds"`
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

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a debate client. Debates run several model turns, so
// the timeout is generous.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Debate(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "debate: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/debate", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "debate: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "debate: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "debate: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("debate: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "debate: unmarshal response")
	}
	return &result, nil
}
