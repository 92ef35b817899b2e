// Package council wraps the final-authority council service. Three voices
// review everything gathered upstream and return per-voice grades plus,
// when they converge, a stated final grade.
package council

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://council.slabworks.dev"

// Client requests a council decision.
type Client interface {
	Decide(ctx context.Context, req Request) (*Decision, error)
}

// Request seeds the council with every upstream signal.
type Request struct {
	Title         string   `json:"title"`
	Issue         string   `json:"issue"`
	EnsembleGrade float64  `json:"ensemble_grade"`
	DebateGrade   float64  `json:"debate_grade"`
	Defects       []string `json:"defects,omitempty"`
	Research      string   `json:"research,omitempty"`
	Valuation     int64    `json:"valuation,omitempty"`
}

// Decision carries the three per-voice grades in seniority order and the
// council's own final grade when it stated one.
type Decision struct {
	PerVoiceGrades [3]float64 `json:"per_voice_grades"`
	FinalGrade     *float64   `json:"final_grade"`
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

// NewClient creates a council client.
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

func (c *httpClient) Decide(ctx context.Context, req Request) (*Decision, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "council: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/decide", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "council: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "council: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "council: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("council: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result Decision
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "council: unmarshal response")
	}
	return &result, nil
}
