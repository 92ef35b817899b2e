// Package commentary asks the commentary service for a short human remark
// on a finished grade.
package commentary

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://commentary.slabworks.dev"

// Client generates a remark for a graded item.
type Client interface {
	Comment(ctx context.Context, req Request) (*Remark, error)
}

// Request describes the final outcome to remark on.
type Request struct {
	Title   string   `json:"title"`
	Issue   string   `json:"issue"`
	Grade   float64  `json:"grade"`
	Value   int64    `json:"value"`
	Defects []string `json:"defects,omitempty"`
}

// Remark is the generated commentary.
type Remark struct {
	Text    string `json:"text"`
	Emotion string `json:"emotion"`
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

// NewClient creates a commentary client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Comment(ctx context.Context, req Request) (*Remark, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "commentary: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/comment", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "commentary: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "commentary: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "commentary: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("commentary: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result Remark
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "commentary: unmarshal response")
	}
	return &result, nil
}
