package advisory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient creates an sdkClient pointing at a local test server.
func newTestClient(baseURL string) *sdkClient {
	return &sdkClient{
		client: sdk.NewClient(
			option.WithAPIKey("test-key"),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(0),
		),
		maxTokens: 1024,
	}
}

func TestConsult(t *testing.T) {
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":   "msg_test_001",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": `{"grade": 8.5, "confidence": 75, "defects": ["spine_stress"], "reasoning": "mid-grade copy"}`},
			},
			"model":       "claude-sonnet-4-5-20250929",
			"stop_reason": "end_turn",
			"usage": map[string]any{
				"input_tokens":  10,
				"output_tokens": 5,
			},
		})
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	opinion, err := client.Consult(context.Background(), ConsultRequest{
		Voice: "sage",
		Model: "claude-sonnet-4-5-20250929",
		Style: "methodical and conservative",
		Item: ItemContext{
			Title:        "Werewolf by Night",
			Issue:        "32",
			Publisher:    "Marvel",
			Year:         1975,
			KeyIssue:     true,
			KnownDefects: []string{"spine stress"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, opinion)
	assert.Equal(t, "sage", opinion.Voice)
	assert.Contains(t, opinion.Analysis, `"grade": 8.5`)

	assert.Equal(t, "claude-sonnet-4-5-20250929", gotBody["model"])

	system := gotBody["system"].([]any)[0].(map[string]any)["text"].(string)
	assert.Contains(t, system, "SAGE")
	assert.Contains(t, system, "methodical and conservative")

	messages := gotBody["messages"].([]any)
	require.Len(t, messages, 1)
	prompt := messages[0].(map[string]any)["content"].([]any)[0].(map[string]any)["text"].(string)
	assert.Contains(t, prompt, "Werewolf by Night #32")
	assert.Contains(t, prompt, "Year: 1975")
	assert.Contains(t, prompt, "spine stress")
}

func TestConsult_NoKnownDefects(t *testing.T) {
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody) //nolint:errcheck
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":      "msg_test_002",
			"type":    "message",
			"role":    "assistant",
			"content": []map[string]any{{"type": "text", "text": "clean copy"}},
			"model":   "claude-haiku-4-5-20251001",
			"usage":   map[string]any{"input_tokens": 1, "output_tokens": 1},
		})
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	opinion, err := client.Consult(context.Background(), ConsultRequest{
		Voice: "nyx",
		Model: "claude-haiku-4-5-20251001",
		Style: "fast and intuitive",
		Item:  ItemContext{Title: "Swamp Thing", Issue: "37"},
	})
	require.NoError(t, err)
	assert.Equal(t, "clean copy", opinion.Analysis)

	messages := gotBody["messages"].([]any)
	prompt := messages[0].(map[string]any)["content"].([]any)[0].(map[string]any)["text"].(string)
	assert.Contains(t, prompt, "none reported")
}

func TestConsult_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad model"}}`)) //nolint:errcheck
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	_, err := client.Consult(context.Background(), ConsultRequest{
		Voice: "thorne",
		Model: "not-a-model",
		Item:  ItemContext{Title: "Daredevil", Issue: "168"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "advisory: consult thorne")
}

func TestNewClient_Options(t *testing.T) {
	c := NewClient("key", WithMaxTokens(512))
	sc := c.(*sdkClient)
	assert.Equal(t, int64(512), sc.maxTokens)
}
