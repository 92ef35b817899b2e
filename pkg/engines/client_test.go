package engines

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/query", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req queryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "pricing", req.Engine)

		_, _ = w.Write([]byte(`{"result": "Recent 9.4 sales average $58,000."}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0))
	result, err := client.Query(context.Background(), EnginePricing, "price Werewolf by Night #32 at 9.4")
	require.NoError(t, err)
	assert.Contains(t, result, "58,000")
}

func TestQuery_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"engine offline"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0))
	_, err := client.Query(context.Background(), EngineSales, "sales history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "engine offline")
}

func TestQuery_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0))
	_, err := client.Query(context.Background(), EnginePopulation, "census")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal response")
}

func TestAllEngines_Closed(t *testing.T) {
	t.Parallel()
	assert.Len(t, AllEngines, 4)
	assert.Equal(t, EnginePricing, AllEngines[0])
}
