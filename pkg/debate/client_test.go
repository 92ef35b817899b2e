package debate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/debate", r.URL.Path)

		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 8.9, req.CurrentGrade)
		assert.Equal(t, []string{"spine_roll"}, req.Defects)

		_, _ = w.Write([]byte(`{
			"adjusted_grade": 9.0,
			"rounds": [{"bull": "gloss is exceptional", "bear": "spine roll caps it", "judge": "roll is minor, 9.0"}]
		}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	result, err := client.Debate(context.Background(), Request{
		Title:        "Werewolf by Night",
		Issue:        "32",
		CurrentGrade: 8.9,
		Defects:      []string{"spine_roll"},
	})
	require.NoError(t, err)
	require.NotNil(t, result.AdjustedGrade)
	assert.Equal(t, 9.0, *result.AdjustedGrade)
	require.Len(t, result.Rounds, 1)
	assert.Contains(t, result.Rounds[0].Judge, "9.0")
}

func TestDebate_GradeStands(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"adjusted_grade": null, "rounds": []}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	result, err := client.Debate(context.Background(), Request{CurrentGrade: 7.0})
	require.NoError(t, err)
	assert.Nil(t, result.AdjustedGrade)
}

func TestDebate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"arena down"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Debate(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "arena down")
}
