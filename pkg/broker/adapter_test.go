package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPModelAdapterPostsPromptAndReturnsContent(t *testing.T) {
	var gotBody chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		resp := chatCompletionResponse{}
		resp.Choices = []struct {
			Message chatMessage `json:"message"`
		}{{Message: chatMessage{Role: "assistant", Content: `{"skill_id":"do_nothing"}`}}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	adapter := NewHTTPModelAdapter(srv.URL, "test-key", "gpt-4")
	out, err := adapter.Invoke(context.Background(), "propose a skill", nil, 42)
	require.NoError(t, err)
	require.Equal(t, `{"skill_id":"do_nothing"}`, out)
	require.Equal(t, "gpt-4", gotBody.Model)
	require.Equal(t, int64(42), gotBody.Seed)
	require.Equal(t, "propose a skill", gotBody.Messages[0].Content)
}

func TestHTTPModelAdapterReturnsErrorOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	adapter := NewHTTPModelAdapter(srv.URL, "", "gpt-4")
	_, err := adapter.Invoke(context.Background(), "prompt", nil, 0)
	require.Error(t, err)
}

var _ ModelAdapter = (*HTTPModelAdapter)(nil)
