package llm_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "deepview/backend/internal/errors"
	"deepview/backend/internal/llm"
	"deepview/backend/internal/model"
)

func gatewayStub(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestGateway_OpenStream(t *testing.T) {
	srv := gatewayStub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, true, req["stream"])

		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\ndata: [DONE]\n\n")
	})

	client := llm.NewGateway(srv.URL, "test-key", "img-model")
	body, err := client.OpenStream(context.Background(), &llm.ChatRequest{
		Model:    "chat-model",
		Messages: []model.WireMessage{{Role: model.RoleUser, Content: model.Text("hello")}},
	})
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[DONE]")
}

func TestGateway_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, apperrors.ErrRateLimited},
		{"payment required", http.StatusPaymentRequired, apperrors.ErrPaymentRequired},
		{"server error", http.StatusInternalServerError, apperrors.ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := gatewayStub(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			client := llm.NewGateway(srv.URL, "k", "img")
			_, err := client.OpenStream(context.Background(), &llm.ChatRequest{Model: "m"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGateway_Complete(t *testing.T) {
	srv := gatewayStub(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Nil(t, req["stream"])
		fmt.Fprint(w, `{"choices":[{"message":{"content":"A Short Title"}}]}`)
	})

	client := llm.NewGateway(srv.URL, "k", "img")
	text, err := client.Complete(context.Background(), &llm.ChatRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "A Short Title", text)
}

func TestGateway_CompleteNoChoices(t *testing.T) {
	srv := gatewayStub(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	})

	client := llm.NewGateway(srv.URL, "k", "img")
	_, err := client.Complete(context.Background(), &llm.ChatRequest{Model: "m"})
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
}

func TestGateway_GenerateImages(t *testing.T) {
	srv := gatewayStub(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "img-model", req["model"])
		assert.Equal(t, []any{"image", "text"}, req["modalities"])

		fmt.Fprint(w, `{"choices":[{"message":{"content":"here","images":[{"image_url":{"url":"https://a/1.png"}}]}}]}`)
	})

	client := llm.NewGateway(srv.URL, "k", "img-model")
	urls, err := client.GenerateImages(context.Background(), "a cat")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a/1.png"}, urls)
}
