package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"visado/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	var gotReq generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(generateResponse{Response: `{"visa": "estudio"}`, Done: true})
	}))
	defer server.Close()

	logger := zerolog.Nop()
	client := NewOllamaClient(config.ClassifierConfig{
		URL:   server.URL,
		Model: "qwen2.5:0.5b",
	}, &logger)

	out, err := client.Generate(context.Background(), "clasifica esto")
	require.NoError(t, err)
	assert.Equal(t, `{"visa": "estudio"}`, out)
	assert.Equal(t, "qwen2.5:0.5b", gotReq.Model)
	assert.Equal(t, "clasifica esto", gotReq.Prompt)
	assert.False(t, gotReq.Stream)
}

func TestGenerateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	logger := zerolog.Nop()
	client := NewOllamaClient(config.ClassifierConfig{URL: server.URL, Model: "m"}, &logger)

	_, err := client.Generate(context.Background(), "x")
	assert.ErrorContains(t, err, "status 500")
}

func TestGenerateUnreachable(t *testing.T) {
	logger := zerolog.Nop()
	client := NewOllamaClient(config.ClassifierConfig{
		URL:     "http://127.0.0.1:1",
		Model:   "m",
		Timeout: time.Second,
	}, &logger)

	_, err := client.Generate(context.Background(), "x")
	assert.ErrorContains(t, err, "unreachable")
}
