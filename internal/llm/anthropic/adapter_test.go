package anthropic_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nulzo/polychat/internal/config"
	"github.com/nulzo/polychat/internal/llm"
	"github.com/nulzo/polychat/internal/llm/anthropic"
	"github.com/nulzo/polychat/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const keyEnv = "POLYCHAT_TEST_ANTHROPIC_KEY"

func newAdapter(t *testing.T, baseURL string, opts map[string]string) llm.Provider {
	t.Helper()
	a, err := anthropic.NewAdapter(config.ProviderConfig{
		ID:        "claude",
		Type:      "anthropic",
		Name:      "Claude",
		BaseURL:   baseURL,
		Model:     "claude-3-5-haiku-latest",
		APIKeyEnv: keyEnv,
		Config:    opts,
	})
	require.NoError(t, err)
	return a
}

func TestChat(t *testing.T) {
	t.Setenv(keyEnv, "sk-ant")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		assert.Equal(t, "2024-01-01", r.Header.Get("anthropic-version"))

		var body anthropic.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 500, body.MaxTokens)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "Hi", body.Messages[0].Content[0].Text)

		_, _ = w.Write([]byte(`{"id":"msg_1","content":[{"type":"text","text":"Hello"},{"type":"text","text":", human"}],"stop_reason":"end_turn"}`))
	}))
	defer server.Close()

	text, err := newAdapter(t, server.URL, map[string]string{"version": "2024-01-01"}).
		Chat(context.Background(), &api.Prompt{Text: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "Hello, human", text)
}

func TestChat_UpstreamError(t *testing.T) {
	t.Setenv(keyEnv, "sk-ant")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer server.Close()

	_, err := newAdapter(t, server.URL, nil).Chat(context.Background(), &api.Prompt{Text: "Hi"})
	require.Error(t, err)
	assert.Equal(t, "invalid x-api-key", err.Error())
	assert.Equal(t, "upstream_401", llm.StatusText(err))
}

func TestStream(t *testing.T) {
	t.Setenv(keyEnv, "sk-ant")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for _, frame := range []string{
			"event: message_start\ndata: {\"type\":\"message_start\"}\n\n",
			"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi\"}}\n\n",
			"event: ping\ndata: {\"type\":\"ping\"}\n\n",
			"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\" there\"}}\n\n",
			"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n",
		} {
			_, _ = w.Write([]byte(frame))
			flusher.Flush()
		}
	}))
	defer server.Close()

	ch, err := newAdapter(t, server.URL, nil).Stream(context.Background(), &api.Prompt{Text: "Hi"})
	require.NoError(t, err)

	var chunks []string
	for d := range ch {
		require.NoError(t, d.Err)
		chunks = append(chunks, d.Text)
	}
	assert.Equal(t, []string{"Hi", " there"}, chunks)
}

func TestStream_InBandError(t *testing.T) {
	t.Setenv(keyEnv, "sk-ant")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"par\"}}\n\n" +
			"event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n"))
	}))
	defer server.Close()

	ch, err := newAdapter(t, server.URL, nil).Stream(context.Background(), &api.Prompt{Text: "Hi"})
	require.NoError(t, err)

	var deltas []llm.Delta
	for d := range ch {
		deltas = append(deltas, d)
	}
	require.Len(t, deltas, 2)
	assert.Equal(t, "par", deltas[0].Text)
	require.Error(t, deltas[1].Err)
	assert.Equal(t, "Overloaded", deltas[1].Err.Error())
}

func TestShape_ImageBeforeText(t *testing.T) {
	req := anthropic.Shape("m", &api.Prompt{
		Text:   "describe",
		Images: []string{"data:image/jpeg;base64,/9j/4AAQ"},
	}, 1000, true)

	parts := req.Messages[0].Content
	require.Len(t, parts, 2)
	assert.Equal(t, "image", parts[0].Type)
	assert.Equal(t, "image/jpeg", parts[0].Source.MediaType)
	assert.Equal(t, "text", parts[1].Type)
	assert.True(t, req.Stream)
}
