package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nulzo/polychat/internal/config"
	"github.com/nulzo/polychat/internal/llm"
	"github.com/nulzo/polychat/internal/llm/ollama"
	"github.com/nulzo/polychat/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdapter(t *testing.T, baseURL string) llm.Provider {
	t.Helper()
	a, err := ollama.NewAdapter(config.ProviderConfig{
		ID:      "llama-local",
		Type:    "ollama",
		Name:    "Llama (local)",
		BaseURL: baseURL,
		Model:   "llama3.2",
	})
	require.NoError(t, err)
	return a
}

func TestChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body ollama.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.False(t, body.Stream)
		assert.Equal(t, "llama3.2", body.Model)
		assert.Equal(t, 500, body.Options.NumPredict)

		_, _ = w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":"Local hello"},"done":true}`))
	}))
	defer server.Close()

	// a trailing /v1 is stripped
	text, err := newAdapter(t, server.URL+"/v1").Chat(context.Background(), &api.Prompt{Text: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "Local hello", text)
}

func TestChat_ModelMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"llama3.2\" not found, try pulling it first"}`))
	}))
	defer server.Close()

	_, err := newAdapter(t, server.URL).Chat(context.Background(), &api.Prompt{Text: "Hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "try pulling it first")
}

func TestStream_NDJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for _, line := range []string{
			`{"message":{"role":"assistant","content":"Why"},"done":false}` + "\n",
			`{"message":{"role":"assistant","content":" hello"},"done":false}` + "\n",
			`{"message":{"role":"assistant","content":""},"done":true}` + "\n",
		} {
			_, _ = w.Write([]byte(line))
			flusher.Flush()
		}
	}))
	defer server.Close()

	ch, err := newAdapter(t, server.URL).Stream(context.Background(), &api.Prompt{Text: "Hi"})
	require.NoError(t, err)

	var chunks []string
	for d := range ch {
		require.NoError(t, d.Err)
		chunks = append(chunks, d.Text)
	}
	assert.Equal(t, []string{"Why", " hello"}, chunks)
}

func TestStream_InBandError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"out of memory"}` + "\n"))
	}))
	defer server.Close()

	ch, err := newAdapter(t, server.URL).Stream(context.Background(), &api.Prompt{Text: "Hi"})
	require.NoError(t, err)

	d, ok := <-ch
	require.True(t, ok)
	require.Error(t, d.Err)
	assert.Equal(t, "out of memory", d.Err.Error())

	_, ok = <-ch
	assert.False(t, ok)
}

func TestShape_Images(t *testing.T) {
	req := ollama.Shape("llava", &api.Prompt{
		Text:   "what is this",
		Images: []string{"data:image/png;base64,iVBORw0KGgo="},
	}, 1000, true)

	require.Len(t, req.Messages, 1)
	assert.Equal(t, []string{"iVBORw0KGgo="}, req.Messages[0].Images)
}
