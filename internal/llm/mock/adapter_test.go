package mock_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nulzo/polychat/internal/config"
	"github.com/nulzo/polychat/internal/llm"
	"github.com/nulzo/polychat/internal/llm/mock"
	"github.com/nulzo/polychat/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdapter(t *testing.T, delay string) llm.Provider {
	t.Helper()
	cfg := config.ProviderConfig{ID: "mock", Type: "mock", Name: "Mock"}
	if delay != "" {
		cfg.Config = map[string]string{"delay": delay}
	}
	a, err := mock.NewAdapter(cfg)
	require.NoError(t, err)
	return a
}

func TestChat_Deterministic(t *testing.T) {
	a := newAdapter(t, "")
	prompt := &api.Prompt{Text: "Explain the difference between goroutines and OS threads in great detail"}

	first, err := a.Chat(context.Background(), prompt)
	require.NoError(t, err)
	second, err := a.Chat(context.Background(), prompt)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, first, `"Explain the difference between goroutines and OS t..."`)
}

func TestStream_ReassemblesToChat(t *testing.T) {
	a := newAdapter(t, "")
	prompt := &api.Prompt{Text: "short"}

	full, err := a.Chat(context.Background(), prompt)
	require.NoError(t, err)

	ch, err := a.Stream(context.Background(), prompt)
	require.NoError(t, err)

	var sb strings.Builder
	n := 0
	for d := range ch {
		require.NoError(t, d.Err)
		sb.WriteString(d.Text)
		n++
	}
	assert.Equal(t, full, sb.String())
	assert.Greater(t, n, 1)
}

func TestChat_DelayHonoursContext(t *testing.T) {
	a := newAdapter(t, "5s")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := a.Chat(ctx, &api.Prompt{Text: "hi"})
	require.Error(t, err)
	assert.Equal(t, llm.KindTimeout, llm.KindOf(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestNewAdapter_BadDelay(t *testing.T) {
	_, err := mock.NewAdapter(config.ProviderConfig{ID: "m", Name: "M", Config: map[string]string{"delay": "soon"}})
	assert.Error(t, err)
}
