package llm

import (
	"context"

	"github.com/nulzo/polychat/pkg/api"
)

type ProviderName string

const (
	OpenAI    ProviderName = "openai"
	Google    ProviderName = "google"
	Anthropic ProviderName = "anthropic"
	Ollama    ProviderName = "ollama"
	Mock      ProviderName = "mock"
)

// Delta is one incremental piece of a streamed answer. A Delta carrying Err is
// always the last value sent before the channel is closed.
type Delta struct {
	Text string
	Err  error
}

// Provider is a single configured upstream model.
type Provider interface {
	// Name is the human readable provider name used in error messages.
	Name() string
	// Type is the adapter family, e.g. "openai", "google".
	Type() string
	// Chat returns the complete answer text.
	Chat(ctx context.Context, prompt *api.Prompt) (string, error)
	// Stream returns a channel of text fragments in upstream order. The channel is
	// closed when the upstream stream ends. An error returned here means the
	// stream never started.
	Stream(ctx context.Context, prompt *api.Prompt) (<-chan Delta, error)
}

// Send delivers d unless ctx is done first.
func Send(ctx context.Context, ch chan<- Delta, d Delta) error {
	select {
	case ch <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const (
	defaultMaxTokens       = 500
	defaultStreamMaxTokens = 1000
)

// MaxTokens returns the output bound for a call. Streaming answers get a larger
// default since they are shown progressively.
func MaxTokens(configured int, stream bool) int {
	if configured > 0 {
		return configured
	}
	if stream {
		return defaultStreamMaxTokens
	}
	return defaultMaxTokens
}
