package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/nulzo/polychat/internal/config"
	"github.com/nulzo/polychat/internal/llm"
	"github.com/nulzo/polychat/pkg/api"
)

func init() {
	llm.Register(string(llm.Mock), NewAdapter)
}

var intros = []string{
	"I understand your question. Let me provide a detailed answer based on the information available.",
	"That's an interesting topic! Here's what I can tell you about it.",
	"Based on my knowledge, I can explain this concept to you.",
	"Great question! Let me break this down for you step by step.",
	"I'd be happy to help with that. Here's a comprehensive explanation.",
}

var details = []string{
	"This involves several key factors that work together to create the overall picture.",
	"There are multiple perspectives to consider when thinking about this topic.",
	"The fundamental principles behind this are quite fascinating when you dive deeper.",
	"Historical context shows us how this has evolved over time.",
	"Current research suggests several interesting developments in this area.",
}

// Adapter answers locally without any network call. It is used for demos and
// load tests. Answers are derived from the prompt so repeated calls agree.
type Adapter struct {
	config config.ProviderConfig
	delay  time.Duration
}

func NewAdapter(config config.ProviderConfig) (llm.Provider, error) {
	var delay time.Duration
	if raw := config.Option("delay", ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("mock: invalid delay %q: %w", raw, err)
		}
		delay = d
	}
	return &Adapter{config: config, delay: delay}, nil
}

func (a *Adapter) Name() string { return a.config.Name }
func (a *Adapter) Type() string { return string(llm.Mock) }

// Answer builds the canned reply for a prompt.
func Answer(prompt *api.Prompt) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(prompt.Text))
	sum := h.Sum32()

	intro := intros[sum%uint32(len(intros))]
	detail := details[(sum/uint32(len(intros)))%uint32(len(details))]

	return fmt.Sprintf("%s\n\n%s\n\nRegarding %q, the key points to understand are:\n\n"+
		"1. First, consider the context and background\n"+
		"2. Second, analyze the main components\n"+
		"3. Finally, understand how they interconnect\n\n"+
		"I hope this explanation helps clarify things for you!",
		intro, detail, prompt.Preview(50))
}

func (a *Adapter) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return llm.FromContext(ctx, a.Name())
	}
}

func (a *Adapter) Chat(ctx context.Context, prompt *api.Prompt) (string, error) {
	if err := a.wait(ctx, a.delay); err != nil {
		return "", llm.Wrap(a.Name(), err, nil)
	}
	return Answer(prompt), nil
}

func (a *Adapter) Stream(ctx context.Context, prompt *api.Prompt) (<-chan llm.Delta, error) {
	words := strings.SplitAfter(Answer(prompt), " ")
	ch := make(chan llm.Delta)

	// the configured delay is spread over the words
	var step time.Duration
	if len(words) > 0 {
		step = a.delay / time.Duration(len(words))
	}

	go func() {
		defer close(ch)
		for _, w := range words {
			if err := a.wait(ctx, step); err != nil {
				return
			}
			if err := llm.Send(ctx, ch, llm.Delta{Text: w}); err != nil {
				return
			}
		}
	}()

	return ch, nil
}
