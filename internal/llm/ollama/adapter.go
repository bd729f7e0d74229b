package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nulzo/polychat/internal/config"
	"github.com/nulzo/polychat/internal/httpclient"
	"github.com/nulzo/polychat/internal/llm"
	"github.com/nulzo/polychat/pkg/api"
)

func init() {
	llm.Register(string(llm.Ollama), NewAdapter)
}

// Adapter talks to a local Ollama daemon through its native /api/chat endpoint.
// Streaming answers are newline delimited JSON rather than SSE.
type Adapter struct {
	config config.ProviderConfig
	client httpclient.HTTPClient
}

func NewAdapter(config config.ProviderConfig) (llm.Provider, error) {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	// tolerate base URLs copied from the OpenAI-compatible endpoint
	config.BaseURL = strings.TrimSuffix(strings.TrimRight(config.BaseURL, "/"), "/v1")
	if config.Model == "" {
		return nil, errors.New("ollama: model is required")
	}
	return &Adapter{
		config: config,
		client: httpclient.New(),
	}, nil
}

func (a *Adapter) Name() string { return a.config.Name }
func (a *Adapter) Type() string { return string(llm.Ollama) }

type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type Options struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  *Options  `json:"options,omitempty"`
}

// Response is both the full answer and a single NDJSON stream line.
type Response struct {
	Model   string  `json:"model"`
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

func Shape(model string, prompt *api.Prompt, maxTokens int, stream bool) Request {
	msg := Message{Role: string(api.User), Content: prompt.Text}
	for _, img := range llm.Images(prompt.Images) {
		msg.Images = append(msg.Images, img.Data)
	}

	return Request{
		Model:    model,
		Messages: []Message{msg},
		Stream:   stream,
		Options:  &Options{NumPredict: maxTokens},
	}
}

func (a *Adapter) headers(key string) map[string]string {
	if key == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + key}
}

func (a *Adapter) url() string {
	return fmt.Sprintf("%s/api/chat", a.config.BaseURL)
}

func (a *Adapter) Chat(ctx context.Context, prompt *api.Prompt) (string, error) {
	key, err := llm.APIKey(a.config)
	if err != nil {
		return "", err
	}

	body := Shape(a.config.Model, prompt, llm.MaxTokens(a.config.MaxTokens, false), false)

	var resp Response
	if err := httpclient.SendRequest(ctx, a.client, http.MethodPost, a.url(), a.headers(key), body, &resp); err != nil {
		return "", llm.Wrap(a.Name(), err, llm.ErrorMessage)
	}
	if resp.Error != "" {
		return "", &llm.Error{Kind: llm.KindUpstream, Provider: a.Name(), Message: resp.Error}
	}

	return llm.OrNoResponse(resp.Message.Content), nil
}

func (a *Adapter) Stream(ctx context.Context, prompt *api.Prompt) (<-chan llm.Delta, error) {
	key, err := llm.APIKey(a.config)
	if err != nil {
		return nil, err
	}

	body := Shape(a.config.Model, prompt, llm.MaxTokens(a.config.MaxTokens, true), true)
	ch := make(chan llm.Delta)

	go func() {
		defer close(ch)

		err := httpclient.StreamRequest(ctx, a.client, http.MethodPost, a.url(), a.headers(key), body, func(line string) error {
			var chunk Response
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				return nil
			}
			if chunk.Error != "" {
				return &llm.Error{Kind: llm.KindUpstream, Provider: a.Name(), Message: chunk.Error}
			}
			if chunk.Message.Content != "" {
				return llm.Send(ctx, ch, llm.Delta{Text: chunk.Message.Content})
			}
			return nil
		})

		if err != nil {
			_ = llm.Send(ctx, ch, llm.Delta{Err: llm.Wrap(a.Name(), err, llm.ErrorMessage)})
		}
	}()

	return ch, nil
}
