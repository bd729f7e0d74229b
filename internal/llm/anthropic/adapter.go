package anthropic

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

const defaultVersion = "2023-06-01"

func init() {
	llm.Register(string(llm.Anthropic), NewAdapter)
}

type Adapter struct {
	config config.ProviderConfig
	client httpclient.HTTPClient
}

func NewAdapter(config config.ProviderConfig) (llm.Provider, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.anthropic.com/v1"
	}
	if config.APIKeyEnv == "" {
		return nil, errors.New("anthropic: api_key_env is required")
	}
	if config.Model == "" {
		return nil, errors.New("anthropic: model is required")
	}
	return &Adapter{
		config: config,
		client: httpclient.New(),
	}, nil
}

func (a *Adapter) Name() string { return a.config.Name }
func (a *Adapter) Type() string { return string(llm.Anthropic) }

type Message struct {
	Role    string    `json:"role"`
	Content []Content `json:"content"`
}

type Request struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
	Stream    bool      `json:"stream,omitempty"`
}

type Response struct {
	ID         string    `json:"id"`
	Content    []Content `json:"content"`
	Model      string    `json:"model"`
	StopReason string    `json:"stop_reason"`
}

type Content struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *ImageSource `json:"source,omitempty"`
}

type ImageSource struct {
	Type      string `json:"type"`       // "base64"
	MediaType string `json:"media_type"` // "image/jpeg"
	Data      string `json:"data"`
}

type StreamEvent struct {
	Type  string `json:"type"`
	Delta *Delta `json:"delta,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type Delta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Shape builds the messages request. Images go first, which is the order the
// vendor recommends for vision prompts.
func Shape(model string, prompt *api.Prompt, maxTokens int, stream bool) Request {
	var parts []Content
	for _, img := range llm.Images(prompt.Images) {
		parts = append(parts, Content{
			Type: "image",
			Source: &ImageSource{
				Type:      "base64",
				MediaType: img.MediaType,
				Data:      img.Data,
			},
		})
	}
	parts = append(parts, Content{Type: "text", Text: prompt.Text})

	return Request{
		Model:     model,
		Messages:  []Message{{Role: string(api.User), Content: parts}},
		MaxTokens: maxTokens,
		Stream:    stream,
	}
}

func (a *Adapter) headers(key string) map[string]string {
	return map[string]string{
		"x-api-key":         key,
		"anthropic-version": a.config.Option("version", defaultVersion),
	}
}

func (a *Adapter) url() string {
	return fmt.Sprintf("%s/messages", strings.TrimRight(a.config.BaseURL, "/"))
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

	var sb strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	return llm.OrNoResponse(sb.String()), nil
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
			data, ok := llm.SSEData(line)
			if !ok {
				return nil
			}

			var event StreamEvent
			if err := json.Unmarshal(data, &event); err != nil {
				return nil
			}

			switch event.Type {
			case "content_block_delta":
				if event.Delta != nil && event.Delta.Type == "text_delta" && event.Delta.Text != "" {
					return llm.Send(ctx, ch, llm.Delta{Text: event.Delta.Text})
				}
			case "error":
				// overloaded_error and friends arrive in-band after a 200
				msg := a.Name() + " API error"
				if event.Error != nil && event.Error.Message != "" {
					msg = event.Error.Message
				}
				return &llm.Error{Kind: llm.KindUpstream, Provider: a.Name(), Message: msg}
			case "message_stop":
				return errStop
			}
			return nil
		})

		if err != nil && !errors.Is(err, errStop) {
			_ = llm.Send(ctx, ch, llm.Delta{Err: llm.Wrap(a.Name(), err, llm.ErrorMessage)})
		}
	}()

	return ch, nil
}

var errStop = errors.New("message_stop")
