package openai

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
	llm.Register(string(llm.OpenAI), NewAdapter)
}

// Adapter speaks the OpenAI chat completions dialect. Groq, Perplexity and
// DeepSeek expose the same wire shape and only differ in base URL and model.
type Adapter struct {
	config config.ProviderConfig
	client httpclient.HTTPClient
}

func NewAdapter(config config.ProviderConfig) (llm.Provider, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.APIKeyEnv == "" {
		return nil, errors.New("openai: api_key_env is required")
	}
	if config.Model == "" {
		return nil, errors.New("openai: model is required")
	}
	return &Adapter{
		config: config,
		client: httpclient.New(),
	}, nil
}

func (a *Adapter) Name() string { return a.config.Name }
func (a *Adapter) Type() string { return string(llm.OpenAI) }

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string or []ContentPart
}

type Request struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
	Stream    bool      `json:"stream,omitempty"`
}

type Response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type StreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c StreamChunk) text() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}

// Shape converts a prompt into the vendor request body.
func Shape(model string, prompt *api.Prompt, maxTokens int, stream bool) Request {
	msg := Message{Role: string(api.User), Content: prompt.Text}

	if images := llm.Images(prompt.Images); len(images) > 0 {
		parts := []ContentPart{{Type: "text", Text: prompt.Text}}
		for _, img := range images {
			parts = append(parts, ContentPart{
				Type:     "image_url",
				ImageURL: &ImageURL{URL: img.DataURL()},
			})
		}
		msg.Content = parts
	}

	return Request{
		Model:     model,
		Messages:  []Message{msg},
		MaxTokens: maxTokens,
		Stream:    stream,
	}
}

func (a *Adapter) headers(key string) map[string]string {
	headers := map[string]string{
		"Authorization": "Bearer " + key,
	}
	if org := a.config.Option("organization", ""); org != "" {
		headers["OpenAI-Organization"] = org
	}
	return headers
}

func (a *Adapter) url() string {
	return fmt.Sprintf("%s/chat/completions", strings.TrimRight(a.config.BaseURL, "/"))
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

	if len(resp.Choices) == 0 {
		return llm.OrNoResponse(""), nil
	}
	return llm.OrNoResponse(resp.Choices[0].Message.Content), nil
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

			var chunk StreamChunk
			if err := json.Unmarshal(data, &chunk); err != nil {
				// a single corrupt frame does not end the stream
				return nil
			}

			if text := chunk.text(); text != "" {
				return llm.Send(ctx, ch, llm.Delta{Text: text})
			}
			return nil
		})

		if err != nil {
			_ = llm.Send(ctx, ch, llm.Delta{Err: llm.Wrap(a.Name(), err, llm.ErrorMessage)})
		}
	}()

	return ch, nil
}
