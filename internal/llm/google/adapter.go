package google

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

const pn = string(llm.Google)

func init() {
	llm.Register(pn, NewAdapter)
}

type Adapter struct {
	config config.ProviderConfig
	client httpclient.HTTPClient
}

func NewAdapter(config config.ProviderConfig) (llm.Provider, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if config.APIKeyEnv == "" {
		return nil, errors.New("google: api_key_env is required")
	}
	if config.Model == "" {
		return nil, errors.New("google: model is required")
	}
	return &Adapter{
		config: config,
		client: httpclient.New(),
	}, nil
}

func (a *Adapter) Name() string { return a.config.Name }
func (a *Adapter) Type() string { return pn }

type InlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type GeminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inline_data,omitempty"`
}

type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

type GenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type GeminiRequest struct {
	Contents         []GeminiContent   `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type GeminiResponse struct {
	Candidates []GeminiCandidate `json:"candidates"`
}

// text joins every text part of the first candidate.
func (r GeminiResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

func Shape(prompt *api.Prompt, maxTokens int) GeminiRequest {
	parts := []GeminiPart{{Text: prompt.Text}}
	for _, img := range llm.Images(prompt.Images) {
		parts = append(parts, GeminiPart{
			InlineData: &InlineData{MimeType: img.MediaType, Data: img.Data},
		})
	}

	return GeminiRequest{
		Contents: []GeminiContent{{
			Role:  string(api.User),
			Parts: parts,
		}},
		GenerationConfig: &GenerationConfig{MaxOutputTokens: maxTokens},
	}
}

// the key travels in a header so it never shows up in logged URLs
func (a *Adapter) headers(key string) map[string]string {
	return map[string]string{"x-goog-api-key": key}
}

func (a *Adapter) url(method string) string {
	return fmt.Sprintf("%s/models/%s:%s",
		strings.TrimRight(a.config.BaseURL, "/"),
		a.config.Model,
		method,
	)
}

func (a *Adapter) Chat(ctx context.Context, prompt *api.Prompt) (string, error) {
	key, err := llm.APIKey(a.config)
	if err != nil {
		return "", err
	}

	shape := Shape(prompt, llm.MaxTokens(a.config.MaxTokens, false))

	var gResp GeminiResponse
	if err := httpclient.SendRequest(ctx, a.client, http.MethodPost, a.url("generateContent"), a.headers(key), shape, &gResp); err != nil {
		return "", llm.Wrap(a.Name(), err, llm.ErrorMessage)
	}

	return llm.OrNoResponse(gResp.text()), nil
}

func (a *Adapter) Stream(ctx context.Context, prompt *api.Prompt) (<-chan llm.Delta, error) {
	key, err := llm.APIKey(a.config)
	if err != nil {
		return nil, err
	}

	shape := Shape(prompt, llm.MaxTokens(a.config.MaxTokens, true))
	url := a.url("streamGenerateContent") + "?alt=sse"
	ch := make(chan llm.Delta)

	go func() {
		defer close(ch)

		err := httpclient.StreamRequest(ctx, a.client, http.MethodPost, url, a.headers(key), shape, func(line string) error {
			data, ok := llm.SSEData(line)
			if !ok {
				return nil
			}

			var gResp GeminiResponse
			if err := json.Unmarshal(data, &gResp); err != nil {
				return nil
			}

			if text := gResp.text(); text != "" {
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
