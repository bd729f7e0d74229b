package llm

import (
	"encoding/json"
	"strings"
)

const (
	ssePrefix   = "data:"
	sseSentinel = "[DONE]"
)

// SSEData returns the payload of a "data:" line. Comments, other fields and the
// [DONE] sentinel report false.
func SSEData(line string) ([]byte, bool) {
	if !strings.HasPrefix(line, ssePrefix) {
		return nil, false
	}
	payload := strings.TrimSpace(line[len(ssePrefix):])
	if payload == "" || payload == sseSentinel {
		return nil, false
	}
	return []byte(payload), true
}

// ErrorMessage extracts "error.message" (OpenAI, Gemini and Anthropic shape) or
// a bare "error" string (Ollama shape) from a failed response body.
func ErrorMessage(body []byte) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &nested); err == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}

	var flat struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &flat); err == nil {
		return flat.Error
	}
	return ""
}

// OrNoResponse substitutes the placeholder used when a vendor answer has no text.
func OrNoResponse(text string) string {
	if text == "" {
		return "No response"
	}
	return text
}
