package v1

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/polychat/internal/gateway"
	"github.com/nulzo/polychat/internal/server/validator"
	"github.com/nulzo/polychat/pkg/api"
)

type ChatHandler struct {
	service   gateway.Service
	validator *validator.Validator
}

func NewChatHandler(service gateway.Service, v *validator.Validator) *ChatHandler {
	return &ChatHandler{
		service:   service,
		validator: v,
	}
}

func (h *ChatHandler) bind(c *gin.Context) (*api.ChatRequest, bool) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.InvalidRequestError(h.validator.ParseError(err)))
		return nil, false
	}
	return &req, true
}

// Chat fans the prompt out and answers once every model has finished.
//
// POST /api/v1/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	responses := h.service.Dispatch(c.Request.Context(), req.Prompt(), req.Models)
	c.JSON(http.StatusOK, api.ChatResponse{Responses: responses})
}

// Stream relays every model's output as Server-Sent Events, one frame per event,
// followed by a final [DONE] frame.
//
// POST /api/v1/chat/stream
func (h *ChatHandler) Stream(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	// client disconnect cancels the request context, which stops the upstream calls
	events := h.service.DispatchStream(c.Request.Context(), req.Prompt(), req.Models)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			_, _ = io.WriteString(w, "data: [DONE]\n\n")
			return false
		}
		return writeEvent(w, ev) == nil
	})
}

func writeEvent(w io.Writer, ev api.StreamEvent) error {
	var buf bytes.Buffer
	buf.WriteString("data: ")

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return err
	}
	// Encode already wrote one newline
	buf.WriteString("\n")

	_, err := w.Write(buf.Bytes())
	return err
}
