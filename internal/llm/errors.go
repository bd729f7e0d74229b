package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nulzo/polychat/internal/httpclient"
)

type ErrorKind string

const (
	KindUnknownModel  ErrorKind = "unknown_model"
	KindConfiguration ErrorKind = "configuration"
	KindUpstream      ErrorKind = "upstream"
	KindTransport     ErrorKind = "transport"
	KindDecode        ErrorKind = "decode"
	KindTimeout       ErrorKind = "timeout"
	KindCanceled      ErrorKind = "canceled"
)

// Error is the single failure type every provider returns. Message is safe to
// show to end users; Err keeps the underlying cause for logs.
type Error struct {
	Kind     ErrorKind
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UnknownModel is the synthetic error for identifiers missing from the registry.
func UnknownModel(id string) *Error {
	return &Error{
		Kind:    KindUnknownModel,
		Message: fmt.Sprintf("Model %s not found", id),
	}
}

// MessageExtractor pulls a vendor error message out of a failed response body.
// It returns "" when the body does not match the vendor's error schema.
type MessageExtractor func(body []byte) string

// Wrap classifies err into an *Error for the named provider.
func Wrap(provider string, err error, extract MessageExtractor) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Provider: provider, Message: provider + " request timed out", Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindCanceled, Provider: provider, Message: provider + " request canceled", Err: err}
	}

	var upstream *httpclient.UpstreamError
	if errors.As(err, &upstream) {
		msg := ""
		if extract != nil {
			msg = extract(upstream.Body)
		}
		if msg == "" {
			msg = provider + " API error"
		}
		return &Error{Kind: KindUpstream, Provider: provider, Status: upstream.StatusCode, Message: msg, Err: err}
	}

	var decodeErr *httpclient.DecodeError
	if errors.As(err, &decodeErr) {
		return &Error{Kind: KindDecode, Provider: provider, Message: provider + " returned an unreadable response", Err: err}
	}

	return &Error{Kind: KindTransport, Provider: provider, Message: fmt.Sprintf("%s request failed: %v", provider, err), Err: err}
}

// FromContext converts a finished context into an *Error, or nil if ctx is still live.
func FromContext(ctx context.Context, provider string) *Error {
	if err := ctx.Err(); err != nil {
		return Wrap(provider, err, nil)
	}
	return nil
}

// KindOf returns the classification of err, defaulting to transport.
func KindOf(err error) ErrorKind {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Kind
	}
	return KindTransport
}

// StatusText is a short label used in logs and analytics rows.
func StatusText(err error) string {
	if err == nil {
		return "ok"
	}
	var llmErr *Error
	if errors.As(err, &llmErr) && llmErr.Status != 0 {
		return fmt.Sprintf("%s_%d", llmErr.Kind, llmErr.Status)
	}
	return string(KindOf(err))
}

// IsClientStatus reports whether an upstream rejected the call as the caller's fault.
func IsClientStatus(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Status >= http.StatusBadRequest && llmErr.Status < http.StatusInternalServerError
	}
	return false
}
