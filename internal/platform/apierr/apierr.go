package apierr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/seekwell/seekwell-backend/internal/pkg/httpx"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Kind classifies a failure from a provider or retrieval call so it can be
// translated to a user-visible phrase.
type Kind string

const (
	KindRateLimit       Kind = "rate_limit"
	KindInvalidAPIKey   Kind = "invalid_api_key"
	KindThrottling      Kind = "throttling"
	KindContextTooLarge Kind = "context_too_large"
	KindNotFound        Kind = "not_found"
	KindUnauthorized    Kind = "unauthorized"
	KindCanceled        Kind = "canceled"
	KindUnknown         Kind = "unknown"
)

// User-visible phrases. Clients display these verbatim, so they are part of
// the API contract.
const (
	PhraseRateLimit       = "Rate limit exceeded. Please try again later."
	PhraseContextTooLarge = "Input context is too large."
	PhraseGeneric         = "Something went wrong. Please try again."
	PhraseNoAnswer        = "I could not find an answer. Please make your query more specific."
)

// Classify maps an arbitrary error to a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	status := 0
	var coder httpx.HTTPStatusCoder
	if errors.As(err, &coder) {
		status = coder.HTTPStatusCode()
	}
	msg := strings.ToLower(err.Error())

	switch {
	case status == 429 || strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit"):
		return KindRateLimit
	case status == 401 || strings.Contains(msg, "invalid api key") || strings.Contains(msg, "incorrect api key"):
		return KindInvalidAPIKey
	case strings.Contains(msg, "throttl") || strings.Contains(msg, "overloaded"):
		return KindThrottling
	case strings.Contains(msg, "context length") || strings.Contains(msg, "context_length") ||
		strings.Contains(msg, "maximum context") || strings.Contains(msg, "too many tokens") ||
		strings.Contains(msg, "string too long"):
		return KindContextTooLarge
	case status == 404:
		return KindNotFound
	case status == 403:
		return KindUnauthorized
	default:
		return KindUnknown
	}
}

// UserMessage translates any error into the short phrase shown to the user.
func UserMessage(err error) string {
	switch Classify(err) {
	case KindRateLimit, KindThrottling:
		return PhraseRateLimit
	case KindContextTooLarge:
		return PhraseContextTooLarge
	default:
		return PhraseGeneric
	}
}
