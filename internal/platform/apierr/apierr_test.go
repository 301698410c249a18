package apierr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type statusErr struct {
	status int
	msg    string
}

func (e statusErr) Error() string       { return e.msg }
func (e statusErr) HTTPStatusCode() int { return e.status }

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{nil, KindUnknown},
		{context.Canceled, KindCanceled},
		{fmt.Errorf("wrapped: %w", context.Canceled), KindCanceled},
		{statusErr{429, "slow down"}, KindRateLimit},
		{errors.New("Rate limit reached for gpt-4.1"), KindRateLimit},
		{statusErr{401, "nope"}, KindInvalidAPIKey},
		{errors.New("model is overloaded, retry shortly"), KindThrottling},
		{errors.New("maximum context length is 128000 tokens"), KindContextTooLarge},
		{errors.New("string too long: 1048576 chars"), KindContextTooLarge},
		{statusErr{404, "missing"}, KindNotFound},
		{statusErr{403, "forbidden"}, KindUnauthorized},
		{errors.New("dial tcp: connection refused"), KindUnknown},
	}
	for _, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Errorf("Classify(%v) = %s, want %s", c.err, got, c.want)
		}
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(statusErr{429, "x"}); got != PhraseRateLimit {
		t.Fatalf("got %q", got)
	}
	if got := UserMessage(errors.New("maximum context length exceeded")); got != PhraseContextTooLarge {
		t.Fatalf("got %q", got)
	}
	if got := UserMessage(errors.New("boom")); got != PhraseGeneric {
		t.Fatalf("got %q", got)
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("db down")
	e := New(500, "internal_error", inner)
	if !errors.Is(e, inner) {
		t.Fatal("Unwrap chain broken")
	}
	var ae *Error
	if !errors.As(fmt.Errorf("handler: %w", e), &ae) {
		t.Fatal("errors.As failed")
	}
	if ae.Status != 500 || ae.Code != "internal_error" {
		t.Fatalf("ae = %+v", ae)
	}
}

func TestErrorMessageFallbacks(t *testing.T) {
	if (&Error{Code: "bad_request"}).Error() != "bad_request" {
		t.Fatal("code fallback")
	}
	if (&Error{Status: 502}).Error() != "api error (502)" {
		t.Fatal("status fallback")
	}
}
