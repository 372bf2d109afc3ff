package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"patina/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "restoring", "generate", "request failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"restoring", "generate", "request failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestRetryableClassification(t *testing.T) {
	transient := services.Wrap(services.ErrTransient, "detecting", "call", "timeout", nil)
	if !services.Retryable(transient) {
		t.Error("transient errors should be retryable")
	}

	rejected := services.Wrap(services.ErrRejected, "restoring", "call", "refused", nil)
	if !services.Retryable(rejected) {
		t.Error("provider rejections should be retryable up to budget")
	}

	malformed := services.Wrap(services.ErrMalformed, "detecting", "parse", "bad json", nil)
	if services.Retryable(malformed) {
		t.Error("malformed responses must not be retried")
	}

	if services.Retryable(context.Canceled) {
		t.Error("cancellation must not be retried")
	}
	if !services.Retryable(context.DeadlineExceeded) {
		t.Error("per-call deadlines should be retryable")
	}
	if services.Retryable(nil) {
		t.Error("nil error is not retryable")
	}
}

func TestKindLabels(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrMalformed, "", "", "bad", nil), "malformed"},
		{services.Wrap(services.ErrRejected, "", "", "no", nil), "rejected"},
		{services.Wrap(services.ErrTransient, "", "", "net", nil), "transient"},
		{context.Canceled, "cancelled"},
		{errors.New("other"), "unknown"},
	}
	for _, tc := range cases {
		if got := services.Kind(tc.err); got != tc.want {
			t.Errorf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
