package provider_test

import (
	"context"
	"testing"

	. "skeenode/pkg/provider"

	"skeenode/pkg/models"
)

type stubProvider struct {
	name string
	resp Response
	err  error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Query(ctx context.Context, req Request) (Response, error) {
	return s.resp, s.err
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: "openai", resp: Response{Text: "hi"}})

	p, err := r.Get("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := p.Query(context.Background(), Request{Prompt: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "hi" {
		t.Errorf("expected text 'hi', got %q", resp.Text)
	}
}

func TestRegistry_UnknownProvider(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("nonexistent"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: "openai"})
	r.Register(&stubProvider{name: "anthropic"})

	names := r.Names()
	if len(names) != 2 {
		t.Errorf("expected 2 registered providers, got %d", len(names))
	}
}

func TestClassify_WrapsKind(t *testing.T) {
	err := NewFailure(models.ErrorKindRateLimited, context.DeadlineExceeded)
	if Classify(err) != models.ErrorKindRateLimited {
		t.Errorf("expected rate_limited kind, got %v", Classify(err))
	}
}

func TestClassify_DefaultsToUpstreamError(t *testing.T) {
	err := context.DeadlineExceeded
	if Classify(err) != models.ErrorKindUpstreamError {
		t.Errorf("expected upstream_error default, got %v", Classify(err))
	}
}
