package agent_test

import (
	"context"
	"testing"

	. "skeenode/pkg/agent"

	"skeenode/pkg/models"
	"skeenode/pkg/provider"
)

type stubSummaryProvider struct {
	name string
	resp provider.Response
}

func (s *stubSummaryProvider) Name() string { return s.name }

func (s *stubSummaryProvider) Query(ctx context.Context, req provider.Request) (provider.Response, error) {
	return s.resp, nil
}

func TestSummarizationAgent_ValidateRequiresText(t *testing.T) {
	a := NewSummarizationAgent("summarization", provider.NewRegistry(), "openai")
	if err := a.Validate(map[string]interface{}{}); err == nil {
		t.Error("expected error for missing text field")
	}
}

func TestSummarizationAgent_ValidateRejectsOutOfRangeMaxLength(t *testing.T) {
	a := NewSummarizationAgent("summarization", provider.NewRegistry(), "openai")
	payload := map[string]interface{}{"text": "some text", "max_length": float64(5)}
	if err := a.Validate(payload); err == nil {
		t.Error("expected error for max_length below the allowed minimum")
	}
}

func TestSummarizationAgent_ExecuteDefaultsUnknownStyleToComprehensive(t *testing.T) {
	providers := provider.NewRegistry()
	providers.Register(&stubSummaryProvider{name: "openai", resp: provider.Response{Text: "a short summary", Model: "gpt-4"}})

	a := NewSummarizationAgent("summarization", providers, "openai")
	result, err := a.Execute(context.Background(), map[string]interface{}{
		"text":  "a very long article about go programming",
		"style": "not_a_real_style",
	}, models.DefaultJobOptions())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output["summary_type"] != "comprehensive" {
		t.Errorf("expected fallback summary_type 'comprehensive', got %v", result.Output["summary_type"])
	}
	if result.Output["summary"] != "a short summary" {
		t.Errorf("expected summary from provider response, got %v", result.Output["summary"])
	}
}

func TestSummarizationAgent_ExecuteUsesPayloadProviderOverride(t *testing.T) {
	providers := provider.NewRegistry()
	providers.Register(&stubSummaryProvider{name: "anthropic", resp: provider.Response{Text: "claude summary"}})

	a := NewSummarizationAgent("summarization", providers, "openai")
	result, err := a.Execute(context.Background(), map[string]interface{}{
		"text":     "text to summarize",
		"provider": "anthropic",
	}, models.DefaultJobOptions())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output["summary"] != "claude summary" {
		t.Errorf("expected the payload's provider override to be used, got %v", result.Output["summary"])
	}
}
