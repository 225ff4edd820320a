package agent_test

import (
	"context"
	"testing"

	. "skeenode/pkg/agent"

	"skeenode/pkg/models"
	"skeenode/pkg/provider"
)

type stubTextProvider struct {
	name string
	resp provider.Response
}

func (s *stubTextProvider) Name() string { return s.name }

func (s *stubTextProvider) Query(ctx context.Context, req provider.Request) (provider.Response, error) {
	return s.resp, nil
}

func TestTextProcessingAgent_ValidateRequiresKnownOperation(t *testing.T) {
	a := NewTextProcessingAgent("text_processing", provider.NewRegistry(), "openai")
	err := a.Validate(map[string]interface{}{"text": "hello", "operation": "not_a_real_operation"})
	if err == nil {
		t.Error("expected error for an unsupported operation")
	}
}

func TestTextProcessingAgent_ValidateRequiresText(t *testing.T) {
	a := NewTextProcessingAgent("text_processing", provider.NewRegistry(), "openai")
	err := a.Validate(map[string]interface{}{"operation": "analyze_sentiment"})
	if err == nil {
		t.Error("expected error for missing text field")
	}
}

func TestTextProcessingAgent_ExecuteAnalyzeSentiment(t *testing.T) {
	providers := provider.NewRegistry()
	providers.Register(&stubTextProvider{name: "openai", resp: provider.Response{Text: "positive, 0.92", Model: "gpt-4"}})

	a := NewTextProcessingAgent("text_processing", providers, "openai")
	result, err := a.Execute(context.Background(), map[string]interface{}{
		"text":      "I love this product!",
		"operation": "analyze_sentiment",
	}, models.DefaultJobOptions())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output["operation"] != "analyze_sentiment" {
		t.Errorf("expected operation echoed back, got %v", result.Output["operation"])
	}
	if result.Output["result"] != "positive, 0.92" {
		t.Errorf("expected provider response as result, got %v", result.Output["result"])
	}
}
