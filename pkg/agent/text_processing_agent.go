package agent

import (
	"context"
	"fmt"

	"skeenode/pkg/models"
	"skeenode/pkg/provider"
)

// textProcessingOperations lists the operations TextProcessingAgent
// accepts, each mapped to the instruction given to the provider.
var textProcessingOperations = map[string]string{
	"analyze_sentiment": "Analyze the sentiment of the following text (positive, negative, or neutral), with a confidence score.",
	"extract_keywords":  "Extract the most important keywords and phrases from the following text.",
	"classify_text":     "Classify the following text into the most fitting category or categories.",
	"analyze_tone":      "Analyze the tone and writing style of the following text.",
	"extract_entities":  "Extract named entities (people, organizations, locations, dates) from the following text.",
	"summarize_brief":   "Produce a one or two sentence summary of the following text.",
	"translate":         "Translate the following text.",
	"grammar_check":     "Check the following text for grammar and spelling issues and suggest corrections.",
	"readability_score": "Estimate the readability level of the following text and explain why.",
	"custom":            "Process the following text as instructed by its accompanying parameters.",
}

// TextProcessingAgent runs a fixed set of text-analysis operations
// (sentiment, keyword extraction, translation, and so on) through a
// text-generation provider. It is the Go equivalent of the original
// platform's text processing agent.
type TextProcessingAgent struct {
	name       string
	providers  *provider.Registry
	defaultLLM string
}

// NewTextProcessingAgent builds a text-processing agent bound to a
// provider registry.
func NewTextProcessingAgent(name string, providers *provider.Registry, defaultLLM string) *TextProcessingAgent {
	return &TextProcessingAgent{name: name, providers: providers, defaultLLM: defaultLLM}
}

func (a *TextProcessingAgent) Name() string { return a.name }

func (a *TextProcessingAgent) Description() string {
	return "runs sentiment, keyword, entity, and other text-analysis operations"
}

func (a *TextProcessingAgent) Validate(payload map[string]interface{}) error {
	text, ok := payload["text"].(string)
	if !ok || text == "" {
		return fmt.Errorf("payload missing required field %q", "text")
	}
	if len(text) > 50000 {
		return fmt.Errorf("field %q exceeds maximum length of 50000 characters", "text")
	}

	op, ok := payload["operation"].(string)
	if !ok || op == "" {
		return fmt.Errorf("payload missing required field %q", "operation")
	}
	if _, known := textProcessingOperations[op]; !known {
		return fmt.Errorf("unsupported operation %q", op)
	}
	return nil
}

func (a *TextProcessingAgent) Execute(ctx context.Context, payload map[string]interface{}, opts models.JobOptions) (Result, error) {
	p, providerName, err := resolveProvider(a.providers, payload, a.defaultLLM)
	if err != nil {
		return Result{}, err
	}

	text := payload["text"].(string)
	operation := payload["operation"].(string)
	instruction := textProcessingOperations[operation]

	prompt := fmt.Sprintf("%s\n\nText: %q", instruction, text)
	if params, ok := payload["parameters"].(map[string]interface{}); ok && len(params) > 0 {
		prompt += fmt.Sprintf("\n\nAdditional parameters: %v", params)
	}

	resp, err := p.Query(ctx, provider.Request{
		Prompt:            prompt,
		SystemInstruction: opts.SystemInstruction,
		Model:             opts.Model,
		Temperature:       opts.Temperature,
		MaxTokens:         opts.MaxTokens,
	})
	a.providers.RecordResult(providerName, err)
	if err != nil {
		return Result{}, err
	}

	return Result{Output: map[string]interface{}{
		"result":    resp.Text,
		"operation": operation,
		"model":     resp.Model,
	}}, nil
}
