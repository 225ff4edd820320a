package agent

import (
	"context"
	"fmt"

	"skeenode/pkg/models"
	"skeenode/pkg/provider"
)

// summaryStyles lists the styles SummarizationAgent accepts; anything
// outside this set falls back to "comprehensive".
var summaryStyles = map[string]bool{
	"extractive": true, "abstractive": true, "structured": true,
	"bullet_points": true, "executive": true, "comprehensive": true, "key_insights": true,
}

// SummarizationAgent condenses a block of text to a target length and
// style by delegating the actual summarization to a text-generation
// provider. It is the Go equivalent of the original platform's
// summarization agent, narrowed to the text media type — audio/video
// transcription is out of scope without a media pipeline behind it.
type SummarizationAgent struct {
	name       string
	providers  *provider.Registry
	defaultLLM string
}

// NewSummarizationAgent builds a text-summarization agent bound to a
// provider registry.
func NewSummarizationAgent(name string, providers *provider.Registry, defaultLLM string) *SummarizationAgent {
	return &SummarizationAgent{name: name, providers: providers, defaultLLM: defaultLLM}
}

func (a *SummarizationAgent) Name() string { return a.name }

func (a *SummarizationAgent) Description() string {
	return "summarizes text to a target length and style"
}

func (a *SummarizationAgent) Validate(payload map[string]interface{}) error {
	text, ok := payload["text"].(string)
	if !ok || text == "" {
		return fmt.Errorf("payload missing required field %q", "text")
	}
	if len(text) > 100000 {
		return fmt.Errorf("field %q exceeds maximum length of 100000 characters", "text")
	}
	if maxLen, ok := payload["max_length"]; ok {
		n, isNum := maxLen.(float64)
		if !isNum || n < 10 || n > 1000 {
			return fmt.Errorf("field %q must be a number between 10 and 1000", "max_length")
		}
	}
	return nil
}

func (a *SummarizationAgent) Execute(ctx context.Context, payload map[string]interface{}, opts models.JobOptions) (Result, error) {
	p, providerName, err := resolveProvider(a.providers, payload, a.defaultLLM)
	if err != nil {
		return Result{}, err
	}

	text := payload["text"].(string)
	maxLength := 150
	if v, ok := payload["max_length"].(float64); ok {
		maxLength = int(v)
	}
	style, _ := payload["style"].(string)
	if style == "" {
		style = "neutral"
	}
	summaryType := style
	if !summaryStyles[summaryType] {
		summaryType = "comprehensive"
	}

	prompt := fmt.Sprintf(
		"Summarize the following text using a %s approach, in at most %d words:\n\n%s\n\n"+
			"Respond with a concise summary followed by 3-5 key points.",
		summaryType, maxLength, text,
	)

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
		"summary":      resp.Text,
		"summary_type": summaryType,
		"model":        resp.Model,
		"input_tokens": resp.InputTokens,
	}}, nil
}
