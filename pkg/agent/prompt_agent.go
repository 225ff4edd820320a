package agent

import (
	"context"
	"fmt"

	"skeenode/pkg/models"
	"skeenode/pkg/provider"
)

// PromptAgent is a general-purpose agent that forwards its payload's
// "prompt" field to a configured provider and returns the generated text.
// It is the Go equivalent of the original platform's "simple_prompt" agent.
type PromptAgent struct {
	name       string
	providers  *provider.Registry
	defaultLLM string
}

// NewPromptAgent builds a prompt-forwarding agent bound to a provider
// registry. defaultLLM names the provider used when the job payload
// doesn't specify "provider".
func NewPromptAgent(name string, providers *provider.Registry, defaultLLM string) *PromptAgent {
	return &PromptAgent{name: name, providers: providers, defaultLLM: defaultLLM}
}

func (a *PromptAgent) Name() string { return a.name }

func (a *PromptAgent) Description() string {
	return "forwards a prompt to a configured text-generation provider"
}

func (a *PromptAgent) Validate(payload map[string]interface{}) error {
	prompt, ok := payload["prompt"]
	if !ok {
		return fmt.Errorf("payload missing required field %q", "prompt")
	}
	text, ok := prompt.(string)
	if !ok || text == "" {
		return fmt.Errorf("field %q must be a non-empty string", "prompt")
	}
	return nil
}

func (a *PromptAgent) Execute(ctx context.Context, payload map[string]interface{}, opts models.JobOptions) (Result, error) {
	p, providerName, err := resolveProvider(a.providers, payload, a.defaultLLM)
	if err != nil {
		return Result{}, err
	}

	resp, err := p.Query(ctx, provider.Request{
		Prompt:            payload["prompt"].(string),
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
		"text":          resp.Text,
		"model":         resp.Model,
		"input_tokens":  resp.InputTokens,
		"output_tokens": resp.OutputTokens,
	}}, nil
}
