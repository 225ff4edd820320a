package provider

import (
	"encoding/json"
	"fmt"
)

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewAnthropicProvider builds the "anthropic" provider adapter. The
// default model matches the platform's prior Anthropic integration
// (claude-3-5-sonnet-20241022).
func NewAnthropicProvider(apiKey string) *HTTPProvider {
	return NewHTTPProvider(HTTPProviderConfig{
		ProviderName: "anthropic",
		BaseURL:      "https://api.anthropic.com/v1/messages",
		APIKey:       apiKey,
		AuthHeader:   "x-api-key",
		AuthScheme:   "",
		DefaultModel: "claude-3-5-sonnet-20241022",
		EncodeRequest: func(req Request, model string) ([]byte, error) {
			maxTokens := req.MaxTokens
			if maxTokens == 0 {
				maxTokens = 2000
			}
			return encodeJSON(anthropicRequest{
				Model:       model,
				System:      req.SystemInstruction,
				Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
				MaxTokens:   maxTokens,
				Temperature: req.Temperature,
			})
		},
		DecodeResponse: func(body []byte) (Response, error) {
			var out anthropicResponse
			if err := json.Unmarshal(body, &out); err != nil {
				return Response{}, err
			}
			if len(out.Content) == 0 {
				return Response{}, fmt.Errorf("anthropic: empty content")
			}
			return Response{
				Text:         out.Content[0].Text,
				Model:        out.Model,
				InputTokens:  out.Usage.InputTokens,
				OutputTokens: out.Usage.OutputTokens,
			}, nil
		},
		ClassifyStatus: classifyByHTTPStatus,
	})
}
