package provider

import (
	"encoding/json"
	"fmt"
)

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// NewOpenAIProvider builds the "openai" provider adapter.
func NewOpenAIProvider(apiKey string) *HTTPProvider {
	return NewHTTPProvider(HTTPProviderConfig{
		ProviderName: "openai",
		BaseURL:      "https://api.openai.com/v1/chat/completions",
		APIKey:       apiKey,
		AuthHeader:   "Authorization",
		AuthScheme:   "Bearer ",
		DefaultModel: "gpt-4o-mini",
		EncodeRequest: func(req Request, model string) ([]byte, error) {
			messages := make([]openAIMessage, 0, 2)
			if req.SystemInstruction != "" {
				messages = append(messages, openAIMessage{Role: "system", Content: req.SystemInstruction})
			}
			messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})
			return encodeJSON(openAIRequest{
				Model:       model,
				Messages:    messages,
				Temperature: req.Temperature,
				MaxTokens:   req.MaxTokens,
			})
		},
		DecodeResponse: func(body []byte) (Response, error) {
			var out openAIResponse
			if err := json.Unmarshal(body, &out); err != nil {
				return Response{}, err
			}
			if len(out.Choices) == 0 {
				return Response{}, fmt.Errorf("openai: empty choices")
			}
			return Response{
				Text:         out.Choices[0].Message.Content,
				Model:        out.Model,
				InputTokens:  out.Usage.PromptTokens,
				OutputTokens: out.Usage.CompletionTokens,
			}, nil
		},
		ClassifyStatus: classifyByHTTPStatus,
	})
}
