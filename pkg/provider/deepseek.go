package provider

import (
	"encoding/json"
	"fmt"
)

// NewDeepseekProvider builds the "deepseek" provider adapter. Deepseek's
// chat completion wire format is OpenAI-compatible, so it reuses the
// openai request/response shapes against its own endpoint.
func NewDeepseekProvider(apiKey string) *HTTPProvider {
	return NewHTTPProvider(HTTPProviderConfig{
		ProviderName: "deepseek",
		BaseURL:      "https://api.deepseek.com/chat/completions",
		APIKey:       apiKey,
		AuthHeader:   "Authorization",
		AuthScheme:   "Bearer ",
		DefaultModel: "deepseek-chat",
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
				return Response{}, fmt.Errorf("deepseek: empty choices")
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
