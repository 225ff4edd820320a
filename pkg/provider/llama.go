package provider

import (
	"encoding/json"
	"fmt"
)

type llamaRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	System      string  `json:"system,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

type llamaResponse struct {
	Model      string `json:"model"`
	Completion string `json:"completion"`
	Usage      struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// NewLlamaProvider builds the "llama" provider adapter, targeting a
// self-hosted inference endpoint (e.g. an Ollama or vLLM deployment)
// rather than a vendor-hosted API.
func NewLlamaProvider(baseURL, apiKey string) *HTTPProvider {
	return NewHTTPProvider(HTTPProviderConfig{
		ProviderName: "llama",
		BaseURL:      baseURL,
		APIKey:       apiKey,
		AuthHeader:   "Authorization",
		AuthScheme:   "Bearer ",
		DefaultModel: "llama3.1",
		EncodeRequest: func(req Request, model string) ([]byte, error) {
			return encodeJSON(llamaRequest{
				Model:       model,
				Prompt:      req.Prompt,
				System:      req.SystemInstruction,
				Temperature: req.Temperature,
				MaxTokens:   req.MaxTokens,
			})
		},
		DecodeResponse: func(body []byte) (Response, error) {
			var out llamaResponse
			if err := json.Unmarshal(body, &out); err != nil {
				return Response{}, err
			}
			if out.Completion == "" {
				return Response{}, fmt.Errorf("llama: empty completion")
			}
			return Response{
				Text:         out.Completion,
				Model:        out.Model,
				InputTokens:  out.Usage.PromptTokens,
				OutputTokens: out.Usage.CompletionTokens,
			}, nil
		},
		ClassifyStatus: classifyByHTTPStatus,
	})
}
