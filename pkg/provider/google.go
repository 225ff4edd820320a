package provider

import (
	"encoding/json"
	"fmt"
)

type googleRequest struct {
	Contents         []googleContent `json:"contents"`
	SystemInstruction *googleContent `json:"systemInstruction,omitempty"`
	GenerationConfig googleGenConfig `json:"generationConfig,omitempty"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleGenConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type googleResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// NewGoogleProvider builds the "google" provider adapter (Gemini).
func NewGoogleProvider(apiKey string) *HTTPProvider {
	return NewHTTPProvider(HTTPProviderConfig{
		ProviderName: "google",
		BaseURL:      "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent?key=" + apiKey,
		APIKey:       apiKey,
		AuthHeader:   "",
		DefaultModel: "gemini-1.5-flash",
		EncodeRequest: func(req Request, model string) ([]byte, error) {
			body := googleRequest{
				Contents: []googleContent{{Parts: []googlePart{{Text: req.Prompt}}}},
				GenerationConfig: googleGenConfig{
					Temperature:     req.Temperature,
					MaxOutputTokens: req.MaxTokens,
				},
			}
			if req.SystemInstruction != "" {
				body.SystemInstruction = &googleContent{Parts: []googlePart{{Text: req.SystemInstruction}}}
			}
			return encodeJSON(body)
		},
		DecodeResponse: func(body []byte) (Response, error) {
			var out googleResponse
			if err := json.Unmarshal(body, &out); err != nil {
				return Response{}, err
			}
			if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
				return Response{}, fmt.Errorf("google: empty candidates")
			}
			return Response{
				Text:         out.Candidates[0].Content.Parts[0].Text,
				InputTokens:  out.UsageMetadata.PromptTokenCount,
				OutputTokens: out.UsageMetadata.CandidatesTokenCount,
			}, nil
		},
		ClassifyStatus: classifyByHTTPStatus,
	})
}
