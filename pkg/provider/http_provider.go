package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"skeenode/pkg/models"
	"skeenode/pkg/resilience"
)

// HTTPProviderConfig configures one of the uniform HTTP-backed adapters
// (openai, anthropic, google, deepseek, llama). Each provider's API shape
// differs in its wire request/response fields; AuthHeader/AuthScheme and
// EncodeRequest/DecodeResponse absorb that difference so the rest of the
// registry sees the same Provider interface.
type HTTPProviderConfig struct {
	ProviderName string
	BaseURL      string
	APIKey       string
	AuthHeader   string // e.g. "Authorization" or "x-api-key"
	AuthScheme   string // e.g. "Bearer ", "" for raw key
	DefaultModel string
	Timeout      time.Duration

	// EncodeRequest builds the provider-specific JSON body.
	EncodeRequest func(Request, string) ([]byte, error)
	// DecodeResponse extracts text + usage from the provider-specific JSON body.
	DecodeResponse func([]byte) (Response, error)
	// ClassifyStatus maps an HTTP status code to a failure kind.
	ClassifyStatus func(status int) models.ErrorKind
}

// HTTPProvider is a net/http-based Provider adapter shared by every
// text-generation backend, each configured via HTTPProviderConfig. This
// mirrors the hand-rolled single-endpoint client pattern the platform
// already uses for its internal services, generalized across providers.
type HTTPProvider struct {
	cfg    HTTPProviderConfig
	client *http.Client
	cb     *resilience.CircuitBreaker
}

// NewHTTPProvider builds a provider adapter from the given configuration,
// wrapping calls in a circuit breaker so a failing upstream does not
// cascade into the worker pool queuing endlessly on dead providers.
func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		cb: resilience.NewCircuitBreaker(cfg.ProviderName, resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
			MaxRequests:      3,
		}),
	}
}

func (p *HTTPProvider) Name() string { return p.cfg.ProviderName }

func (p *HTTPProvider) Query(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.DefaultModel
	}

	var resp Response
	err := p.cb.Execute(ctx, func() error {
		body, encErr := p.cfg.EncodeRequest(req, model)
		if encErr != nil {
			return NewFailure(models.ErrorKindInvalidRequest, encErr)
		}

		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL, bytes.NewReader(body))
		if reqErr != nil {
			return NewFailure(models.ErrorKindInvalidRequest, reqErr)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if p.cfg.AuthHeader != "" {
			httpReq.Header.Set(p.cfg.AuthHeader, p.cfg.AuthScheme+p.cfg.APIKey)
		}

		httpResp, doErr := p.client.Do(httpReq)
		if doErr != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return NewFailure(models.ErrorKindTimeout, doErr)
			}
			return NewFailure(models.ErrorKindUpstreamError, doErr)
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode != http.StatusOK {
			kind := models.ErrorKindUpstreamError
			if p.cfg.ClassifyStatus != nil {
				kind = p.cfg.ClassifyStatus(httpResp.StatusCode)
			}
			return NewFailure(kind, fmt.Errorf("%s returned status %d", p.cfg.ProviderName, httpResp.StatusCode))
		}

		var buf bytes.Buffer
		if _, copyErr := buf.ReadFrom(httpResp.Body); copyErr != nil {
			return NewFailure(models.ErrorKindUpstreamError, copyErr)
		}

		decoded, decErr := p.cfg.DecodeResponse(buf.Bytes())
		if decErr != nil {
			return NewFailure(models.ErrorKindUpstreamError, decErr)
		}
		resp = decoded
		return nil
	})

	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return Response{}, NewFailure(models.ErrorKindUpstreamError, err)
		}
		return Response{}, err
	}
	return resp, nil
}

// classifyByHTTPStatus is the default status->kind mapping shared across
// providers that don't need bespoke handling: 401/403 are auth failures,
// 429 is rate limiting, 5xx is an upstream error, everything else is
// treated as an invalid request.
func classifyByHTTPStatus(status int) models.ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return models.ErrorKindAuthFailure
	case status == http.StatusTooManyRequests:
		return models.ErrorKindRateLimited
	case status >= 500:
		return models.ErrorKindUpstreamError
	default:
		return models.ErrorKindInvalidRequest
	}
}

func encodeJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
