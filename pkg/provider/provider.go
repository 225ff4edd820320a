// Package provider implements the text-generation provider registry: a
// uniform contract over pluggable LLM backends (openai, anthropic, google,
// deepseek, llama), selected by name at agent execution time.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"skeenode/pkg/models"
)

// ErrUnknownProvider is returned when a name has no registered Provider.
var ErrUnknownProvider = errors.New("provider: unknown provider")

// ErrNoDefaultProvider is returned by Default when no default has been set.
var ErrNoDefaultProvider = errors.New("provider: no default provider configured")

// Request is the uniform query contract every provider adapter implements.
type Request struct {
	Prompt            string
	SystemInstruction string
	Model             string
	Temperature       float64
	MaxTokens         int
}

// Response is the text result of a provider call.
type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Provider is a pluggable text-generation backend.
type Provider interface {
	// Name returns the registry key this provider is registered under.
	Name() string

	// Query sends a prompt to the backend and returns generated text.
	// Errors must be classifiable via Classify so the pipeline's retry
	// policy can tell transient failures from permanent ones.
	Query(ctx context.Context, req Request) (Response, error)
}

// Health summarizes a provider's recent call outcomes.
type Health struct {
	LastError     string `json:"last_error,omitempty"`
	FailureStreak int    `json:"failure_streak"`
	TotalCalls    int64  `json:"total_calls"`
	TotalFailures int64  `json:"total_failures"`
}

// Registry holds providers by name, resolved at agent execution time.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]Provider
	health      map[string]*Health
	defaultName string
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		health:    make(map[string]*Health),
	}
}

// Register adds or replaces a provider under its own Name().
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
	if _, ok := r.health[p.Name()]; !ok {
		r.health[p.Name()] = &Health{}
	}
}

// Get resolves a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// Names lists every registered provider.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// SetDefault names the provider agents fall back to when they don't
// pin a specific one. It does not need to already be registered;
// Default returns ErrUnknownProvider until a provider of that name is.
func (r *Registry) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultName = name
}

// Default resolves the registry's default provider.
func (r *Registry) Default() (Provider, error) {
	r.mu.RLock()
	name := r.defaultName
	r.mu.RUnlock()
	if name == "" {
		return nil, ErrNoDefaultProvider
	}
	return r.Get(name)
}

// RecordResult updates a provider's health counters after a call. It is
// a no-op for unregistered names so callers don't need to guard it.
func (r *Registry) RecordResult(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.health[name]
	if !ok {
		return
	}
	h.TotalCalls++
	if err != nil {
		h.TotalFailures++
		h.FailureStreak++
		h.LastError = err.Error()
	} else {
		h.FailureStreak = 0
	}
}

// Health reports per-provider call health for every registered provider.
func (r *Registry) Health() map[string]Health {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Health, len(r.health))
	for name, h := range r.health {
		out[name] = *h
	}
	return out
}

// FailureKind classifies a provider error for the pipeline's retry policy.
// Providers return plain errors; FailureError lets Classify recover the
// kind without the pipeline needing to know about each provider's wire
// format.
type FailureKind = models.ErrorKind

// FailureError wraps a provider failure with its classified kind.
type FailureError struct {
	Kind FailureKind
	Err  error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FailureError) Unwrap() error {
	return e.Err
}

// NewFailure wraps err with the given classification.
func NewFailure(kind FailureKind, err error) error {
	return &FailureError{Kind: kind, Err: err}
}

// Classify extracts the ErrorKind from a provider error, defaulting to
// UpstreamError for unclassified failures from the provider layer.
func Classify(err error) models.ErrorKind {
	if err == nil {
		return models.ErrorKindNone
	}
	var fe *FailureError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return models.ErrorKindUpstreamError
}
