// Package agent implements the agent runtime: named units of work with a
// payload schema and an Execute method, wrapped with validation, timing,
// and crash recovery before they reach the job pipeline.
//
// Agents register themselves explicitly at process startup via Register;
// there is no decorator-driven or reflection-based discovery.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"skeenode/pkg/models"
	"skeenode/pkg/provider"
)

// Result is the outcome of a successful agent execution.
type Result struct {
	Output   map[string]interface{}
	Duration time.Duration
}

// Agent is a self-contained unit of work: it validates its own payload and
// executes it against whatever provider/service it needs.
type Agent interface {
	// Name is the registry key and the value jobs carry as AgentName.
	Name() string

	// Description is a short human-readable summary.
	Description() string

	// Validate checks a raw payload against the agent's expected schema
	// before Execute is called. A non-nil error here is always
	// non-retriable (ErrorKindValidationFailure).
	Validate(payload map[string]interface{}) error

	// Execute runs the agent's logic against a validated payload.
	Execute(ctx context.Context, payload map[string]interface{}, opts models.JobOptions) (Result, error)
}

// ErrValidation wraps a payload validation failure.
type ErrValidation struct {
	Reason string
}

func (e *ErrValidation) Error() string { return "validation failed: " + e.Reason }

// Registry holds agents by name, resolved when a job is dispatched.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

// Register adds or replaces an agent under its own Name().
func (r *Registry) Register(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.Name()] = a
}

// Get resolves an agent by name.
func (r *Registry) Get(name string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("agent: unknown agent %q", name)
	}
	return a, nil
}

// Describe returns name/description pairs for every registered agent.
func (r *Registry) Describe() []Description {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Description, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, Description{Name: a.Name(), Description: a.Description()})
	}
	return out
}

// Description is a registry listing entry.
type Description struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// resolveProvider picks the provider a job payload asked for, falling
// back to the agent's configured default, and finally to the registry's
// global default when the agent wasn't given one. Every agent's Execute
// goes through this so "no provider available" fails the same way
// everywhere.
func resolveProvider(providers *provider.Registry, payload map[string]interface{}, defaultLLM string) (provider.Provider, string, error) {
	name := defaultLLM
	if v, ok := payload["provider"].(string); ok && v != "" {
		name = v
	}
	if name != "" {
		p, err := providers.Get(name)
		if err == nil {
			return p, name, nil
		}
		if !errors.Is(err, provider.ErrUnknownProvider) {
			return nil, name, err
		}
	}
	p, err := providers.Default()
	if err != nil {
		return nil, name, err
	}
	return p, p.Name(), nil
}

// RunOutcome is what the pipeline worker observes after running an agent:
// either a Result or a classified failure it can use to decide retry
// disposition.
type RunOutcome struct {
	Result    Result
	Err       error
	ErrorKind models.ErrorKind
}

// Run validates the payload, then executes the agent with panic recovery,
// timing the whole call. This is the one entry point the job pipeline
// calls — it never calls Agent.Execute directly.
func Run(ctx context.Context, a Agent, payload map[string]interface{}, opts models.JobOptions) (outcome RunOutcome) {
	start := time.Now()

	if err := a.Validate(payload); err != nil {
		return RunOutcome{
			Err:       &ErrValidation{Reason: err.Error()},
			ErrorKind: models.ErrorKindValidationFailure,
		}
	}

	defer func() {
		if r := recover(); r != nil {
			outcome = RunOutcome{
				Err:       fmt.Errorf("agent %q panicked: %v", a.Name(), r),
				ErrorKind: models.ErrorKindCrash,
			}
		}
	}()

	result, err := a.Execute(ctx, payload, opts)
	result.Duration = time.Since(start)

	if err != nil {
		var validationErr *ErrValidation
		kind := models.ErrorKindUpstreamError
		switch {
		case errors.As(err, &validationErr):
			kind = models.ErrorKindValidationFailure
		case errors.Is(err, context.DeadlineExceeded):
			kind = models.ErrorKindTimeout
		default:
			kind = provider.Classify(err)
		}
		return RunOutcome{Err: err, ErrorKind: kind, Result: result}
	}

	return RunOutcome{Result: result}
}
