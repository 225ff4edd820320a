package agent_test

import (
	"context"
	"errors"
	"testing"

	. "skeenode/pkg/agent"

	"skeenode/pkg/models"
)

type fakeAgent struct {
	validateErr error
	execResult  Result
	execErr     error
	panicVal    interface{}
}

func (f *fakeAgent) Name() string        { return "fake" }
func (f *fakeAgent) Description() string { return "fake agent for tests" }

func (f *fakeAgent) Validate(payload map[string]interface{}) error {
	return f.validateErr
}

func (f *fakeAgent) Execute(ctx context.Context, payload map[string]interface{}, opts models.JobOptions) (Result, error) {
	if f.panicVal != nil {
		panic(f.panicVal)
	}
	return f.execResult, f.execErr
}

func TestRegistry_GetUnknownAgent(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("missing"); err == nil {
		t.Error("expected error for unknown agent")
	}
}

func TestRegistry_RegisterAndDescribe(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeAgent{})

	descs := r.Describe()
	if len(descs) != 1 || descs[0].Name != "fake" {
		t.Errorf("expected one 'fake' entry, got %+v", descs)
	}
}

func TestRun_ValidationFailureIsNonRetriable(t *testing.T) {
	a := &fakeAgent{validateErr: errors.New("bad payload")}
	outcome := Run(context.Background(), a, nil, models.DefaultJobOptions())

	if outcome.ErrorKind != models.ErrorKindValidationFailure {
		t.Errorf("expected validation_failure kind, got %v", outcome.ErrorKind)
	}
	if outcome.ErrorKind.Retriable() {
		t.Error("validation failures must not be retriable")
	}
}

func TestRun_PanicIsRecoveredAsCrash(t *testing.T) {
	a := &fakeAgent{panicVal: "boom"}
	outcome := Run(context.Background(), a, map[string]interface{}{}, models.DefaultJobOptions())

	if outcome.ErrorKind != models.ErrorKindCrash {
		t.Errorf("expected crash kind, got %v", outcome.ErrorKind)
	}
	if outcome.ErrorKind.Retriable() {
		t.Error("crashes must not be retriable")
	}
}

func TestRun_SuccessReturnsResult(t *testing.T) {
	a := &fakeAgent{execResult: Result{Output: map[string]interface{}{"ok": true}}}
	outcome := Run(context.Background(), a, map[string]interface{}{}, models.DefaultJobOptions())

	if outcome.Err != nil {
		t.Fatalf("unexpected error: %v", outcome.Err)
	}
	if outcome.Result.Output["ok"] != true {
		t.Errorf("expected output ok=true, got %+v", outcome.Result.Output)
	}
}
