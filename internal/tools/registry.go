// Package tools implements the name-keyed tool registry: schema
// validation, policy-governed execution with retry and timeout, and
// masked logging of every call.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/RamXX/memory-mcp/internal/errs"
	"github.com/RamXX/memory-mcp/internal/obslog"
)

// Handler is a registered tool's implementation. input has already been
// validated against the tool's schema and unmarshaled into a generic map.
type Handler func(ctx context.Context, input map[string]any) (any, error)

// Tool is one registry entry.
type Tool struct {
	Name        string
	Description string
	// InputSchema is a JSON Schema document (as Go values, e.g. from a
	// map literal or json.Unmarshal); nil skips validation.
	InputSchema map[string]any
	Handler     Handler

	compiled *jsonschema.Schema
}

// InvocationContext carries per-call session identity and an optional
// session-scoped policy override.
type InvocationContext struct {
	SessionID string
	Policy    *PolicyOverride
}

// CallReport summarizes one Execute call for the caller's own logging or
// telemetry, beyond what Registry already logs internally.
type CallReport struct {
	Attempts int
	Duration time.Duration
}

// Registry is the name-keyed tool registry.
type Registry struct {
	mu            sync.RWMutex
	tools         map[string]*Tool
	defaultPolicy Policy
	log           obslog.Logger
	compiler      *jsonschema.Compiler
}

// New builds an empty Registry.
func New(defaultPolicy Policy, log obslog.Logger) *Registry {
	return &Registry{
		tools:         map[string]*Tool{},
		defaultPolicy: defaultPolicy,
		log:           log.With("tools"),
		compiler:      jsonschema.NewCompiler(),
	}
}

// Register adds t to the registry, compiling its input schema (if any).
// Registering a name twice is an error.
func (r *Registry) Register(t Tool) error {
	const op = "tools.Registry.Register"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name]; exists {
		return errs.New(errs.InvalidRequest, op, fmt.Sprintf("tool already registered: %s", t.Name))
	}

	if t.InputSchema != nil {
		resourceURL := "mem://tools/" + t.Name + "/schema.json"
		raw, err := json.Marshal(t.InputSchema)
		if err != nil {
			return errs.Wrap(errs.SchemaValidationError, op, err)
		}
		if err := r.compiler.AddResource(resourceURL, strings.NewReader(string(raw))); err != nil {
			return errs.Wrap(errs.SchemaValidationError, op, err)
		}
		compiled, err := r.compiler.Compile(resourceURL)
		if err != nil {
			return errs.Wrap(errs.SchemaValidationError, op, err)
		}
		t.compiled = compiled
	}

	tCopy := t
	r.tools[t.Name] = &tCopy
	return nil
}

// List returns every registered tool's name and description, the
// registry's view of the advertised interface.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, *t)
	}
	return out
}

// Execute looks up name, validates rawInput against its schema, computes
// the effective policy, and runs the handler under retry/timeout,
// logging start/success/failure with masked input previews.
func (r *Registry) Execute(ctx context.Context, name string, rawInput json.RawMessage, ic InvocationContext, overrides *PolicyOverride) (any, error) {
	const op = "tools.Registry.Execute"

	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.New(errs.InvalidRequest, op, fmt.Sprintf("unknown tool: %s", name))
	}

	if t.compiled != nil {
		var doc any
		if err := json.Unmarshal(rawInput, &doc); err != nil {
			return nil, errs.New(errs.SchemaValidationError, op, fmt.Sprintf("invalid json input: %v", err))
		}
		if err := t.compiled.Validate(doc); err != nil {
			return nil, errs.Wrap(errs.SchemaValidationError, op, err)
		}
	}

	var input map[string]any
	if len(rawInput) > 0 {
		if err := json.Unmarshal(rawInput, &input); err != nil {
			return nil, errs.New(errs.SchemaValidationError, op, fmt.Sprintf("invalid json input: %v", err))
		}
	}

	policy := effectivePolicy(r.defaultPolicy, ic.Policy, overrides)
	callLog := r.log.With(name)
	preview := Preview(string(rawInput), 200)
	callLog.Info("tool call start", "session", ic.SessionID, "input_preview", preview)

	start := time.Now()
	result, err := r.runWithPolicy(ctx, policy, func(attemptCtx context.Context) (any, error) {
		return t.Handler(attemptCtx, input)
	}, func(attempt int, retryErr error) {
		callLog.Warn("tool call retry", "session", ic.SessionID, "attempt", attempt, "error", retryErr.Error())
	})
	duration := time.Since(start)

	if err != nil {
		callLog.Error("tool call failed", "session", ic.SessionID, "duration_ms", duration.Milliseconds(), "error", err.Error())
		return nil, err
	}
	callLog.Info("tool call succeeded", "session", ic.SessionID, "duration_ms", duration.Milliseconds())
	return result, nil
}

// runWithPolicy attempts fn up to policy.MaxRetries+1 times, each bounded
// by policy.TimeoutMs, calling onRetry before every retried attempt.
// Non-retryable failures propagate immediately.
func (r *Registry) runWithPolicy(ctx context.Context, policy Policy, fn func(attemptCtx context.Context) (any, error), onRetry func(attempt int, err error)) (any, error) {
	const op = "tools.Registry.runWithPolicy"

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		result, err, timedOut := runOnce(ctx, policy, fn)

		if timedOut {
			lastErr = errs.New(errs.Timeout, op, "tool call exceeded timeout")
			if attempt < policy.MaxRetries {
				onRetry(attempt+1, lastErr)
				continue
			}
			return nil, lastErr
		}

		if err == nil {
			return result, nil
		}
		lastErr = err
		if !errs.Retryable(err) || attempt == policy.MaxRetries {
			return nil, err
		}
		onRetry(attempt+1, err)
	}
	return nil, lastErr
}

// runOnce runs fn under a deadline of policy.Timeout(), abandoning it the
// instant the deadline fires rather than waiting for fn to return on its
// own. A zero (or already-expired) timeout reports a timeout before fn is
// ever invoked, so a timeout_ms=0 policy never runs the handler body.
func runOnce(ctx context.Context, policy Policy, fn func(attemptCtx context.Context) (any, error)) (result any, err error, timedOut bool) {
	attemptCtx, cancel := context.WithTimeout(ctx, policy.Timeout())
	defer cancel()

	if attemptCtx.Err() != nil {
		return nil, nil, true
	}

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := fn(attemptCtx)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		return o.result, o.err, false
	case <-attemptCtx.Done():
		return nil, nil, true
	}
}
