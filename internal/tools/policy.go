package tools

import "time"

// Policy bounds one tool invocation's retry and timeout behavior.
type Policy struct {
	TimeoutMs  int
	MaxRetries int
}

// DefaultPolicy is the registry-wide fallback: a 5s timeout, 2 retries.
func DefaultPolicy() Policy {
	return Policy{TimeoutMs: 5000, MaxRetries: 2}
}

// Timeout returns the policy's timeout as a time.Duration.
func (p Policy) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// PolicyOverride carries only the fields a caller wants to change; a nil
// field leaves the underlying policy's value untouched. This avoids the
// zero-value ambiguity a plain Policy would have (MaxRetries: 0 is a
// legitimate "never retry", not "unspecified").
type PolicyOverride struct {
	TimeoutMs  *int
	MaxRetries *int
}

func (p Policy) applyOverride(o *PolicyOverride) Policy {
	if o == nil {
		return p
	}
	out := p
	if o.TimeoutMs != nil {
		out.TimeoutMs = *o.TimeoutMs
	}
	if o.MaxRetries != nil {
		out.MaxRetries = *o.MaxRetries
	}
	return out
}

// effectivePolicy computes default ⊕ sessionOverride ⊕ callOverride,
// later arguments taking precedence field-by-field.
func effectivePolicy(defaultPolicy Policy, sessionOverride, callOverride *PolicyOverride) Policy {
	return defaultPolicy.applyOverride(sessionOverride).applyOverride(callOverride)
}
