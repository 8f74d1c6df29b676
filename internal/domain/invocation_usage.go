package domain

import (
	"context"
	"time"
)

type invocationUsageKey struct{}

// InvocationUsage collects facts about the inference process run for a single
// HTTP request. The handler puts a pointer into the context before calling the
// service; the service fills it after invocation; the handler reads it for
// response headers.
type InvocationUsage struct {
	Duration time.Duration
	ExitCode int
	Invoked  bool
}

// NewContextWithInvocationUsage returns a context carrying an empty usage collector.
func NewContextWithInvocationUsage(ctx context.Context) (context.Context, *InvocationUsage) {
	u := &InvocationUsage{}
	return context.WithValue(ctx, invocationUsageKey{}, u), u
}

// InvocationUsageFromContext extracts the usage collector. Returns nil if not set.
func InvocationUsageFromContext(ctx context.Context) *InvocationUsage {
	u, _ := ctx.Value(invocationUsageKey{}).(*InvocationUsage)
	return u
}

// Record stores the outcome of one invocation.
func (u *InvocationUsage) Record(d time.Duration, exitCode int) {
	if u != nil {
		u.Duration = d
		u.ExitCode = exitCode
		u.Invoked = true
	}
}
