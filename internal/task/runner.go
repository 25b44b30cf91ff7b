package task

import "context"

// Runner is the task collaborator contract: given a definition and an input
// payload, perform the delegated work and return a structured result honoring
// the definition's schema, or fail. Implementations own timeouts and
// resilience; the pipeline executor only sequences calls.
type Runner interface {
	Run(ctx context.Context, def Definition, input map[string]any) (Result, error)
}

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc func(ctx context.Context, def Definition, input map[string]any) (Result, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, def Definition, input map[string]any) (Result, error) {
	return f(ctx, def, input)
}
