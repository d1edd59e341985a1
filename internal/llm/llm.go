// Package llm defines the text-completion capability the triage pipeline
// consumes. Implementations live in subpackages; tests use in-memory fakes.
package llm

import "context"

// Completer is a single-shot text completion: one prompt in, one raw
// response out. The model behind it is opaque to callers and responses are
// not guaranteed to be well-formed; see the structured package for the
// parse/validate/retry contract layered on top.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a plain function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
