// Package agent runs the PRD-writing agent whose work sentinel supervises.
// The agent drafts a product requirements document from a milestone bundle,
// recording every model and tool interaction on the trace.
package agent

import "context"

// LLMClient abstracts the completion backend so the loop can run against
// Gemini or a deterministic offline writer.
type LLMClient interface {
	// Complete returns the model's response to a prompt.
	Complete(ctx context.Context, prompt string) (string, error)
	// CompleteWithSystem supplies a system instruction alongside the prompt.
	CompleteWithSystem(ctx context.Context, system, prompt string) (string, error)
	// Model names the backing model, for trace metadata.
	Model() string
}
