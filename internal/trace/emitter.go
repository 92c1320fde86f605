package trace

// Emitter converts agent activity into trace events with normalized payload
// shapes, so external loops do not hand-build payload maps. Every method
// appends synchronously; storage errors propagate to the caller.
type Emitter struct {
	store Store
}

// NewEmitter wraps a store.
func NewEmitter(store Store) *Emitter {
	return &Emitter{store: store}
}

// EmitLLMCall records a model invocation with optional usage metadata.
func (e *Emitter) EmitLLMCall(model string, meta map[string]any) error {
	payload := map[string]any{"model": model}
	for k, v := range meta {
		payload[k] = v
	}
	return e.store.Append(New(TypeLLMCall, payload))
}

// EmitToolCall records a tool invocation.
func (e *Emitter) EmitToolCall(tool string, params map[string]any, toolCallID string) error {
	payload := map[string]any{
		"tool":       tool,
		"parameters": params,
	}
	if toolCallID != "" {
		payload["tool_call_id"] = toolCallID
	}
	return e.store.Append(New(TypeToolCall, payload))
}

// EmitObservation records a tool result. String results are wrapped so the
// payload "result" field is always an object.
func (e *Emitter) EmitObservation(result any, toolCallID string) error {
	payload := map[string]any{}
	switch r := result.(type) {
	case map[string]any:
		payload["result"] = r
	case string:
		payload["result"] = map[string]any{"content": r}
	default:
		payload["result"] = map[string]any{"value": result}
	}
	if toolCallID != "" {
		payload["tool_call_id"] = toolCallID
	}
	return e.store.Append(New(TypeObservation, payload))
}

// EmitArtifact records the creation of an artifact file.
func (e *Emitter) EmitArtifact(path, artifactType, name string) error {
	payload := map[string]any{
		"path": path,
		"type": artifactType,
	}
	if name != "" {
		payload["name"] = name
	}
	return e.store.Append(New(TypeArtifactCreated, payload))
}

// EmitDecision records a supervisory decision point.
func (e *Emitter) EmitDecision(decisionType string, payload map[string]any) error {
	merged := map[string]any{"type": decisionType}
	for k, v := range payload {
		merged[k] = v
	}
	return e.store.Append(New(TypeDecision, merged))
}
