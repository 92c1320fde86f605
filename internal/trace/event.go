// Package trace defines the event model and run-scoped event storage for
// sentinel. Events are immutable once appended; append order must equal
// timestamp order, and stores never mutate or delete past events.
package trace

import (
	"time"
)

// Type classifies a trace event.
type Type string

const (
	TypeLLMCall          Type = "llm_call"
	TypeToolCall         Type = "tool_call"
	TypeObservation      Type = "observation"
	TypeArtifactCreated  Type = "artifact_created"
	TypeDecision         Type = "decision"
	TypeIntervention     Type = "intervention"
	TypeEscalationPacket Type = "escalation_packet"
)

// Event is a single immutable trace record. Payload shape depends on Type;
// it is an open map so collaborators can attach whatever context they have.
type Event struct {
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// New creates an event stamped with the current UTC time.
func New(t Type, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{
		Type:      t,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// PayloadString returns a string payload field, or "" when absent.
func (e Event) PayloadString(key string) string {
	if v, ok := e.Payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
