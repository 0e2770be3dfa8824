package domain

import (
	"encoding/json"
	"fmt"
)

// AgentEventType enumerates the structured event types emitted by the
// agent CLI on its stdout stream (one JSON object per line).
type AgentEventType string

const (
	EventText         AgentEventType = "text"          // assistant prose
	EventUserPrompt   AgentEventType = "user"          // echoed user input
	EventToolUse      AgentEventType = "tool_use"      // tool invocation
	EventToolResult   AgentEventType = "tool_result"   // tool outcome
	EventTurnComplete AgentEventType = "turn_complete" // agent idle, turn done
)

// AgentEvent is one structured message from the agent stream. The engine
// treats the agent's reasoning as opaque; only the fields below are
// interpreted. CallID links a tool_use to its later tool_result.
type AgentEvent struct {
	Type   AgentEventType  `json:"type"`
	Text   string          `json:"text,omitempty"`
	Tool   string          `json:"tool,omitempty"`
	Input  json.RawMessage `json:"input,omitempty"`
	CallID string          `json:"call_id,omitempty"`
	IsErr  bool            `json:"is_error,omitempty"`
}

// ParseAgentEvent decodes a structured-event payload.
func ParseAgentEvent(payload []byte) (*AgentEvent, error) {
	var ev AgentEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("failed to parse agent event: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("agent event has no type")
	}
	return &ev, nil
}

// LooksStructured reports whether a stdout line should be ingested as a
// structured event rather than plain text. A line qualifies only if it
// decodes as a JSON object carrying a type field.
func LooksStructured(line []byte) bool {
	if len(line) == 0 || line[0] != '{' {
		return false
	}
	_, err := ParseAgentEvent(line)
	return err == nil
}
