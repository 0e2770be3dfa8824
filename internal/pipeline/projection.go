package pipeline

import (
	"fmt"
	"strings"

	"maestro/internal/domain"
)

// Projector turns an ordered stream of output records into display
// lines. Rendering depends only on the records and the order they
// arrive in, so replaying a stored session produces exactly the text
// the live view showed.
type Projector struct {
	// pendingTools maps a tool call id to its tool name until the
	// matching result arrives.
	pendingTools map[string]string
}

// NewProjector creates a projector with no pending tool calls.
func NewProjector() *Projector {
	p := &Projector{}
	p.Reset()
	return p
}

// Reset clears correlation state so the projector can be reused for
// another pass over a record sequence.
func (p *Projector) Reset() {
	p.pendingTools = make(map[string]string)
}

// Render returns the display text for one record. ok is false when the
// record contributes nothing visible.
func (p *Projector) Render(record domain.OutputRecord) (text string, ok bool) {
	switch record.Kind {
	case domain.KindStdout:
		return string(record.Payload), true

	case domain.KindStderr:
		return "[stderr] " + string(record.Payload), true

	case domain.KindSystemNotice:
		return "[maestro] " + string(record.Payload), true

	case domain.KindStructuredEvent:
		ev, err := domain.ParseAgentEvent(record.Payload)
		if err != nil {
			// A record tagged structured that fails to parse still
			// renders, as raw text, rather than disappearing.
			return string(record.Payload), true
		}
		return p.renderEvent(ev)

	default:
		return string(record.Payload), true
	}
}

func (p *Projector) renderEvent(ev *domain.AgentEvent) (string, bool) {
	switch ev.Type {
	case domain.EventText:
		if ev.Text == "" {
			return "", false
		}
		return ev.Text, true

	case domain.EventUserPrompt:
		return "> " + ev.Text, true

	case domain.EventToolUse:
		if ev.CallID != "" {
			p.pendingTools[ev.CallID] = ev.Tool
		}
		if len(ev.Input) > 0 {
			return fmt.Sprintf("⏺ %s %s", ev.Tool, compactInput(ev.Input)), true
		}
		return "⏺ " + ev.Tool, true

	case domain.EventToolResult:
		name, matched := p.pendingTools[ev.CallID]
		if matched {
			delete(p.pendingTools, ev.CallID)
		} else {
			// Result with no visible call, e.g. the call happened
			// before a restart. Shown, flagged, never dropped.
			name = "unmatched tool result"
		}
		status := "done"
		if ev.IsErr {
			status = "failed"
		}
		if ev.Text != "" {
			return fmt.Sprintf("  ⎿ %s %s: %s", name, status, firstLine(ev.Text)), true
		}
		return fmt.Sprintf("  ⎿ %s %s", name, status), true

	case domain.EventTurnComplete:
		return "", false

	default:
		return "", false
	}
}

// PendingTools reports tool calls that have not yet seen a result.
func (p *Projector) PendingTools() int {
	return len(p.pendingTools)
}

// compactInput trims tool input JSON to a single short line.
func compactInput(input []byte) string {
	s := strings.Join(strings.Fields(string(input)), " ")
	const max = 120
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
