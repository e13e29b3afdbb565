// Package oplog accumulates the out-of-band operation events of a chat
// session and, optionally, a raw capture of every streamed data part.
package oplog

import (
	"encoding/json"
	"time"

	"github.com/burpheart/runchat/pkg/types"
)

// VisibleCaptureLimit is how many captured parts a viewer shows.
const VisibleCaptureLimit = 200

// Log is an append-only list of operation events in arrival order.
// Events are never merged, even when ids repeat.
type Log struct {
	entries []types.OperationEvent
}

// Append records part if it is a data-operation part and reports whether it did.
func (l *Log) Append(part types.Part) bool {
	if part.Type != types.PartDataOperation {
		return false
	}
	l.entries = append(l.entries, FromPart(part))
	return true
}

// Entries returns the events in arrival order.
func (l *Log) Entries() []types.OperationEvent {
	return l.entries
}

// Len returns the number of events.
func (l *Log) Len() int {
	return len(l.entries)
}

// FromPart extracts the operation event carried by a data-operation part.
// The event id is the part's id; type, label and ctx come from its data.
// Fields of an unexpected JSON type are left empty.
func FromPart(part types.Part) types.OperationEvent {
	ev := types.OperationEvent{ID: part.ID}

	var data struct {
		Type  json.RawMessage `json:"type"`
		Label json.RawMessage `json:"label"`
		Ctx   json.RawMessage `json:"ctx"`
	}
	if json.Unmarshal(part.Data, &data) != nil {
		return ev
	}
	ev.Type = looseString(data.Type)
	ev.Label = looseString(data.Label)
	ev.Ctx = looseContext(data.Ctx)
	return ev
}

// looseContext decodes ctx field by field so one badly typed field does not
// cost the others. Anything but a JSON object yields nil.
func looseContext(b json.RawMessage) *types.OperationContext {
	var fields map[string]json.RawMessage
	if len(b) == 0 || json.Unmarshal(b, &fields) != nil || fields == nil {
		return nil
	}

	ctx := &types.OperationContext{
		Summary:   looseString(fields["summary"]),
		SessionID: looseString(fields["sessionId"]),
		Agent:     looseValue(fields["agent"]),
		FromAgent: looseString(fields["fromAgent"]),
		ToAgent:   looseString(fields["toAgent"]),
		Tool:      looseValue(fields["tool"]),
		ToolName:  looseValue(fields["toolName"]),
		Args:      looseValue(fields["args"]),
		Input:     looseValue(fields["input"]),
		Result:    looseValue(fields["result"]),
		Output:    looseValue(fields["output"]),
	}
	if raw, ok := fields["components"]; ok {
		var components []any
		if json.Unmarshal(raw, &components) == nil {
			ctx.Components = components
		}
	}
	return ctx
}

// MinimalOnly reports whether every event is an initialization or
// completion marker, meaning the agent graph emits no status updates.
func MinimalOnly(events []types.OperationEvent) bool {
	if len(events) == 0 {
		return false
	}
	for _, ev := range events {
		if ev.Type != "agent_initializing" && ev.Type != "completion" {
			return false
		}
	}
	return true
}

// Captured is one streamed part mirrored into the raw capture.
type Captured struct {
	At   time.Time  `json:"t"`
	Part types.Part `json:"part"`
}

// Capture mirrors streamed parts while enabled. It keeps every part; only
// Visible is bounded.
type Capture struct {
	Enabled bool
	parts   []Captured
	now     func() time.Time
}

// Record mirrors part if capturing is enabled.
func (c *Capture) Record(part types.Part) {
	if !c.Enabled {
		return
	}
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	c.parts = append(c.parts, Captured{At: now(), Part: part})
}

// Len returns the number of captured parts.
func (c *Capture) Len() int {
	return len(c.parts)
}

// Visible returns the most recent VisibleCaptureLimit parts, oldest first.
func (c *Capture) Visible() []Captured {
	if len(c.parts) <= VisibleCaptureLimit {
		return c.parts
	}
	return c.parts[len(c.parts)-VisibleCaptureLimit:]
}

func looseValue(b json.RawMessage) any {
	var v any
	if len(b) == 0 || json.Unmarshal(b, &v) != nil {
		return nil
	}
	return v
}

func looseString(b json.RawMessage) string {
	var s string
	if len(b) == 0 || json.Unmarshal(b, &s) != nil {
		return ""
	}
	return s
}
