package oplog

import (
	"encoding/json"
	"fmt"

	"github.com/burpheart/runchat/pkg/types"
)

// Description is the display form of one operation event.
type Description struct {
	Heading    string
	Label      string
	Summary    string
	Fields     []Field  // session, agent, transfer, tool
	Blocks     []string // args/input then result/output, indented JSON
	Components string   // indented JSON, empty when there are none
}

// Field is a "name: value" detail line.
type Field struct {
	Name  string
	Value string
}

// Describe lays out an event for the activity panel.
func Describe(ev types.OperationEvent) Description {
	d := Description{Heading: ev.Type, Label: ev.Label}
	if d.Heading == "" {
		d.Heading = types.PartDataOperation
	}
	c := ev.Ctx
	if c == nil {
		return d
	}

	d.Summary = c.Summary
	if c.SessionID != "" {
		d.Fields = append(d.Fields, Field{"session", c.SessionID})
	}
	if truthy(c.Agent) {
		d.Fields = append(d.Fields, Field{"agent", display(c.Agent)})
	}
	if c.FromAgent != "" || c.ToAgent != "" {
		d.Fields = append(d.Fields, Field{"transfer", fmt.Sprintf("%s → %s", orUnknown(c.FromAgent), orUnknown(c.ToAgent))})
	}
	if truthy(c.Tool) || truthy(c.ToolName) {
		tool := c.Tool
		if !truthy(tool) {
			tool = c.ToolName
		}
		d.Fields = append(d.Fields, Field{"tool", display(tool)})
	}
	if truthy(c.Args) || truthy(c.Input) {
		d.Blocks = append(d.Blocks, indent(coalesce(c.Args, c.Input)))
	}
	if truthy(c.Result) || truthy(c.Output) {
		d.Blocks = append(d.Blocks, indent(coalesce(c.Result, c.Output)))
	}
	if len(c.Components) > 0 {
		d.Components = indent(c.Components)
	}
	return d
}

// truthy mirrors the loose truthiness the run service's payloads assume:
// absent, false, zero and empty string are falsy; objects and arrays are not.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	}
	return true
}

func coalesce(a, b any) any {
	if a != nil {
		return a
	}
	return b
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

func display(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func indent(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
