package tui

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/burpheart/runchat/internal/oplog"
	"github.com/burpheart/runchat/pkg/types"
)

func TestRenderMessageFiles(t *testing.T) {
	msg := types.Message{Role: types.RoleUser, Parts: []types.Part{
		types.TextPart("look"),
		types.FilePart("image/png", "data:image/png;base64,AAAA"),
		types.FilePart("application/pdf", "https://example.com/doc.pdf"),
		types.FilePart("application/zip", "https://example.com/archive.zip"),
	}}
	out := renderMessage(msg, 0)

	for _, want := range []string{"You", "look", "[image] data:image/png;base64,… (4 bytes)", "[pdf] https://example.com/doc.pdf"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "archive.zip") {
		t.Errorf("zip file rendered:\n%s", out)
	}
}

func TestRenderMessageDumpsUnknownParts(t *testing.T) {
	var parts []types.Part
	if err := json.Unmarshal([]byte(`[{"type":"data-summary","data":{"n":1}},{"type":"data-operation","data":{"type":"completion"}}]`), &parts); err != nil {
		t.Fatal(err)
	}
	out := renderMessage(types.Message{Role: types.RoleAssistant, Parts: parts}, 0)

	if !strings.Contains(out, `"type": "data-summary"`) {
		t.Errorf("unknown part not dumped:\n%s", out)
	}
	if strings.Contains(out, "completion") {
		t.Errorf("operation leaked into transcript:\n%s", out)
	}
}

func TestRenderActivity(t *testing.T) {
	if got := renderActivity(nil, 0); !strings.Contains(got, "No activity yet.") {
		t.Errorf("empty = %q", got)
	}

	minimal := []types.OperationEvent{{Type: "agent_initializing"}, {Type: "completion"}}
	if got := renderActivity(minimal, 0); !strings.Contains(got, "Only minimal events received") {
		t.Errorf("hint missing:\n%s", got)
	}

	rich := []types.OperationEvent{
		{Type: "agent_initializing"},
		{Type: "transfer", Label: "Handing off", Ctx: &types.OperationContext{FromAgent: "router", Summary: "routing"}},
	}
	got := renderActivity(rich, 0)
	if strings.Contains(got, "Only minimal events received") {
		t.Errorf("hint shown for rich activity:\n%s", got)
	}
	for _, want := range []string{"Handing off", "routing", "transfer: router → ?"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q:\n%s", want, got)
		}
	}
}

func TestRenderCaptureShowsTail(t *testing.T) {
	c := &oplog.Capture{Enabled: true}
	for i := 0; i < oplog.VisibleCaptureLimit+5; i++ {
		c.Record(types.DataPart("data-tick", "", json.RawMessage(`{}`)))
	}
	out := renderCapture(c, 0)

	if !strings.HasPrefix(out, "Raw stream events (205)") {
		t.Errorf("title = %q", strings.SplitN(out, "\n", 2)[0])
	}
	if lines := strings.Count(out, "\n"); lines != oplog.VisibleCaptureLimit {
		t.Errorf("rendered %d parts, want %d", lines, oplog.VisibleCaptureLimit)
	}
}

func TestShortURL(t *testing.T) {
	long := "https://example.com/" + strings.Repeat("a", 100)
	if got := shortURL(long); len([]rune(got)) != maxURLWidth {
		t.Errorf("len = %d", len([]rune(got)))
	}
	if got := shortURL("https://x/y.png"); got != "https://x/y.png" {
		t.Errorf("short url changed: %q", got)
	}
}
