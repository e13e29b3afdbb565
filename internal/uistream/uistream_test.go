package uistream

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/burpheart/runchat/pkg/types"
)

const sampleStream = `data: {"type":"start","messageId":"msg-1"}

data: {"type":"data-operation","id":"op-1","data":{"type":"agent_initializing","ctx":{"sessionId":"s1"}}}

data: {"type":"text-start","id":"t1"}

data: {"type":"text-delta","id":"t1","delta":"Hello "}

data: {"type":"text-delta","id":"t1","delta":"world"}

data: {"type":"text-end","id":"t1"}

data: {"type":"data-component","id":"c1","data":{"type":"image-result","props":{"url":"u"}}}

data: {"type":"data-operation","data":{"type":"status","label":"ping"},"transient":true}

data: {"type":"source-url","sourceId":"src","url":"https://example.com"}

data: {"type":"finish"}

data: [DONE]

data: {"type":"text-delta","id":"late","delta":"ignored"}

`

func readAll(t *testing.T, s string) []Chunk {
	t.Helper()
	d := NewDecoder(strings.NewReader(s))
	var chunks []Chunk
	for {
		c, err := d.Next()
		if err == io.EOF {
			return chunks
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		chunks = append(chunks, c)
	}
}

func TestDecoderStopsAtDone(t *testing.T) {
	chunks := readAll(t, sampleStream)
	if len(chunks) != 10 {
		t.Fatalf("expected 10 chunks, got %d", len(chunks))
	}
	if chunks[0].MessageID != "msg-1" {
		t.Errorf("unexpected start chunk %+v", chunks[0])
	}
	if string(chunks[8].Raw) != `{"type":"source-url","sourceId":"src","url":"https://example.com"}` {
		t.Errorf("raw not preserved: %s", chunks[8].Raw)
	}
}

func TestDecoderMalformed(t *testing.T) {
	d := NewDecoder(strings.NewReader("data: {nope\n\n"))
	if _, err := d.Next(); !errors.Is(err, ErrMalformedChunk) {
		t.Fatalf("expected ErrMalformedChunk, got %v", err)
	}
}

func TestAssemblerBuildsMessage(t *testing.T) {
	var data []types.Part
	a := NewAssembler(func(p types.Part) { data = append(data, p) })
	for _, c := range readAll(t, sampleStream) {
		a.Apply(c)
	}

	msg := a.Message()
	if msg.ID != "msg-1" || msg.Role != types.RoleAssistant {
		t.Errorf("unexpected message header %+v", msg)
	}

	wantTypes := []string{"data-operation", "text", "data-component", "source-url"}
	if len(msg.Parts) != len(wantTypes) {
		t.Fatalf("expected %d parts, got %d: %+v", len(wantTypes), len(msg.Parts), msg.Parts)
	}
	for i, w := range wantTypes {
		if msg.Parts[i].Type != w {
			t.Errorf("part %d: got %q, want %q", i, msg.Parts[i].Type, w)
		}
	}
	if msg.Parts[1].Text != "Hello world" {
		t.Errorf("unexpected text %q", msg.Parts[1].Text)
	}
	if msg.Parts[3].Kind() != types.KindUnknown {
		t.Errorf("expected unknown kind for source-url")
	}

	// transient parts reach the handler but not the message
	if len(data) != 3 {
		t.Fatalf("expected 3 data parts delivered, got %d", len(data))
	}
	if data[2].Type != types.PartDataOperation || data[0].ID != "op-1" {
		t.Errorf("unexpected data order %+v", data)
	}
}

func TestAssemblerReplacesDataPartWithSameID(t *testing.T) {
	a := NewAssembler(nil)
	for _, raw := range []string{
		`{"type":"data-artifact","id":"a1","data":{"v":1}}`,
		`{"type":"text-delta","id":"t","delta":"x"}`,
		`{"type":"data-artifact","id":"a1","data":{"v":2}}`,
	} {
		c, err := ParseChunk([]byte(raw))
		if err != nil {
			t.Fatal(err)
		}
		a.Apply(c)
	}
	msg := a.Message()
	if len(msg.Parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(msg.Parts))
	}
	if string(msg.Parts[0].Data) != `{"v":2}` {
		t.Errorf("expected replaced artifact, got %s", msg.Parts[0].Data)
	}
}

func TestAssemblerToolChunksShareOnePart(t *testing.T) {
	a := NewAssembler(nil)
	for _, raw := range []string{
		`{"type":"tool-input-start","toolCallId":"call-1","toolName":"weather"}`,
		`{"type":"tool-input-available","toolCallId":"call-1","toolName":"weather","input":{"city":"Oslo"}}`,
		`{"type":"tool-output-available","toolCallId":"call-1","output":{"temp":3}}`,
	} {
		c, _ := ParseChunk([]byte(raw))
		a.Apply(c)
	}
	msg := a.Message()
	if len(msg.Parts) != 1 {
		t.Fatalf("expected 1 tool part, got %d", len(msg.Parts))
	}
	if !strings.Contains(string(msg.Parts[0].Raw), "tool-output-available") {
		t.Errorf("expected latest tool chunk, got %s", msg.Parts[0].Raw)
	}
}

func TestAssemblerErrorChunk(t *testing.T) {
	a := NewAssembler(nil)
	c, _ := ParseChunk([]byte(`{"type":"error","errorText":"agent crashed"}`))
	a.Apply(c)
	if a.Err() != "agent crashed" {
		t.Errorf("unexpected error text %q", a.Err())
	}
}
