package uistream

import (
	"strings"

	"github.com/burpheart/runchat/pkg/types"
)

// DataHandler receives every data-* part in arrival order, including
// transient ones that never become part of the message.
type DataHandler func(part types.Part)

// Assembler folds the chunks of one assistant turn into a Message.
type Assembler struct {
	msg       types.Message
	text      map[string]int // text id → part index
	reasoning map[string]int
	tools     map[string]int // tool call id → part index
	onData    DataHandler

	errText string
}

// NewAssembler starts an empty assistant message.
func NewAssembler(onData DataHandler) *Assembler {
	return &Assembler{
		msg:       types.Message{Role: types.RoleAssistant},
		text:      make(map[string]int),
		reasoning: make(map[string]int),
		tools:     make(map[string]int),
		onData:    onData,
	}
}

// Apply folds one chunk into the message.
func (a *Assembler) Apply(c Chunk) {
	switch c.Type {
	case ChunkStart:
		if c.MessageID != "" {
			a.msg.ID = c.MessageID
		}
	case ChunkStartStep, ChunkFinishStep, ChunkMetadata, ChunkTextEnd, ChunkReasonEnd,
		ChunkFinish, ChunkAbort:
	case ChunkError:
		a.errText = c.ErrorText
	case ChunkTextStart:
		a.streamText(a.text, types.PartText, c.ID, "")
	case ChunkTextDelta:
		a.streamText(a.text, types.PartText, c.ID, c.Delta)
	case ChunkReasonStart:
		a.streamText(a.reasoning, types.PartReasoning, c.ID, "")
	case ChunkReasonDelta:
		a.streamText(a.reasoning, types.PartReasoning, c.ID, c.Delta)
	case ChunkFile:
		a.msg.Parts = append(a.msg.Parts, types.FilePart(c.MediaType, c.URL))
	default:
		switch {
		case c.IsData():
			a.applyData(c)
		case c.ToolCallID != "" && strings.HasPrefix(c.Type, toolChunkPrefix):
			a.replaceKeyed(a.tools, c.ToolCallID, types.Part{Type: "tool", ID: c.ToolCallID, Raw: c.Raw})
		default:
			a.msg.Parts = append(a.msg.Parts, types.Part{Type: c.Type, ID: c.ID, Raw: c.Raw})
		}
	}
}

func (a *Assembler) streamText(index map[string]int, typ, id, delta string) {
	i, ok := index[id]
	if !ok {
		a.msg.Parts = append(a.msg.Parts, types.Part{Type: typ})
		i = len(a.msg.Parts) - 1
		index[id] = i
	}
	a.msg.Parts[i].Text += delta
}

func (a *Assembler) applyData(c Chunk) {
	part := types.DataPart(c.Type, c.ID, c.Data)
	if a.onData != nil {
		a.onData(part)
	}
	if c.Transient {
		return
	}
	if c.ID != "" {
		for i := range a.msg.Parts {
			if a.msg.Parts[i].Type == c.Type && a.msg.Parts[i].ID == c.ID {
				a.msg.Parts[i] = part
				return
			}
		}
	}
	a.msg.Parts = append(a.msg.Parts, part)
}

func (a *Assembler) replaceKeyed(index map[string]int, key string, part types.Part) {
	if i, ok := index[key]; ok {
		a.msg.Parts[i] = part
		return
	}
	a.msg.Parts = append(a.msg.Parts, part)
	index[key] = len(a.msg.Parts) - 1
}

// Message returns a snapshot of the message so far.
func (a *Assembler) Message() types.Message {
	msg := a.msg
	msg.Parts = append([]types.Part(nil), a.msg.Parts...)
	return msg
}

// Err returns the error text streamed by the run service, if any.
func (a *Assembler) Err() string {
	return a.errText
}
