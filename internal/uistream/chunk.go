// Package uistream decodes the run service's UI message stream: an SSE
// stream of JSON chunks terminated by "[DONE]".
package uistream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/burpheart/runchat/internal/httpstream"
)

// Chunk type discriminants.
const (
	ChunkStart       = "start"
	ChunkStartStep   = "start-step"
	ChunkFinishStep  = "finish-step"
	ChunkFinish      = "finish"
	ChunkAbort       = "abort"
	ChunkError       = "error"
	ChunkMetadata    = "message-metadata"
	ChunkTextStart   = "text-start"
	ChunkTextDelta   = "text-delta"
	ChunkTextEnd     = "text-end"
	ChunkReasonStart = "reasoning-start"
	ChunkReasonDelta = "reasoning-delta"
	ChunkReasonEnd   = "reasoning-end"
	ChunkFile        = "file"
	doneSentinel     = "[DONE]"
	dataChunkPrefix  = "data-"
	toolChunkPrefix  = "tool-"
)

// Chunk is one decoded stream element.
type Chunk struct {
	Type       string          `json:"type"`
	ID         string          `json:"id,omitempty"`
	MessageID  string          `json:"messageId,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	Delta      string          `json:"delta,omitempty"`
	URL        string          `json:"url,omitempty"`
	MediaType  string          `json:"mediaType,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Transient  bool            `json:"transient,omitempty"`
	ErrorText  string          `json:"errorText,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// IsData reports whether the chunk is a data-* part.
func (c Chunk) IsData() bool {
	return strings.HasPrefix(c.Type, dataChunkPrefix)
}

// ErrMalformedChunk is returned for an event whose data is not a JSON chunk.
var ErrMalformedChunk = errors.New("malformed stream chunk")

// Decoder reads chunks from an SSE body.
type Decoder struct {
	sse  *httpstream.SSEParser
	done bool
}

// NewDecoder creates a decoder over an event-stream body.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{sse: httpstream.NewSSEParser(r)}
}

// Next returns the next chunk in arrival order. It returns io.EOF after
// "[DONE]" or when the stream ends.
func (d *Decoder) Next() (Chunk, error) {
	for {
		if d.done {
			return Chunk{}, io.EOF
		}
		event, err := d.sse.Next()
		if err != nil {
			return Chunk{}, err
		}
		data := strings.TrimSpace(event.Data)
		if data == "" {
			continue
		}
		if data == doneSentinel {
			d.done = true
			continue
		}
		return ParseChunk([]byte(data))
	}
}

// ParseChunk decodes one chunk payload.
func ParseChunk(data []byte) (Chunk, error) {
	var c Chunk
	if err := json.Unmarshal(data, &c); err != nil {
		return Chunk{}, fmt.Errorf("%w: %v", ErrMalformedChunk, err)
	}
	if c.Type == "" {
		return Chunk{}, fmt.Errorf("%w: missing type", ErrMalformedChunk)
	}
	c.Raw = append(json.RawMessage(nil), data...)
	return c, nil
}
