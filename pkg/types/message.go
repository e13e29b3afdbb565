package types

import (
	"bytes"
	"encoding/json"
)

// Role of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Part type discriminants recognized by the client.
const (
	PartText          = "text"
	PartFile          = "file"
	PartReasoning     = "reasoning"
	PartDataOperation = "data-operation"
	PartDataComponent = "data-component"
	PartDataArtifact  = "data-artifact"
)

// PartKind classifies a Part by its discriminant.
type PartKind int

const (
	KindInvalid PartKind = iota // not a JSON object
	KindText
	KindFile
	KindOperation
	KindComponent
	KindArtifact
	KindUnknown
)

// Part is one discriminated fragment of a message.
//
// Parts decoded from the wire keep their original encoding in Raw, and Raw is
// what gets written back out, so unrecognized parts round-trip untouched.
// Parts built in Go leave Raw empty and encode from their fields.
type Part struct {
	Type      string
	ID        string
	Text      string
	MediaType string
	URL       string
	Data      json.RawMessage
	Raw       json.RawMessage
}

// TextPart returns a text part.
func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// FilePart returns a file part referencing url.
func FilePart(mediaType, url string) Part {
	return Part{Type: PartFile, MediaType: mediaType, URL: url}
}

// DataPart returns a data-* part carrying data.
func DataPart(typ, id string, data json.RawMessage) Part {
	return Part{Type: typ, ID: id, Data: data}
}

// Kind reports which variant the part is.
func (p Part) Kind() PartKind {
	if len(p.Raw) > 0 && !isObject(p.Raw) {
		return KindInvalid
	}
	switch p.Type {
	case PartText:
		return KindText
	case PartFile:
		return KindFile
	case PartDataOperation:
		return KindOperation
	case PartDataComponent:
		return KindComponent
	case PartDataArtifact:
		return KindArtifact
	}
	return KindUnknown
}

// wirePart is the loose decoding target; fields of the wrong JSON type are
// treated as absent instead of failing the whole message.
type wirePart struct {
	Type      json.RawMessage `json:"type"`
	ID        json.RawMessage `json:"id"`
	Text      json.RawMessage `json:"text"`
	MediaType json.RawMessage `json:"mediaType"`
	URL       json.RawMessage `json:"url"`
	Data      json.RawMessage `json:"data"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Part) UnmarshalJSON(b []byte) error {
	*p = Part{Raw: append(json.RawMessage(nil), b...)}
	if !isObject(b) {
		return nil
	}
	var w wirePart
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	p.Type = looseString(w.Type)
	p.ID = looseString(w.ID)
	p.Text = looseString(w.Text)
	p.MediaType = looseString(w.MediaType)
	p.URL = looseString(w.URL)
	if len(w.Data) > 0 && !bytes.Equal(w.Data, []byte("null")) {
		p.Data = w.Data
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p Part) MarshalJSON() ([]byte, error) {
	if len(p.Raw) > 0 {
		return p.Raw, nil
	}
	switch p.Type {
	case PartText, PartReasoning:
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{p.Type, p.Text})
	case PartFile:
		return json.Marshal(struct {
			Type      string `json:"type"`
			MediaType string `json:"mediaType,omitempty"`
			URL       string `json:"url"`
		}{p.Type, p.MediaType, p.URL})
	}
	return json.Marshal(struct {
		Type string          `json:"type"`
		ID   string          `json:"id,omitempty"`
		Data json.RawMessage `json:"data,omitempty"`
	}{p.Type, p.ID, p.Data})
}

// Message is a role-tagged conversation message as the client sends it.
type Message struct {
	ID    string `json:"id,omitempty"`
	Role  Role   `json:"role"`
	Parts []Part `json:"parts,omitempty"`
	// Content is the legacy plain-string body; any other JSON type is ignored.
	Content json.RawMessage `json:"content,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler. A non-array parts field is
// treated as no parts.
func (m *Message) UnmarshalJSON(b []byte) error {
	var w struct {
		ID      json.RawMessage `json:"id"`
		Role    Role            `json:"role"`
		Parts   json.RawMessage `json:"parts"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*m = Message{ID: looseString(w.ID), Role: w.Role, Content: w.Content}
	if bytes.HasPrefix(bytes.TrimSpace(w.Parts), []byte("[")) {
		if err := json.Unmarshal(w.Parts, &m.Parts); err != nil {
			return err
		}
	}
	return nil
}

// LegacyContent returns the plain-string content, if the message has one.
func (m Message) LegacyContent() (string, bool) {
	if len(m.Content) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(m.Content, &s); err != nil {
		return "", false
	}
	return s, true
}

// UpstreamContent is either a bare string or {"parts": [...]}.
type UpstreamContent struct {
	Text  string
	Parts []Part
}

// MarshalJSON implements json.Marshaler.
func (c UpstreamContent) MarshalJSON() ([]byte, error) {
	if c.Parts != nil {
		return json.Marshal(struct {
			Parts []Part `json:"parts"`
		}{c.Parts})
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *UpstreamContent) UnmarshalJSON(b []byte) error {
	*c = UpstreamContent{}
	if isObject(b) {
		var w struct {
			Parts []Part `json:"parts"`
		}
		if err := json.Unmarshal(b, &w); err != nil {
			return err
		}
		c.Parts = w.Parts
		if c.Parts == nil {
			c.Parts = []Part{}
		}
		return nil
	}
	return json.Unmarshal(b, &c.Text)
}

// UpstreamMessage is the message shape the run service accepts.
type UpstreamMessage struct {
	Role    Role            `json:"role"`
	Content UpstreamContent `json:"content"`
}

// ChatRequest is the body the client posts to the proxy.
type ChatRequest struct {
	ID             string          `json:"id,omitempty"`
	ConversationID string          `json:"conversationId,omitempty"`
	Messages       []Message       `json:"messages"`
	RequestContext json.RawMessage `json:"requestContext,omitempty"`
}

// UpstreamRequest is the body the proxy posts to the run service.
type UpstreamRequest struct {
	Messages       []UpstreamMessage `json:"messages"`
	GraphID        string            `json:"graphId"`
	TenantID       string            `json:"tenantId"`
	ProjectID      string            `json:"projectId"`
	ConversationID string            `json:"conversationId,omitempty"`
	RequestContext json.RawMessage   `json:"requestContext,omitempty"`
}

// OperationContext is the loosely typed detail block of an operation event.
type OperationContext struct {
	Summary    string `json:"summary,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
	Agent      any    `json:"agent,omitempty"`
	FromAgent  string `json:"fromAgent,omitempty"`
	ToAgent    string `json:"toAgent,omitempty"`
	Tool       any    `json:"tool,omitempty"`
	ToolName   any    `json:"toolName,omitempty"`
	Args       any    `json:"args,omitempty"`
	Input      any    `json:"input,omitempty"`
	Result     any    `json:"result,omitempty"`
	Output     any    `json:"output,omitempty"`
	Components []any  `json:"components,omitempty"`
}

// OperationEvent describes agent or tool activity streamed out of band.
type OperationEvent struct {
	ID    string            `json:"id,omitempty"`
	Type  string            `json:"type,omitempty"`
	Label string            `json:"label,omitempty"`
	Ctx   *OperationContext `json:"ctx,omitempty"`
}

func isObject(b []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(b), []byte("{"))
}

func looseString(b json.RawMessage) string {
	var s string
	if len(b) == 0 || json.Unmarshal(b, &s) != nil {
		return ""
	}
	return s
}
