// Package normalize converts client chat messages into the run service's
// request shape.
package normalize

import (
	"strings"

	"github.com/burpheart/runchat/pkg/types"
)

// Normalizer builds upstream requests for one tenant/project/graph.
type Normalizer struct {
	identity types.Identity
}

// New creates a Normalizer bound to identity.
func New(identity types.Identity) *Normalizer {
	return &Normalizer{identity: identity}
}

// Request converts a proxy request body into the upstream request body.
// The conversation id prefers an explicit conversationId over the chat id.
func (n *Normalizer) Request(req types.ChatRequest) types.UpstreamRequest {
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = req.ID
	}
	return types.UpstreamRequest{
		Messages:       Messages(req.Messages),
		GraphID:        n.identity.GraphID,
		TenantID:       n.identity.TenantID,
		ProjectID:      n.identity.ProjectID,
		ConversationID: conversationID,
		RequestContext: req.RequestContext,
	}
}

// Messages converts messages in order, dropping those with nothing to say.
//
// A message with text and no files becomes a bare string, since the run
// service reads user text from a string before it looks at parts. A message
// with files becomes {parts: files ++ [text]}. Otherwise a legacy string
// content is forwarded as is.
func Messages(messages []types.Message) []types.UpstreamMessage {
	out := make([]types.UpstreamMessage, 0, len(messages))
	for _, m := range messages {
		var texts []string
		var files []types.Part
		for _, p := range m.Parts {
			if p.Kind() == types.KindInvalid {
				continue
			}
			switch p.Type {
			case types.PartText:
				if p.Text != "" {
					texts = append(texts, p.Text)
				}
			case types.PartFile:
				files = append(files, p)
			}
		}
		text := strings.TrimSpace(strings.Join(texts, "\n\n"))

		switch {
		case len(files) == 0 && text != "":
			out = append(out, types.UpstreamMessage{
				Role:    m.Role,
				Content: types.UpstreamContent{Text: text},
			})
		case len(files) > 0 || text != "":
			parts := append([]types.Part(nil), files...)
			if text != "" {
				parts = append(parts, types.TextPart(text))
			}
			out = append(out, types.UpstreamMessage{
				Role:    m.Role,
				Content: types.UpstreamContent{Parts: parts},
			})
		default:
			if legacy, ok := m.LegacyContent(); ok {
				out = append(out, types.UpstreamMessage{
					Role:    m.Role,
					Content: types.UpstreamContent{Text: legacy},
				})
			}
		}
	}
	return out
}
