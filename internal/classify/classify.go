// Package classify turns a message's parts into renderable items.
//
// Classification is a pure function of the part list; callers recompute it
// on every render instead of keeping incremental state.
package classify

import (
	"encoding/json"
	"strings"

	"github.com/burpheart/runchat/pkg/types"
)

// ItemKind identifies a RenderItem variant.
type ItemKind int

const (
	ItemText ItemKind = iota
	ItemFile
	ItemComponent
	ItemArtifact
	ItemOther
)

func (k ItemKind) String() string {
	switch k {
	case ItemText:
		return "text"
	case ItemFile:
		return "file"
	case ItemComponent:
		return "component"
	case ItemArtifact:
		return "artifact"
	}
	return "other"
}

// RenderItem is one renderable unit of a message.
type RenderItem struct {
	Kind      ItemKind
	Text      string          // ItemText
	MediaType string          // ItemFile
	URL       string          // ItemFile
	Data      json.RawMessage // ItemComponent, ItemArtifact
	Raw       json.RawMessage // ItemOther: the whole part
}

// Classify buckets parts into render items in order.
//
// Operation parts are dropped, they belong to the activity log. Consecutive
// text parts are concatenated as is into a single item, and a text run that
// is blank after trimming is not emitted. Every other part closes the
// current text run and becomes its own item. Parts that are not JSON objects
// are skipped without closing the run.
func Classify(parts []types.Part) []RenderItem {
	var items []RenderItem
	var buf strings.Builder
	flush := func() {
		if strings.TrimSpace(buf.String()) != "" {
			items = append(items, RenderItem{Kind: ItemText, Text: buf.String()})
		}
		buf.Reset()
	}

	for _, p := range parts {
		switch p.Kind() {
		case types.KindInvalid, types.KindOperation:
			continue
		case types.KindText:
			buf.WriteString(p.Text)
			continue
		}

		flush()
		switch p.Kind() {
		case types.KindFile:
			items = append(items, RenderItem{Kind: ItemFile, MediaType: p.MediaType, URL: p.URL})
		case types.KindComponent:
			items = append(items, RenderItem{Kind: ItemComponent, Data: p.Data})
		case types.KindArtifact:
			items = append(items, RenderItem{Kind: ItemArtifact, Data: p.Data})
		default:
			raw, err := json.Marshal(p)
			if err != nil {
				raw = nil
			}
			items = append(items, RenderItem{Kind: ItemOther, Raw: raw})
		}
	}
	flush()

	return items
}

// PlainText joins the text parts of a message with newlines, skipping empty
// ones. It is what gets copied to the clipboard.
func PlainText(parts []types.Part) string {
	var texts []string
	for _, p := range parts {
		if p.Kind() == types.KindText && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}
