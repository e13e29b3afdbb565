package classify

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// PresentKind is how a render item is shown.
type PresentKind int

const (
	PresentNone PresentKind = iota
	PresentText
	PresentImage
	PresentDocument
	PresentFigure
	PresentDump
)

// Presentation is the observable rendering decision for one item.
type Presentation struct {
	Kind    PresentKind
	Text    string // PresentText
	URL     string // PresentImage, PresentDocument, PresentFigure
	Alt     string // PresentImage, PresentFigure
	Caption string // PresentFigure; empty means no caption
	Dump    string // PresentDump: indented JSON
}

// Present decides how item is rendered.
//
// Files other than images and PDFs have no presentation. Components of type
// image-result with a URL become captioned figures, artifacts whose content
// holds an image block with a URL become images, and everything else
// structured is dumped as indented JSON.
func Present(item RenderItem) Presentation {
	switch item.Kind {
	case ItemText:
		return Presentation{Kind: PresentText, Text: item.Text}
	case ItemFile:
		switch {
		case strings.HasPrefix(item.MediaType, "image/"):
			return Presentation{Kind: PresentImage, URL: item.URL, Alt: "image"}
		case item.MediaType == "application/pdf":
			return Presentation{Kind: PresentDocument, URL: item.URL}
		}
		return Presentation{Kind: PresentNone}
	case ItemComponent:
		var c struct {
			Type  string `json:"type"`
			Props struct {
				URL any `json:"url"`
				Alt any `json:"alt"`
			} `json:"props"`
		}
		_ = json.Unmarshal(item.Data, &c)
		if url := truthyText(c.Props.URL); c.Type == "image-result" && url != "" {
			alt := truthyText(c.Props.Alt)
			p := Presentation{Kind: PresentFigure, URL: url, Alt: alt, Caption: alt}
			if p.Alt == "" {
				p.Alt = "image-result"
			}
			return p
		}
		return Presentation{Kind: PresentDump, Dump: Dump(item.Data)}
	case ItemArtifact:
		var a struct {
			Content json.RawMessage `json:"content"`
		}
		_ = json.Unmarshal(item.Data, &a)
		if url := artifactImage(a.Content); url != "" {
			return Presentation{Kind: PresentImage, URL: url, Alt: "artifact-image"}
		}
		return Presentation{Kind: PresentDump, Dump: Dump(item.Data)}
	}
	return Presentation{Kind: PresentDump, Dump: Dump(item.Raw)}
}

// artifactImage returns the URL of the first image block, if content is an array.
func artifactImage(content json.RawMessage) string {
	var blocks []json.RawMessage
	if json.Unmarshal(content, &blocks) != nil {
		return ""
	}
	for _, b := range blocks {
		var block struct {
			Type string `json:"type"`
			URL  any    `json:"url"`
		}
		if json.Unmarshal(b, &block) != nil {
			continue
		}
		if url := truthyText(block.URL); block.Type == "image" && url != "" {
			return url
		}
	}
	return ""
}

// truthyText returns v as text when it is truthy in the run service's
// sense, or "" otherwise. Non-string values keep their JSON text.
func truthyText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if !x {
			return ""
		}
	case float64:
		if x == 0 {
			return ""
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// Dump formats a JSON value with two-space indentation. Absent data dumps as
// an empty string.
func Dump(raw json.RawMessage) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

var boldPattern = regexp.MustCompile(`\*\*(.+?)\*\*`)

// Span is a run of text with uniform emphasis.
type Span struct {
	Text string
	Bold bool
}

// Emphasis splits text on **bold** markers, the only markdown the
// transcript understands.
func Emphasis(text string) []Span {
	var spans []Span
	last := 0
	for _, m := range boldPattern.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			spans = append(spans, Span{Text: text[last:m[0]]})
		}
		spans = append(spans, Span{Text: text[m[2]:m[3]], Bold: true})
		last = m[1]
	}
	if last < len(text) {
		spans = append(spans, Span{Text: text[last:]})
	}
	return spans
}
