package classify

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestPresentFiles(t *testing.T) {
	tests := []struct {
		mediaType string
		want      PresentKind
	}{
		{"image/jpeg", PresentImage},
		{"application/pdf", PresentDocument},
		{"text/csv", PresentNone},
		{"", PresentNone},
	}
	for _, tt := range tests {
		got := Present(RenderItem{Kind: ItemFile, MediaType: tt.mediaType, URL: "u"})
		if got.Kind != tt.want {
			t.Errorf("%q: got %v, want %v", tt.mediaType, got.Kind, tt.want)
		}
	}
}

func TestPresentImageResultComponent(t *testing.T) {
	got := Present(RenderItem{Kind: ItemComponent, Data: json.RawMessage(`{"type":"image-result","props":{"url":"https://img","alt":"a cat"}}`)})
	want := Presentation{Kind: PresentFigure, URL: "https://img", Alt: "a cat", Caption: "a cat"}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	noAlt := Present(RenderItem{Kind: ItemComponent, Data: json.RawMessage(`{"type":"image-result","props":{"url":"https://img"}}`)})
	if noAlt.Alt != "image-result" || noAlt.Caption != "" {
		t.Errorf("unexpected default alt: %+v", noAlt)
	}
}

func TestPresentTruthyNonStringURL(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Presentation
	}{
		{
			name: "object url",
			data: `{"type":"image-result","props":{"url":{"href":"x"}}}`,
			want: Presentation{Kind: PresentFigure, URL: `{"href":"x"}`, Alt: "image-result"},
		},
		{
			name: "numeric alt",
			data: `{"type":"image-result","props":{"url":"https://img","alt":7}}`,
			want: Presentation{Kind: PresentFigure, URL: "https://img", Alt: "7", Caption: "7"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Present(RenderItem{Kind: ItemComponent, Data: json.RawMessage(tt.data)}); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}

	for _, data := range []string{
		`{"type":"image-result","props":{"url":0}}`,
		`{"type":"image-result","props":{"url":false}}`,
		`{"type":"image-result","props":{"url":""}}`,
	} {
		if got := Present(RenderItem{Kind: ItemComponent, Data: json.RawMessage(data)}); got.Kind != PresentDump {
			t.Errorf("%s: expected dump, got %+v", data, got)
		}
	}
}

func TestPresentComponentWithoutURLDumps(t *testing.T) {
	got := Present(RenderItem{Kind: ItemComponent, Data: json.RawMessage(`{"type":"image-result","props":{}}`)})
	if got.Kind != PresentDump {
		t.Fatalf("expected dump, got %+v", got)
	}
	want := "{\n  \"type\": \"image-result\",\n  \"props\": {}\n}"
	if got.Dump != want {
		t.Errorf("got %q, want %q", got.Dump, want)
	}
}

func TestPresentArtifact(t *testing.T) {
	img := Present(RenderItem{Kind: ItemArtifact, Data: json.RawMessage(`{"content":[{"type":"text","text":"x"},{"type":"image","url":"https://art"}]}`)})
	if img.Kind != PresentImage || img.URL != "https://art" {
		t.Errorf("expected artifact image, got %+v", img)
	}

	dump := Present(RenderItem{Kind: ItemArtifact, Data: json.RawMessage(`{"content":"not an array"}`)})
	if dump.Kind != PresentDump {
		t.Errorf("expected dump, got %+v", dump)
	}

	noURL := Present(RenderItem{Kind: ItemArtifact, Data: json.RawMessage(`{"content":[{"type":"image"}]}`)})
	if noURL.Kind != PresentDump {
		t.Errorf("expected dump for image block without url, got %+v", noURL)
	}
}

func TestPresentOther(t *testing.T) {
	got := Present(RenderItem{Kind: ItemOther, Raw: json.RawMessage(`{"type":"x"}`)})
	if got.Kind != PresentDump || got.Dump != "{\n  \"type\": \"x\"\n}" {
		t.Errorf("unexpected %+v", got)
	}
}

func TestEmphasis(t *testing.T) {
	got := Emphasis("a **b** c **d**")
	want := []Span{{Text: "a "}, {Text: "b", Bold: true}, {Text: " c "}, {Text: "d", Bold: true}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if got := Emphasis("no ** markers"); !reflect.DeepEqual(got, []Span{{Text: "no ** markers"}}) {
		t.Errorf("unexpected %+v", got)
	}
}
