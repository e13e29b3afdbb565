package httpstream

import (
	"compress/flate"
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// Decode wraps body with decoders for its Content-Encoding so a tap can read
// the payload while the relay forwards the encoded bytes untouched.
// Encodings are undone in reverse order of application. An unknown encoding
// leaves the reader as is.
func Decode(body io.Reader, headers http.Header) io.Reader {
	if body == nil {
		return nil
	}

	reader := body
	encodings := parseContentEncoding(headers.Get("Content-Encoding"))
	for i := len(encodings) - 1; i >= 0; i-- {
		switch strings.ToLower(encodings[i]) {
		case "gzip", "x-gzip":
			gr, err := gzip.NewReader(reader)
			if err != nil {
				return errReader{err}
			}
			reader = gr
		case "deflate":
			reader = flate.NewReader(reader)
		case "br":
			reader = brotli.NewReader(reader)
		}
	}
	return reader
}

// parseContentEncoding parses Content-Encoding header value.
func parseContentEncoding(value string) []string {
	if value == "" {
		return nil
	}
	// "gzip, br" → ["gzip", "br"]
	var result []string
	for _, p := range strings.Split(value, ",") {
		p = strings.TrimSpace(p)
		if p != "" && p != "identity" {
			result = append(result, p)
		}
	}
	return result
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// IsEventStream reports whether a Content-Type names an SSE stream.
func IsEventStream(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/event-stream")
}
