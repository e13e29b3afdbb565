// Package attach turns local files into self-contained data URL parts.
package attach

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/burpheart/runchat/pkg/types"
)

// DataURL encodes data as "data:<mediaType>;base64,<payload>".
func DataURL(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Encode builds a file part for data. An empty mediaType is detected from
// the file name, then from the content.
func Encode(name string, data []byte, mediaType string) types.Part {
	if mediaType == "" {
		mediaType = DetectType(name, data)
	}
	return types.FilePart(mediaType, DataURL(mediaType, data))
}

// DetectType guesses a media type without parameters.
func DetectType(name string, data []byte) string {
	mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if mediaType == "" {
		mediaType = http.DetectContentType(data)
	}
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
		return mt
	}
	return mediaType
}

// EncodeFiles reads paths in order and returns one file part per path.
func EncodeFiles(paths []string) ([]types.Part, error) {
	parts := make([]types.Part, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read attachment %s: %w", path, err)
		}
		parts = append(parts, Encode(filepath.Base(path), data, ""))
	}
	return parts, nil
}

// Accepted reports whether the chat page offers mediaType for upload.
func Accepted(mediaType string) bool {
	return strings.HasPrefix(mediaType, "image/") || mediaType == "application/pdf"
}
