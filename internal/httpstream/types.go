// Package httpstream provides streaming body decoding, SSE parsing, traffic
// logging and recording for the chat relay.
package httpstream

import (
	"net/http"

	"github.com/burpheart/runchat/pkg/types"
)

// SSEEvent represents a Server-Sent Event.
type SSEEvent struct {
	ID    string
	Event string
	Data  string
	Retry int
	Raw   []byte // Original lines, including the field names
}

// LogLevel controls logging verbosity.
type LogLevel = types.LogLevel

const (
	LogLevelNone    = types.LogLevelNone
	LogLevelBasic   = types.LogLevelBasic
	LogLevelHeaders = types.LogLevelHeaders
	LogLevelBody    = types.LogLevelBody
	LogLevelDebug   = types.LogLevelDebug
)

// Logger interface for relay traffic and lifecycle logging.
type Logger interface {
	// LogRequest logs an outbound upstream request.
	LogRequest(req *http.Request)
	// LogResponse logs an upstream response.
	LogResponse(resp *http.Response)
	// LogSSE logs a tapped SSE event.
	LogSSE(host string, event *SSEEvent)
	// LogBody logs a buffered body.
	LogBody(host string, data []byte)
	// Info, Warn and Error log lifecycle lines.
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	// Debug logs debug information.
	Debug(format string, args ...interface{})
}

// NopLogger is a no-op logger.
type NopLogger struct{}

func (NopLogger) LogRequest(req *http.Request)             {}
func (NopLogger) LogResponse(resp *http.Response)          {}
func (NopLogger) LogSSE(host string, event *SSEEvent)      {}
func (NopLogger) LogBody(host string, _ []byte)            {}
func (NopLogger) Info(format string, args ...interface{})  {}
func (NopLogger) Warn(format string, args ...interface{})  {}
func (NopLogger) Error(format string, args ...interface{}) {}
func (NopLogger) Debug(format string, args ...interface{}) {}
