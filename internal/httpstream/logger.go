package httpstream

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// DefaultLogger implements Logger with configurable verbosity.
type DefaultLogger struct {
	mu       sync.Mutex
	output   io.Writer
	level    LogLevel
	colorize bool
}

// LoggerOption configures a DefaultLogger.
type LoggerOption func(*DefaultLogger)

// WithOutput sets the output writer.
func WithOutput(w io.Writer) LoggerOption {
	return func(l *DefaultLogger) { l.output = w }
}

// WithLevel sets the log level.
func WithLevel(level LogLevel) LoggerOption {
	return func(l *DefaultLogger) { l.level = level }
}

// WithColor enables/disables colorized output.
func WithColor(colorize bool) LoggerOption {
	return func(l *DefaultLogger) { l.colorize = colorize }
}

// NewDefaultLogger creates a new DefaultLogger.
func NewDefaultLogger(opts ...LoggerOption) *DefaultLogger {
	l := &DefaultLogger{
		output:   os.Stdout,
		level:    LogLevelBasic,
		colorize: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorPurple = "\033[35m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

func (l *DefaultLogger) color(c, s string) string {
	if l.colorize {
		return c + s + colorReset
	}
	return s
}

func (l *DefaultLogger) timestamp() string {
	return time.Now().Format("15:04:05.000")
}

// LogRequest logs an outbound upstream request. Authorization is never printed.
func (l *DefaultLogger) LogRequest(req *http.Request) {
	if l.level < LogLevelBasic || req == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.output, "%s %s %s %s\n",
		l.color(colorGray, l.timestamp()),
		l.color(colorGreen, "→"),
		l.color(colorCyan, req.Method),
		req.URL.String(),
	)

	if l.level >= LogLevelHeaders {
		l.writeHeaders(req.Header)
	}
}

// LogResponse logs an upstream response.
func (l *DefaultLogger) LogResponse(resp *http.Response) {
	if l.level < LogLevelBasic || resp == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	statusColor := colorGreen
	if resp.StatusCode >= 400 {
		statusColor = colorRed
	} else if resp.StatusCode >= 300 {
		statusColor = colorYellow
	}

	contentType := resp.Header.Get("Content-Type")
	if idx := strings.Index(contentType, ";"); idx > 0 {
		contentType = contentType[:idx]
	}

	target := ""
	if resp.Request != nil {
		target = resp.Request.URL.String()
	}

	fmt.Fprintf(l.output, "%s %s %s %s [%s]\n",
		l.color(colorGray, l.timestamp()),
		l.color(colorPurple, "←"),
		l.color(statusColor, fmt.Sprintf("%d", resp.StatusCode)),
		target,
		contentType,
	)

	if l.level >= LogLevelHeaders {
		l.writeHeaders(resp.Header)
	}
}

func (l *DefaultLogger) writeHeaders(h http.Header) {
	for name, values := range h {
		value := strings.Join(values, ", ")
		if strings.EqualFold(name, "Authorization") {
			value = "<redacted>"
		}
		fmt.Fprintf(l.output, "  %s: %s\n", l.color(colorYellow, name), value)
	}
}

// LogSSE logs a tapped SSE event.
func (l *DefaultLogger) LogSSE(host string, event *SSEEvent) {
	if l.level < LogLevelDebug {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	eventType := event.Event
	if eventType == "" {
		eventType = "message"
	}

	data := event.Data
	if len(data) > 200 {
		data = data[:200] + "..."
	}
	data = strings.ReplaceAll(data, "\n", "\\n")

	fmt.Fprintf(l.output, "%s %s %s [%s] %s\n",
		l.color(colorGray, l.timestamp()),
		l.color(colorBlue, "SSE"),
		host,
		l.color(colorCyan, eventType),
		data,
	)
}

// LogBody logs a buffered (non-stream) response body.
func (l *DefaultLogger) LogBody(host string, data []byte) {
	if l.level < LogLevelBody {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	preview := data
	if len(preview) > 100 {
		preview = preview[:100]
	}

	if isPrintableText(preview) {
		fmt.Fprintf(l.output, "%s %s BODY %s (%d bytes): %s\n",
			l.color(colorGray, l.timestamp()),
			l.color(colorPurple, "←"),
			host,
			len(data),
			strings.ReplaceAll(string(preview), "\n", "\\n"),
		)
	} else {
		fmt.Fprintf(l.output, "%s %s BODY %s (%d bytes): <binary>\n",
			l.color(colorGray, l.timestamp()),
			l.color(colorPurple, "←"),
			host,
			len(data),
		)
	}
}

// Info logs a lifecycle line.
func (l *DefaultLogger) Info(format string, args ...interface{}) {
	l.line(LogLevelBasic, colorGreen, "[INFO]", format, args...)
}

// Warn logs a recoverable problem.
func (l *DefaultLogger) Warn(format string, args ...interface{}) {
	l.line(LogLevelBasic, colorYellow, "[WARN]", format, args...)
}

// Error logs a failure. Errors are printed at every level except none.
func (l *DefaultLogger) Error(format string, args ...interface{}) {
	l.line(LogLevelBasic, colorRed, "[ERROR]", format, args...)
}

// Debug logs debug information.
func (l *DefaultLogger) Debug(format string, args ...interface{}) {
	l.line(LogLevelDebug, colorGray, "[DEBUG]", format, args...)
}

func (l *DefaultLogger) line(min LogLevel, c, tag, format string, args ...interface{}) {
	if l.level < min {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.output, "%s %s %s\n",
		l.color(colorGray, l.timestamp()),
		l.color(c, tag),
		fmt.Sprintf(format, args...),
	)
}

// isPrintableText checks if data is printable text.
func isPrintableText(data []byte) bool {
	for _, b := range data {
		if b < 32 && b != '\n' && b != '\r' && b != '\t' {
			return false
		}
		if b == 127 {
			return false
		}
	}
	return true
}
