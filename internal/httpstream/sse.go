package httpstream

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
)

// maxSSELine bounds a single SSE line. Data parts carrying inline data URLs
// can be large, so this is generous.
const maxSSELine = 16 << 20

// SSEParser provides streaming SSE event parsing.
// Lenient about non-standard "field value" lines.
type SSEParser struct {
	reader *bufio.Reader
	lastID string
	events int
}

// NewSSEParser creates a new streaming SSE parser.
func NewSSEParser(r io.Reader) *SSEParser {
	return &SSEParser{reader: bufio.NewReaderSize(r, 64<<10)}
}

// Next reads and returns the next SSE event. It returns io.EOF once the
// stream ends without a pending event.
func (p *SSEParser) Next() (*SSEEvent, error) {
	var event SSEEvent
	var rawLines [][]byte
	hasData := false

	for {
		line, err := p.readLine()
		if err != nil {
			// EOF: return accumulated event if any
			if hasData && (err == io.EOF || err == io.ErrUnexpectedEOF) {
				return p.finish(&event, rawLines), nil
			}
			return nil, err
		}

		rawLines = append(rawLines, line)

		line = bytes.TrimSuffix(line, []byte("\n"))
		line = bytes.TrimSuffix(line, []byte("\r"))

		// Empty line = event separator
		if len(line) == 0 {
			if hasData {
				return p.finish(&event, rawLines), nil
			}
			rawLines = nil
			continue
		}

		// Comment line (keep-alives)
		if line[0] == ':' {
			continue
		}

		field, value := parseSSEField(line)

		switch field {
		case "data":
			event.Data += value + "\n"
			hasData = true
		case "event":
			event.Event = value
		case "id":
			// id must not contain NULL
			if !strings.ContainsRune(value, 0) {
				event.ID = value
				p.lastID = value
			}
		case "retry":
			if n, err := strconv.Atoi(value); err == nil && n >= 0 {
				event.Retry = n
			}
		}
	}
}

func (p *SSEParser) finish(event *SSEEvent, rawLines [][]byte) *SSEEvent {
	event.Data = strings.TrimSuffix(event.Data, "\n")
	event.Raw = bytes.Join(rawLines, nil)
	if event.ID == "" {
		event.ID = p.lastID
	}
	p.events++
	return event
}

// readLine returns one line including its terminator, or a final
// unterminated line with io.EOF reported on the following call.
func (p *SSEParser) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := p.reader.ReadSlice('\n')
		line = append(line, chunk...)
		switch {
		case err == nil:
			return line, nil
		case err == bufio.ErrBufferFull:
			if len(line) > maxSSELine {
				return nil, bufio.ErrTooLong
			}
			continue
		case err == io.EOF && len(line) > 0:
			return line, nil
		default:
			return nil, err
		}
	}
}

// parseSSEField parses an SSE field line.
// Standard: "field: value" or "field:value"
// Non-standard: "field value" (some implementations)
func parseSSEField(line []byte) (field, value string) {
	idx := bytes.IndexByte(line, ':')
	if idx == -1 {
		parts := bytes.SplitN(line, []byte(" "), 2)
		if len(parts) == 2 {
			return string(parts[0]), string(bytes.TrimSpace(parts[1]))
		}
		return string(line), ""
	}

	field = string(line[:idx])
	value = string(line[idx+1:])

	// A single space after the colon is not part of the value
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}

	return field, value
}

// ReadAll reads all events (non-streaming wrapper).
func (p *SSEParser) ReadAll() ([]SSEEvent, error) {
	var events []SSEEvent
	for {
		event, err := p.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return events, err
		}
		events = append(events, *event)
	}
	return events, nil
}

// LastEventID returns the last event ID seen.
func (p *SSEParser) LastEventID() string {
	return p.lastID
}

// Count returns the number of events parsed so far.
func (p *SSEParser) Count() int {
	return p.events
}
