package httpstream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Record represents a single JSONL record of relayed traffic.
type Record struct {
	Timestamp   string `json:"ts"`
	StreamID    string `json:"stream"`
	StreamSeq   int64  `json:"seq"`   // Global stream sequence number
	RecordIndex int64  `json:"index"` // Record index within stream
	Type        string `json:"type"`  // request, response, sse, error

	Conversation string `json:"conversation,omitempty"`

	// Request fields
	Method string `json:"method,omitempty"`
	URL    string `json:"url,omitempty"`

	// Response fields
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`

	// SSE fields
	EventType string `json:"event_type,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	EventData string `json:"event_data,omitempty"`

	Error string `json:"error,omitempty"`
}

// RecordCallback is called when a record is written.
type RecordCallback func(Record)

// Recorder writes relayed traffic to an optional JSONL file and keeps the
// most recent records in memory for late subscribers.
type Recorder struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder

	records   atomic.Int64
	streamSeq atomic.Int64

	onRecord RecordCallback

	cacheMu      sync.RWMutex
	recordCache  []Record
	maxCacheSize int
	maxEventData int
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithOnRecord sets a callback for each record written.
func WithOnRecord(cb RecordCallback) RecorderOption {
	return func(r *Recorder) { r.onRecord = cb }
}

// WithCacheSize sets the maximum number of records to cache in memory.
func WithCacheSize(size int) RecorderOption {
	return func(r *Recorder) { r.maxCacheSize = size }
}

// WithMaxEventData caps the SSE payload stored per record. Zero keeps it whole.
func WithMaxEventData(n int) RecorderOption {
	return func(r *Recorder) { r.maxEventData = n }
}

// NewRecorder creates a recorder. An empty path records to memory only.
func NewRecorder(path string, opts ...RecorderOption) (*Recorder, error) {
	r := &Recorder{
		recordCache:  make([]Record, 0, 1000),
		maxCacheSize: 1000,
	}

	if path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open recorder file: %w", err)
		}
		r.file = file
		r.encoder = json.NewEncoder(file)
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Close closes the recorder file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

func (r *Recorder) write(rec Record) error {
	if r.encoder != nil {
		r.mu.Lock()
		err := r.encoder.Encode(rec)
		r.mu.Unlock()
		if err != nil {
			return err
		}
	}

	r.records.Add(1)
	r.addToCache(rec)

	if r.onRecord != nil {
		r.onRecord(rec)
	}

	return nil
}

func (r *Recorder) addToCache(rec Record) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.recordCache = append(r.recordCache, rec)
	if len(r.recordCache) > r.maxCacheSize {
		r.recordCache = r.recordCache[len(r.recordCache)-r.maxCacheSize:]
	}
}

// RecordCount returns the number of records written.
func (r *Recorder) RecordCount() int64 {
	return r.records.Load()
}

// GetRecentRecords returns up to limit of the most recent records, oldest first.
func (r *Recorder) GetRecentRecords(limit int) []Record {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if limit <= 0 || limit > len(r.recordCache) {
		limit = len(r.recordCache)
	}
	return append([]Record(nil), r.recordCache[len(r.recordCache)-limit:]...)
}

// Stream tracks the records of one relayed chat request.
type Stream struct {
	ID           string
	Seq          int64
	Conversation string
	recorder     *Recorder
	recordIndex  atomic.Int64
}

// NewStream starts a tracked stream for a conversation.
func (r *Recorder) NewStream(conversation string) *Stream {
	return &Stream{
		ID:           uuid.NewString(),
		Seq:          r.streamSeq.Add(1),
		Conversation: conversation,
		recorder:     r,
	}
}

func (s *Stream) record(typ string) Record {
	return Record{
		Timestamp:    time.Now().Format(time.RFC3339Nano),
		StreamID:     s.ID,
		StreamSeq:    s.Seq,
		RecordIndex:  s.recordIndex.Add(1),
		Type:         typ,
		Conversation: s.Conversation,
	}
}

// LogRequest records the upstream request line.
func (s *Stream) LogRequest(req *http.Request) {
	rec := s.record("request")
	rec.Method = req.Method
	rec.URL = req.URL.String()
	s.recorder.write(rec)
}

// LogResponse records the upstream status.
func (s *Stream) LogResponse(resp *http.Response) {
	rec := s.record("response")
	rec.Status = resp.StatusCode
	rec.ContentType = resp.Header.Get("Content-Type")
	s.recorder.write(rec)
}

// LogSSE records one tapped SSE event.
func (s *Stream) LogSSE(event *SSEEvent) {
	rec := s.record("sse")
	rec.EventType = event.Event
	if rec.EventType == "" {
		rec.EventType = "message"
	}
	rec.EventID = event.ID
	rec.EventData = truncateString(event.Data, s.recorder.maxEventData)
	s.recorder.write(rec)
}

// LogError records a relay or tap failure.
func (s *Stream) LogError(err error) {
	rec := s.record("error")
	rec.Error = err.Error()
	s.recorder.write(rec)
}

// truncateString truncates s to at most max bytes without splitting a rune;
// max <= 0 disables it.
func truncateString(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
