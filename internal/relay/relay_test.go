package relay

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/burpheart/runchat/internal/httpstream"
	"github.com/burpheart/runchat/pkg/types"
)

var testIdentity = types.Identity{TenantID: "default", ProjectID: "default", GraphID: "weather-graph"}

const ssePayload = "data: {\"type\":\"start\"}\n\n" +
	"data: {\"type\":\"text-delta\",\"id\":\"t1\",\"delta\":\"hi\"}\n\n" +
	"data: [DONE]\n\n"

func chatRequest(t *testing.T, body string) *http.Request {
	t.Helper()
	return httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
}

func TestRelayStreamsEventStream(t *testing.T) {
	var gotBody types.UpstreamRequest
	var gotHeader http.Header
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		w.Header().Set("X-Vercel-AI-UI-Message-Stream", "v1")
		w.Header().Set("Cache-Control", "no-store")
		io.WriteString(w, ssePayload)
	}))
	defer upstream.Close()

	r := New(upstream.URL, testIdentity, WithAPIKey("secret"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, chatRequest(t, `{"id":"chat-1","messages":[{"role":"user","parts":[{"type":"text","text":"hello"}]}]}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != ssePayload {
		t.Errorf("body = %q, want upstream bytes", got)
	}
	for name, want := range map[string]string{
		"Content-Type":                  "text/event-stream",
		"Cache-Control":                 "no-cache",
		"Connection":                    "keep-alive",
		"X-Vercel-AI-UI-Message-Stream": "v1",
	} {
		if got := rec.Header().Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}

	if got := gotHeader.Get("Authorization"); got != "Bearer secret" {
		t.Errorf("Authorization = %q", got)
	}
	if got := gotHeader.Get("x-inkeep-graph-id"); got != "weather-graph" {
		t.Errorf("graph header = %q", got)
	}
	if gotBody.ConversationID != "chat-1" || gotBody.GraphID != "weather-graph" || gotBody.TenantID != "default" {
		t.Errorf("upstream body = %+v", gotBody)
	}
	if len(gotBody.Messages) != 1 || gotBody.Messages[0].Content.Text != "hello" {
		t.Errorf("messages = %+v", gotBody.Messages)
	}
}

func TestRelayPassesErrorsThrough(t *testing.T) {
	const errBody = `{"error":{"message":"graph not found"}}`
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, errBody)
	}))
	defer upstream.Close()

	rec := httptest.NewRecorder()
	New(upstream.URL, testIdentity).ServeHTTP(rec, chatRequest(t, `{"messages":[]}`))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if got := rec.Body.String(); got != errBody {
		t.Errorf("body = %q, want %q", got, errBody)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestRelayBuffersNonStreamSuccess(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"ok":true}`)
	}))
	defer upstream.Close()

	rec := httptest.NewRecorder()
	New(upstream.URL, testIdentity).ServeHTTP(rec, chatRequest(t, `{"messages":[]}`))

	if rec.Code != http.StatusOK || rec.Body.String() != `{"ok":true}` {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Cache-Control"); got != "" {
		t.Errorf("Cache-Control = %q, want none", got)
	}
}

func TestRelayNoAuthorizationWithoutKey(t *testing.T) {
	var auth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer upstream.Close()

	rec := httptest.NewRecorder()
	New(upstream.URL, testIdentity).ServeHTTP(rec, chatRequest(t, `{"messages":[]}`))

	if auth != "" {
		t.Errorf("Authorization = %q, want none", auth)
	}
}

func TestRelayTransportFailure(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	base := upstream.URL
	upstream.Close()

	rec := httptest.NewRecorder()
	New(base, testIdentity).ServeHTTP(rec, chatRequest(t, `{"messages":[]}`))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if body["error"] == "" {
		t.Errorf("error message empty: %q", rec.Body.String())
	}
}

func TestRelayMalformedBody(t *testing.T) {
	rec := httptest.NewRecorder()
	New("http://127.0.0.1:1", testIdentity).ServeHTTP(rec, chatRequest(t, `{not json`))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "decode chat request") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestRelayTapsEncodedStream(t *testing.T) {
	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	io.WriteString(gz, ssePayload)
	gz.Close()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Encoding") != "gzip" {
			t.Errorf("Accept-Encoding = %q, want forwarded gzip", r.Header.Get("Accept-Encoding"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(compressed.Bytes())
	}))
	defer upstream.Close()

	recorder, err := httpstream.NewRecorder("")
	if err != nil {
		t.Fatal(err)
	}
	var logs bytes.Buffer
	logger := httpstream.NewDefaultLogger(
		httpstream.WithOutput(&logs),
		httpstream.WithLevel(httpstream.LogLevelDebug),
		httpstream.WithColor(false),
	)
	r := New(upstream.URL, testIdentity, WithRecorder(recorder), WithLogger(logger))

	req := chatRequest(t, `{"conversationId":"conv-9","messages":[]}`)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if !bytes.Equal(rec.Body.Bytes(), compressed.Bytes()) {
		t.Errorf("relayed body differs from upstream bytes")
	}
	if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
		t.Errorf("Content-Encoding = %q, want gzip", got)
	}

	var kinds []string
	var events []string
	for _, record := range recorder.GetRecentRecords(0) {
		kinds = append(kinds, record.Type)
		if record.Conversation != "conv-9" {
			t.Errorf("record conversation = %q", record.Conversation)
		}
		if record.Type == "sse" {
			events = append(events, record.EventData)
		}
	}
	want := []string{"request", "response", "sse", "sse", "sse"}
	if strings.Join(kinds, ",") != strings.Join(want, ",") {
		t.Errorf("record types = %v, want %v", kinds, want)
	}
	if len(events) != 3 || events[2] != "[DONE]" {
		t.Errorf("events = %v", events)
	}
	if !strings.Contains(logs.String(), "Stream tap done: 3 events") {
		t.Errorf("tap summary missing from log:\n%s", logs.String())
	}
}

func TestRelayStreamsBeforeUpstreamFinishes(t *testing.T) {
	release := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"type\":\"start\"}\n\n")
		w.(http.Flusher).Flush()
		<-release
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer upstream.Close()

	proxy := httptest.NewServer(New(upstream.URL, testIdentity))
	defer proxy.Close()
	// Servers wait for open requests on Close.
	defer close(release)

	resp, err := http.Post(proxy.URL, "application/json", strings.NewReader(`{"id":"c1","messages":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	type result struct {
		line string
		err  error
	}
	first := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(resp.Body).ReadString('\n')
		first <- result{line, err}
	}()

	select {
	case got := <-first:
		if got.err != nil {
			t.Fatalf("read first line: %v", got.err)
		}
		if got.line != "data: {\"type\":\"start\"}\n" {
			t.Errorf("first line = %q", got.line)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first event not relayed while upstream was still streaming")
	}
}
