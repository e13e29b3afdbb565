package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/burpheart/runchat/internal/httpstream"
	"github.com/gorilla/websocket"
)

type fakeStore []httpstream.Record

func (s fakeStore) GetRecentRecords(limit int) []httpstream.Record {
	if limit <= 0 || limit > len(s) {
		limit = len(s)
	}
	return s[len(s)-limit:]
}

func newTestServer(t *testing.T, store RecordStore) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	mux := http.NewServeMux()
	NewHandler(hub, store).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readRecord(t *testing.T, conn *websocket.Conn) httpstream.Record {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var rec httpstream.Record
	if err := conn.ReadJSON(&rec); err != nil {
		t.Fatalf("read: %v", err)
	}
	return rec
}

func TestWebSocketBroadcast(t *testing.T) {
	hub, srv := newTestServer(t, fakeStore{})
	conn := dial(t, srv, "")
	waitForClients(t, hub, 1)

	hub.Broadcast(httpstream.Record{Type: "sse", EventData: `{"type":"text-delta"}`})

	rec := readRecord(t, conn)
	if rec.Type != "sse" || rec.EventData != `{"type":"text-delta"}` {
		t.Errorf("record = %+v", rec)
	}
}

func TestWebSocketReplay(t *testing.T) {
	store := fakeStore{
		{Type: "request", RecordIndex: 1},
		{Type: "response", RecordIndex: 2},
		{Type: "sse", RecordIndex: 3},
	}
	hub, srv := newTestServer(t, store)
	conn := dial(t, srv, "?replay=2")
	waitForClients(t, hub, 1)

	if rec := readRecord(t, conn); rec.Type != "response" {
		t.Errorf("first replayed = %q, want response", rec.Type)
	}
	if rec := readRecord(t, conn); rec.Type != "sse" {
		t.Errorf("second replayed = %q, want sse", rec.Type)
	}
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub, srv := newTestServer(t, fakeStore{})
	conn := dial(t, srv, "")
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestGetRecords(t *testing.T) {
	store := fakeStore{{Type: "request"}, {Type: "sse"}, {Type: "sse"}}
	_, srv := newTestServer(t, store)

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?limit=1", 1},
		{"?limit=0", 3},
		{"?limit=abc", 3},
	}
	for _, tt := range tests {
		resp, err := http.Get(srv.URL + "/api/records" + tt.query)
		if err != nil {
			t.Fatal(err)
		}
		var got []httpstream.Record
		err = json.NewDecoder(resp.Body).Decode(&got)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("%s: decode: %v", tt.query, err)
		}
		if len(got) != tt.want {
			t.Errorf("%s: got %d records, want %d", tt.query, len(got), tt.want)
		}
	}
}

func TestGetRecordsEmptyIsArray(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(NewHub(), fakeStore{}).HandleGetRecords(rec, httptest.NewRequest(http.MethodGet, "/api/records", nil))

	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}
