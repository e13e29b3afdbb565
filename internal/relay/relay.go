// Package relay forwards chat requests to the run service and relays the
// response back to the caller, streaming event streams as they arrive.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/burpheart/runchat/internal/httpstream"
	"github.com/burpheart/runchat/internal/normalize"
	"github.com/burpheart/runchat/internal/probe"
	"github.com/burpheart/runchat/pkg/types"
)

// Relay is the /api/chat handler.
type Relay struct {
	base       string
	identity   types.Identity
	apiKey     string
	normalizer *normalize.Normalizer
	client     *http.Client
	logger     httpstream.Logger
	recorder   *httpstream.Recorder
}

// Option configures a Relay.
type Option func(*Relay)

// WithAPIKey sets the bearer token sent upstream. Empty sends none.
func WithAPIKey(key string) Option {
	return func(r *Relay) { r.apiKey = key }
}

// WithHTTPClient sets the client used for upstream requests.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Relay) { r.client = c }
}

// WithLogger sets the traffic logger.
func WithLogger(l httpstream.Logger) Option {
	return func(r *Relay) { r.logger = l }
}

// WithRecorder enables recording of relayed streams.
func WithRecorder(rec *httpstream.Recorder) Option {
	return func(r *Relay) { r.recorder = rec }
}

// New creates a Relay posting to base+"/api/chat" as identity.
func New(base string, identity types.Identity, opts ...Option) *Relay {
	r := &Relay{
		base:       base,
		identity:   identity,
		normalizer: normalize.New(identity),
		client:     http.DefaultClient,
		logger:     httpstream.NopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ServeHTTP implements http.Handler. Failures before the upstream response
// arrives become a 500 with a JSON error body.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var chat types.ChatRequest
	if err := json.NewDecoder(req.Body).Decode(&chat); err != nil {
		writeError(w, fmt.Errorf("decode chat request: %w", err))
		return
	}

	var stream *httpstream.Stream
	if r.recorder != nil {
		conversation := chat.ConversationID
		if conversation == "" {
			conversation = chat.ID
		}
		stream = r.recorder.NewStream(conversation)
	}

	resp, err := r.send(req.Context(), chat, req.Header.Get("Accept-Encoding"), stream)
	if err != nil {
		r.logger.Error("Relay %s: %v", probe.Resource(r.base), err)
		if stream != nil {
			stream.LogError(err)
		}
		writeError(w, err)
		return
	}
	defer resp.Body.Close()

	r.logger.LogResponse(resp)
	if stream != nil {
		stream.LogResponse(resp)
	}

	if isSuccess(resp.StatusCode) && httpstream.IsEventStream(resp.Header.Get("Content-Type")) {
		if err := r.relayStream(w, resp, stream); err != nil && !isClientGone(req.Context(), err) {
			r.logger.Warn("Stream relay interrupted: %v", err)
			if stream != nil {
				stream.LogError(err)
			}
		}
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("read upstream body: %w", err)
		if stream != nil {
			stream.LogError(err)
		}
		writeError(w, err)
		return
	}
	r.logger.LogBody(upstreamHost(resp), body)

	copyHeader(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	w.Write(body)
}

// send posts the normalized request upstream.
func (r *Relay) send(ctx context.Context, chat types.ChatRequest, acceptEncoding string, stream *httpstream.Stream) (*http.Response, error) {
	payload, err := json.Marshal(r.normalizer.Request(chat))
	if err != nil {
		return nil, fmt.Errorf("encode upstream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, probe.Resource(r.base), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
	probe.SetIdentityHeaders(req.Header, r.identity)
	// An explicit Accept-Encoding keeps the transport from decompressing,
	// so the caller gets the upstream bytes unchanged.
	if acceptEncoding != "" {
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}

	r.logger.LogRequest(req)
	if stream != nil {
		stream.LogRequest(req)
	}

	return r.client.Do(req)
}

// relayStream copies an event stream to w as it arrives while mirroring the
// bytes into an asynchronous tap.
func (r *Relay) relayStream(w http.ResponseWriter, resp *http.Response, stream *httpstream.Stream) error {
	h := w.Header()
	copyHeader(h, resp.Header)
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(resp.StatusCode)

	fw := newFlushWriter(w)
	fw.Flush()

	pr, pw := io.Pipe()
	tee := io.TeeReader(resp.Body, pw)

	tapDone := make(chan struct{})
	go func() {
		defer close(tapDone)
		r.tap(pr, resp, stream)
		// Drain so the relay never blocks on a stopped tap
		io.Copy(io.Discard, pr)
	}()

	_, err := io.Copy(fw, tee)

	pw.Close()
	<-tapDone

	return err
}

// tap parses the mirrored stream into SSE events for logging and recording.
func (r *Relay) tap(mirror io.Reader, resp *http.Response, stream *httpstream.Stream) {
	host := upstreamHost(resp)
	parser := httpstream.NewSSEParser(httpstream.Decode(mirror, resp.Header))
	for {
		event, err := parser.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				r.logger.Debug("Stream tap stopped: %v", err)
				if stream != nil {
					stream.LogError(fmt.Errorf("tap stream: %w", err))
				}
			}
			r.logger.Debug("Stream tap done: %d events from %s", parser.Count(), host)
			return
		}
		r.logger.LogSSE(host, event)
		if stream != nil {
			stream.LogSSE(event)
		}
	}
}

// writeError writes the 500 JSON error body.
func writeError(w http.ResponseWriter, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if msg == "" {
		msg = "proxy_failed"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func isClientGone(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || isConnectionClosed(err)
}

func upstreamHost(resp *http.Response) string {
	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.Host
	}
	return ""
}
