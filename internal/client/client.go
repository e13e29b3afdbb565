// Package client talks to a runchat proxy: it posts chat requests and
// consumes the streamed reply, and runs connection tests.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/burpheart/runchat/internal/httpstream"
	"github.com/burpheart/runchat/internal/probe"
	"github.com/burpheart/runchat/internal/uistream"
	"github.com/burpheart/runchat/pkg/types"
)

// ErrUpstream is wrapped by errors for replies that are not a successful
// event stream.
var ErrUpstream = errors.New("upstream error")

// ErrStream is wrapped by errors the run service reported inside the stream.
var ErrStream = errors.New("stream error")

// maxErrorBody bounds how much of a failed reply is kept.
const maxErrorBody = 1 << 20

// UpstreamError is a non-stream reply from the proxy.
type UpstreamError struct {
	Status int
	Body   []byte
}

func (e *UpstreamError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("upstream %d: %s", e.Status, msg)
	}
	return fmt.Sprintf("upstream %d", e.Status)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstream }

// Message extracts a readable message from the body: the "error" field of
// a JSON body (string or {message}), or else the trimmed body text.
func (e *UpstreamError) Message() string {
	var body struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(e.Body, &body) == nil {
		var s string
		if json.Unmarshal(body.Error, &s) == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(e.Body))
}

// Client is a proxy client.
type Client struct {
	base string
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// New creates a client for the proxy at base, e.g. "http://127.0.0.1:3000".
func New(base string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(base, "/"),
		http: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts req and calls onChunk for every streamed chunk in arrival
// order. Chunks that are not valid JSON are skipped.
func (c *Client) Send(ctx context.Context, req types.ChatRequest, onChunk func(uistream.Chunk)) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !httpstream.IsEventStream(resp.Header.Get("Content-Type")) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &UpstreamError{Status: resp.StatusCode, Body: body}
	}

	dec := uistream.NewDecoder(resp.Body)
	for {
		chunk, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, uistream.ErrMalformedChunk) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read chat stream: %w", err)
		}
		onChunk(chunk)
	}
}

// Stream sends req and assembles the reply into one assistant message.
// onData receives every data-* part as it arrives; onUpdate, when set,
// receives a snapshot of the message after each chunk.
func (c *Client) Stream(ctx context.Context, req types.ChatRequest, onData uistream.DataHandler, onUpdate func(types.Message)) (types.Message, error) {
	asm := uistream.NewAssembler(onData)
	err := c.Send(ctx, req, func(chunk uistream.Chunk) {
		asm.Apply(chunk)
		if onUpdate != nil {
			onUpdate(asm.Message())
		}
	})
	if err != nil {
		return asm.Message(), err
	}
	if text := asm.Err(); text != "" {
		return asm.Message(), fmt.Errorf("%w: %s", ErrStream, text)
	}
	return asm.Message(), nil
}

// Health asks the proxy to probe the run service.
func (c *Client) Health(ctx context.Context) (probe.Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/health", nil)
	if err != nil {
		return probe.Report{}, fmt.Errorf("create health request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return probe.Report{}, fmt.Errorf("request health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return probe.Report{}, &UpstreamError{Status: resp.StatusCode, Body: body}
	}

	var report probe.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return probe.Report{}, fmt.Errorf("decode health report: %w", err)
	}
	return report, nil
}
