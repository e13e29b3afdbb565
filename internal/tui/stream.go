package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/burpheart/runchat/internal/probe"
	"github.com/burpheart/runchat/internal/uistream"
	"github.com/burpheart/runchat/pkg/types"
)

// Chatter is the proxy client the page talks to.
type Chatter interface {
	Stream(ctx context.Context, req types.ChatRequest, onData uistream.DataHandler, onUpdate func(types.Message)) (types.Message, error)
	probe.Checker
}

// streamDataMsg carries one data-* part, in arrival order.
type streamDataMsg struct {
	part types.Part
}

// streamUpdateMsg carries the assistant message so far.
type streamUpdateMsg struct {
	msg types.Message
}

// streamDoneMsg ends a turn.
type streamDoneMsg struct {
	msg types.Message
	err error
}

type probeDoneMsg struct {
	report probe.Report
	err    error
}

// startStream runs one chat turn in the background and feeds its events
// into events. The channel is closed after streamDoneMsg.
func startStream(ctx context.Context, c Chatter, req types.ChatRequest) chan tea.Msg {
	events := make(chan tea.Msg, 64)
	go func() {
		defer close(events)
		msg, err := c.Stream(ctx, req,
			func(p types.Part) { events <- streamDataMsg{part: p} },
			func(m types.Message) { events <- streamUpdateMsg{msg: m} },
		)
		events <- streamDoneMsg{msg: msg, err: err}
	}()
	return events
}

// waitForStream waits for the next event of a running turn.
func waitForStream(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

func runProbe(ctx context.Context, c probe.Checker) tea.Cmd {
	return func() tea.Msg {
		report, err := c.Health(ctx)
		return probeDoneMsg{report: report, err: err}
	}
}
