// Package tui is the terminal chat page: a streamed transcript beside the
// agent and tool activity of the run service.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/burpheart/runchat/internal/attach"
	"github.com/burpheart/runchat/internal/classify"
	"github.com/burpheart/runchat/internal/oplog"
	"github.com/burpheart/runchat/internal/probe"
	"github.com/burpheart/runchat/internal/scroll"
	"github.com/burpheart/runchat/pkg/types"
)

// Chat status shown in the header badge.
const (
	statusReady     = "ready"
	statusSubmitted = "submitted"
	statusStreaming = "streaming"
	statusError     = "error"
)

// stickyLines is the at-bottom threshold in terminal lines.
const stickyLines = 1

// Options configures the chat page.
type Options struct {
	Client         Chatter
	ConversationID string // generated when empty
	LogAllParts    bool   // start with the raw capture on
	Target         string // proxy address shown in the header
}

type pendingFile struct {
	name string
	part types.Part
}

// Model is the bubbletea model of the chat page.
type Model struct {
	ctx            context.Context
	client         Chatter
	conversationID string
	target         string

	messages  []types.Message
	streaming int // index of the assistant message being streamed, -1 if none
	version   int
	pending   []pendingFile

	ops     *oplog.Log
	capture *oplog.Capture
	showRaw bool
	probe   *probe.Probe

	status string
	err    error
	notice string

	events <-chan tea.Msg
	cancel context.CancelFunc

	transcript     *viewport.Model
	activity       *viewport.Model
	raw            *viewport.Model
	sticky         *scroll.Sticky
	activitySticky *scroll.Sticky
	input          textinput.Model
	spinner        spinner.Model

	width  int
	height int
}

// New creates the chat page model.
func New(ctx context.Context, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "Message… (/attach <path>, /clear-attachments)"
	ti.Prompt = "> "
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	transcript := viewport.New(0, 0)
	activity := viewport.New(0, 0)
	raw := viewport.New(0, 0)

	id := opts.ConversationID
	if id == "" {
		id = uuid.NewString()
	}

	return Model{
		ctx:            ctx,
		client:         opts.Client,
		conversationID: id,
		target:         opts.Target,
		streaming:      -1,
		ops:            &oplog.Log{},
		capture:        &oplog.Capture{Enabled: opts.LogAllParts},
		probe:          &probe.Probe{},
		status:         statusReady,
		transcript:     &transcript,
		activity:       &activity,
		raw:            &raw,
		sticky:         scroll.NewSticky(viewportRegion{&transcript}, scroll.WithThreshold(stickyLines)),
		activitySticky: scroll.NewSticky(viewportRegion{&activity}, scroll.WithThreshold(stickyLines)),
		input:          ti,
		spinner:        sp,
	}
}

// Run starts the chat page on the terminal and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(New(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case streamDataMsg:
		m.capture.Record(msg.part)
		if m.ops.Append(msg.part) {
			m.refreshActivity()
		}
		if m.showRaw && m.raw.Height == 0 && m.capture.Len() > 0 {
			m.layout()
		}
		m.refreshRaw()
		return m, waitForStream(m.events)

	case streamUpdateMsg:
		if m.status == statusSubmitted {
			m.status = statusStreaming
		}
		m.setAssistant(msg.msg)
		m.refreshTranscript()
		return m, waitForStream(m.events)

	case streamDoneMsg:
		if len(msg.msg.Parts) > 0 {
			m.setAssistant(msg.msg)
		}
		m.streaming = -1
		m.events = nil
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		if msg.err != nil {
			m.status = statusError
			m.err = msg.err
		} else {
			m.status = statusReady
		}
		m.refreshTranscript()
		return m, nil

	case probeDoneMsg:
		m.probe.Finish(msg.report, msg.err)
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit

	case "esc":
		if m.err != nil {
			m.err = nil
			if !m.busy() {
				m.status = statusReady
			}
		}
		m.notice = ""
		return m, nil

	case "enter":
		return m.submit()

	case "ctrl+t":
		if m.probe.Status().State == probe.Testing {
			return m, nil
		}
		m.probe.Begin()
		return m, runProbe(m.ctx, m.client)

	case "ctrl+r":
		m.showRaw = !m.showRaw
		m.layout()
		return m, nil

	case "ctrl+l":
		m.capture.Enabled = !m.capture.Enabled
		return m, nil

	case "ctrl+y":
		m.copyLastReply()
		return m, nil

	case "up", "down", "pgup", "pgdown":
		vp, cmd := m.transcript.Update(msg)
		*m.transcript = vp
		m.sticky.OnScroll()
		return m, cmd

	case "alt+up":
		m.activity.SetYOffset(m.activity.YOffset - 1)
		m.activitySticky.OnScroll()
		return m, nil

	case "alt+down":
		m.activity.SetYOffset(m.activity.YOffset + 1)
		m.activitySticky.OnScroll()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input and pending files as a user message, or runs an
// input command.
func (m Model) submit() (tea.Model, tea.Cmd) {
	value := m.input.Value()
	if strings.HasPrefix(value, "/") {
		m.runCommand(value)
		m.input.Reset()
		m.layout()
		return m, nil
	}
	if m.busy() || (value == "" && len(m.pending) == 0) {
		return m, nil
	}

	var parts []types.Part
	if value != "" {
		parts = append(parts, types.TextPart(value))
	}
	for _, f := range m.pending {
		parts = append(parts, f.part)
	}
	m.messages = append(m.messages, types.Message{
		ID:    uuid.NewString(),
		Role:  types.RoleUser,
		Parts: parts,
	})

	req := types.ChatRequest{
		ID:       m.conversationID,
		Messages: append([]types.Message(nil), m.messages...),
	}

	m.input.Reset()
	m.pending = nil
	m.err = nil
	m.notice = ""
	m.status = statusSubmitted
	m.streaming = -1

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.events = startStream(ctx, m.client, req)

	m.layout()
	return m, tea.Batch(m.spinner.Tick, waitForStream(m.events))
}

func (m *Model) runCommand(line string) {
	name, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)
	m.notice = ""

	switch name {
	case "/attach":
		if arg == "" {
			m.notice = "usage: /attach <path>"
			return
		}
		parts, err := attach.EncodeFiles([]string{arg})
		if err != nil {
			m.notice = err.Error()
			return
		}
		if !attach.Accepted(parts[0].MediaType) {
			m.notice = fmt.Sprintf("%s: only images and PDFs can be attached (got %s)", arg, parts[0].MediaType)
			return
		}
		m.pending = append(m.pending, pendingFile{name: arg, part: parts[0]})
	case "/clear-attachments":
		m.pending = nil
	default:
		m.notice = fmt.Sprintf("unknown command %s", name)
	}
}

func (m *Model) copyLastReply() {
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Role != types.RoleAssistant {
			continue
		}
		if err := clipboard.WriteAll(classify.PlainText(m.messages[i].Parts)); err != nil {
			m.notice = fmt.Sprintf("copy failed: %v", err)
			return
		}
		m.notice = "Copied last reply"
		return
	}
	m.notice = "Nothing to copy yet"
}

func (m *Model) setAssistant(msg types.Message) {
	if msg.Role == "" {
		msg.Role = types.RoleAssistant
	}
	if m.streaming < 0 {
		m.messages = append(m.messages, msg)
		m.streaming = len(m.messages) - 1
		return
	}
	m.messages[m.streaming] = msg
}

func (m Model) busy() bool {
	return m.status == statusSubmitted || m.status == statusStreaming
}

func (m *Model) refreshTranscript() {
	m.transcript.SetContent(renderTranscript(m.messages, m.transcript.Width))
	m.version++
	m.sticky.Track(m.version)
}

func (m *Model) refreshActivity() {
	m.activity.SetContent(renderActivity(m.ops.Entries(), m.activity.Width))
	m.activitySticky.Changed()
}

func (m *Model) refreshRaw() {
	if !m.showRaw {
		return
	}
	m.raw.SetContent(renderCapture(m.capture, m.raw.Width))
	m.raw.GotoBottom()
}

// Fixed rows outside the panes: title, banner, attachments, input, help,
// plus the pane border and pane title.
const chromeRows = 5 + 2 + 1

func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	leftWidth := m.width * 2 / 3
	rightWidth := m.width - leftWidth
	bodyHeight := max(m.height-chromeRows, 3)

	m.transcript.Width = max(leftWidth-2, 10)
	m.transcript.Height = bodyHeight

	m.raw.Width = max(rightWidth-2, 10)
	m.raw.Height = 0
	activityHeight := bodyHeight
	if m.showRaw && m.capture.Len() > 0 {
		m.raw.Height = bodyHeight / 3
		activityHeight = bodyHeight - m.raw.Height - 1
	}
	m.activity.Width = max(rightWidth-2, 10)
	m.activity.Height = activityHeight

	m.input.Width = max(m.width-4, 10)

	m.refreshTranscript()
	m.refreshActivity()
	m.refreshRaw()
}

func (m Model) View() string {
	if m.width == 0 {
		return "Starting…"
	}

	header := titleStyle.Render("Inkeep chat") + " " + badgeStyle.Render(strings.ToUpper(m.status))
	if m.busy() {
		header += " " + m.spinner.View()
	}
	if badge := connectionBadge(m.probe.Status()); badge != "" {
		header += " " + badge
	}
	toggles := fmt.Sprintf("log all: %s  raw: %s", onOff(m.capture.Enabled), onOff(m.showRaw))
	if m.target != "" {
		toggles = m.target + "  " + toggles
	}
	header += "  " + dimStyle.Render(toggles)

	banner := ""
	switch {
	case m.err != nil:
		banner = bannerStyle.Width(m.width).Render("Error: " + m.err.Error() + "  (esc to dismiss)")
	case m.notice != "":
		banner = dimStyle.Render(m.notice)
	}

	leftWidth := m.width * 2 / 3
	left := paneStyle.Width(leftWidth - 2).Render(
		paneTitleStyle.Render("Conversation") + "\n" + m.transcript.View())

	rightBody := paneTitleStyle.Render("Agent & Tool Activity") + "\n" + m.activity.View()
	if m.raw.Height > 0 {
		rightBody += "\n" + m.raw.View()
	}
	right := paneStyle.Width(m.width - leftWidth - 2).Render(rightBody)

	help := helpStyle.Render("enter send • esc dismiss • ctrl+t test connection • ctrl+l log all • ctrl+r raw • ctrl+y copy • ↑/↓ scroll • ctrl+c quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		banner,
		lipgloss.JoinHorizontal(lipgloss.Top, left, right),
		attachmentLine(m.pending),
		m.input.View(),
		help,
	)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
