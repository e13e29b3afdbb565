package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/burpheart/runchat/internal/classify"
	"github.com/burpheart/runchat/internal/oplog"
	"github.com/burpheart/runchat/internal/probe"
	"github.com/burpheart/runchat/pkg/types"
)

const maxURLWidth = 72

// renderTranscript renders every message with its role header.
func renderTranscript(messages []types.Message, width int) string {
	if len(messages) == 0 {
		return dimStyle.Render("Say something to start the conversation.")
	}
	blocks := make([]string, 0, len(messages))
	for _, msg := range messages {
		blocks = append(blocks, renderMessage(msg, width))
	}
	return strings.Join(blocks, "\n\n")
}

// renderMessage renders one message. Items are recomputed from the parts on
// every call.
func renderMessage(msg types.Message, width int) string {
	lines := []string{roleHeader(msg.Role)}
	for _, item := range classify.Classify(msg.Parts) {
		if s := renderItem(classify.Present(item), width); s != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n")
}

func roleHeader(role types.Role) string {
	switch role {
	case types.RoleUser:
		return userRoleStyle.Render("You")
	case types.RoleSystem:
		return systemRoleStyle.Render("System")
	}
	return assistantRoleStyle.Render("Assistant")
}

func renderItem(p classify.Presentation, width int) string {
	switch p.Kind {
	case classify.PresentText:
		return wrap(renderEmphasis(p.Text), width)
	case classify.PresentImage:
		return "[image] " + linkStyle.Render(shortURL(p.URL))
	case classify.PresentDocument:
		return "[pdf] " + linkStyle.Render(shortURL(p.URL))
	case classify.PresentFigure:
		s := "[image] " + linkStyle.Render(shortURL(p.URL))
		if p.Caption != "" {
			s += "\n" + dimStyle.Render(p.Caption)
		}
		return s
	case classify.PresentDump:
		return dimStyle.Render(p.Dump)
	}
	return ""
}

func renderEmphasis(text string) string {
	var b strings.Builder
	for _, span := range classify.Emphasis(text) {
		if span.Bold {
			b.WriteString(boldStyle.Render(span.Text))
		} else {
			b.WriteString(span.Text)
		}
	}
	return b.String()
}

func wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	return lipgloss.NewStyle().Width(width).Render(s)
}

// shortURL keeps data URLs readable: their payload is replaced by its size.
func shortURL(url string) string {
	if strings.HasPrefix(url, "data:") {
		if i := strings.IndexByte(url, ','); i >= 0 {
			return fmt.Sprintf("%s,… (%d bytes)", url[:i], len(url)-i-1)
		}
	}
	if len(url) > maxURLWidth {
		return url[:maxURLWidth-1] + "…"
	}
	return url
}

const minimalEventsHint = "Only minimal events received (init + completion). For richer activity " +
	"(transfers, tools, summaries), enable statusUpdates in your graph, e.g. " +
	"{ numEvents: 2, timeInSeconds: 10 }."

// renderActivity renders the operation log.
func renderActivity(events []types.OperationEvent, width int) string {
	if len(events) == 0 {
		return dimStyle.Render("No activity yet.")
	}

	entries := make([]string, 0, len(events)+1)
	for _, ev := range events {
		entries = append(entries, renderOperation(oplog.Describe(ev), width))
	}
	if oplog.MinimalOnly(events) {
		entries = append(entries, wrap(dimStyle.Render(minimalEventsHint), width))
	}
	return strings.Join(entries, "\n\n")
}

func renderOperation(d oplog.Description, width int) string {
	lines := []string{dimStyle.Render(d.Heading)}
	if d.Label != "" {
		lines = append(lines, boldStyle.Render(d.Label))
	}
	if d.Summary != "" {
		lines = append(lines, wrap(d.Summary, width))
	}
	for _, f := range d.Fields {
		lines = append(lines, boldStyle.Render(f.Name+":")+" "+f.Value)
	}
	lines = append(lines, d.Blocks...)
	if d.Components != "" {
		lines = append(lines, boldStyle.Render("Components"), d.Components)
	}
	return strings.Join(lines, "\n")
}

// renderCapture renders the visible tail of the raw capture, one compact
// JSON part per line.
func renderCapture(c *oplog.Capture, width int) string {
	lines := []string{paneTitleStyle.Render(fmt.Sprintf("Raw stream events (%d)", c.Len()))}
	for _, captured := range c.Visible() {
		data, err := json.Marshal(captured.Part)
		if err != nil {
			continue
		}
		lines = append(lines, wrap(string(data), width))
	}
	return strings.Join(lines, "\n")
}

// connectionBadge renders the probe outcome next to the title.
func connectionBadge(s probe.Status) string {
	code := ""
	if s.HTTPStatus != nil && *s.HTTPStatus != 0 {
		code = fmt.Sprintf(" (%d)", *s.HTTPStatus)
	}
	var badge string
	switch s.State {
	case probe.Testing:
		badge = badgeStyle.Render("Testing…")
	case probe.OK:
		badge = okBadgeStyle.Render("OK" + code)
	case probe.Fail:
		badge = failBadgeStyle.Render("Failed" + code)
	default:
		return ""
	}
	if s.Info != "" {
		badge += " " + dimStyle.Render(s.Info)
	}
	return badge
}

func attachmentLine(files []pendingFile) string {
	if len(files) == 0 {
		return ""
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = fmt.Sprintf("%s (%s)", f.name, f.part.MediaType)
	}
	return dimStyle.Render("Attached: " + strings.Join(names, ", "))
}
