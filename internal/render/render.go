// Package render turns messages into terminal output. It is presentation
// only: markdown goes through glamour, tables and accents through lipgloss.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"

	"SQLChat/internal/session"
	"SQLChat/internal/table"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	sqlStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	sqlHeadStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

// Renderer formats assistant output for the terminal.
type Renderer struct {
	markdown *glamour.TermRenderer
}

// New creates a renderer. If glamour cannot initialize (unsupported
// terminal), markdown is printed raw instead.
func New() *Renderer {
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		md = nil
	}
	return &Renderer{markdown: md}
}

// Markdown renders markdown text, falling back to the raw string.
func (r *Renderer) Markdown(text string) string {
	if r.markdown == nil {
		return text
	}
	out, err := r.markdown.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// Assistant renders a full assistant message: answer text, then the
// generated SQL block, then the result table when one is present.
func (r *Renderer) Assistant(msg session.Message) string {
	var b strings.Builder

	if msg.IsError {
		b.WriteString(errorStyle.Render(msg.Content))
	} else {
		b.WriteString(r.Markdown(msg.Content))
	}

	if msg.SQL != "" {
		b.WriteString("\n")
		b.WriteString(sqlHeadStyle.Render("Generated SQL"))
		b.WriteString("\n")
		b.WriteString(sqlStyle.Render(msg.SQL))
	}

	if t := table.Normalize(msg.Results); t != nil {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("Result: %d rows", t.RowCount())))
		if len(t.Columns) > 0 {
			b.WriteString("\n")
			b.WriteString(r.Table(t))
		}
	}

	return b.String()
}

// Table renders a normalized result table.
func (r *Renderer) Table(t *table.Table) string {
	lt := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(t.Columns...).
		Rows(t.Cells...)
	return lt.String()
}

// SessionList renders the session sidebar equivalent: one line per session,
// most recent first, the active one marked.
func (r *Renderer) SessionList(sessions []session.Session, activeID int64) string {
	var b strings.Builder
	for _, sess := range sessions {
		line := fmt.Sprintf("%d  %s", sess.ID, sess.Title)
		if sess.ID == activeID {
			b.WriteString(activeStyle.Render("* " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Hint renders secondary help text.
func (r *Renderer) Hint(text string) string {
	return dimStyle.Render(text)
}
