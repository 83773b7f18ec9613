// Package render draws board column views as terminal text.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/BuzzLyutic/kanban-board/internal/board"
	"github.com/BuzzLyutic/kanban-board/internal/model"
)

const (
	defaultColumnWidth = 28
	minColumnWidth     = 12
	dropMarker         = "▸ drop here"
)

type palette struct {
	fg     lipgloss.Color
	accent lipgloss.Color
	muted  lipgloss.Color
	warn   lipgloss.Color
}

var defaultPalette = palette{
	fg:     lipgloss.Color("252"),
	accent: lipgloss.Color("62"),
	muted:  lipgloss.Color("241"),
	warn:   lipgloss.Color("214"),
}

// Renderer turns ColumnViews into side-by-side bordered columns.
type Renderer struct {
	ColumnWidth int
	// ShowIDs prefixes every card with its task id.
	ShowIDs bool
	p       palette
}

func New(columnWidth int) *Renderer {
	if columnWidth <= 0 {
		columnWidth = defaultColumnWidth
	}
	return &Renderer{ColumnWidth: max(columnWidth, minColumnWidth), ShowIDs: true, p: defaultPalette}
}

// Board renders every column left to right.
func (r *Renderer) Board(views []board.ColumnView) string {
	cols := make([]string, 0, len(views))
	for _, v := range views {
		cols = append(cols, r.Column(v))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

// Column renders one column with its header, cards and load-more footer.
func (r *Renderer) Column(v board.ColumnView) string {
	inner := r.ColumnWidth - 4

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(r.p.accent).
		Render(fmt.Sprintf("%s (%d)", v.Column.Title(), v.Total))

	lines := []string{header, ""}
	for i, t := range v.Tasks {
		if v.DropIndex == i {
			lines = append(lines, r.marker())
		}
		lines = append(lines, r.card(t, inner))
	}
	if v.DropIndex >= len(v.Tasks) {
		lines = append(lines, r.marker())
	}
	if len(v.Tasks) == 0 && v.DropIndex < 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(r.p.muted).Render("no tasks"))
	}
	if v.Remaining > 0 {
		lines = append(lines, "", lipgloss.NewStyle().
			Foreground(r.p.muted).
			Render(LoadMoreLabel(v.Remaining)))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(r.p.muted).
		Padding(0, 1).
		Width(r.ColumnWidth - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// LoadMoreLabel is the footer shown under a truncated column.
func LoadMoreLabel(remaining int) string {
	return fmt.Sprintf("Load More (%d remaining)", remaining)
}

func (r *Renderer) card(t model.Task, width int) string {
	title := t.Title
	if r.ShowIDs {
		title = fmt.Sprintf("#%d %s", t.ID, title)
	}
	body := []string{lipgloss.NewStyle().Foreground(r.p.fg).Render(truncate(title, width))}
	if d := strings.TrimSpace(t.Description); d != "" {
		body = append(body, lipgloss.NewStyle().Foreground(r.p.muted).Render(truncate(firstLine(d), width)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, body...)
}

func (r *Renderer) marker() string {
	return lipgloss.NewStyle().Foreground(r.p.warn).Render(dropMarker)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if width <= 0 || len(runes) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}
