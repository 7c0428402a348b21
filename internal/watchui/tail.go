// Package watchui implements the live-tailing terminal UI behind
// `rtrace watch` (§4.13): a small Bubble Tea program that polls the
// promises table's text sink for newly appended rows while a trace is
// still running, adapted from the teacher's build-progress model
// (internal/ui/progress.go) — a spinner plus a scrolling ring buffer
// instead of a per-file progress bar.
package watchui

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const pollInterval = 200 * time.Millisecond

// Model tails a single tsv file, keeping at most capacity of its most
// recently appended rows. Only the text sink can be tailed this way;
// the binary sink's length-prefixed msgpack frames are not
// line-oriented, so `rtrace watch` requires a trace run with
// binary=false.
type Model struct {
	path     string
	capacity int
	header   []string
	rows     [][]string
	offset   int64
	spinner  spinner.Model
	width    int
	err      error
	quitting bool
}

type tickMsg struct{}
type pollResultMsg struct {
	header []string
	rows   [][]string
	offset int64
	err    error
}

// New returns a Model that will tail path, keeping at most capacity
// rows in view.
func New(path string, capacity int) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	return &Model{path: path, capacity: capacity, spinner: sp, width: 100}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" || msg.String() == "esc" {
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tickMsg:
		return m, m.poll()
	case pollResultMsg:
		m.err = msg.err
		if msg.header != nil {
			m.header = msg.header
		}
		if len(msg.rows) > 0 {
			m.rows = append(m.rows, msg.rows...)
			if len(m.rows) > m.capacity {
				m.rows = m.rows[len(m.rows)-m.capacity:]
			}
		}
		m.offset = msg.offset
		return m, tea.Tick(pollInterval, func(time.Time) tea.Msg { return tickMsg{} })
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	var b strings.Builder
	header := fmt.Sprintf("%s watching %s (%d rows)", m.spinner.View(), m.path, len(m.rows))
	if m.quitting {
		header = "stopped watching " + m.path
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(m.err.Error()))
		b.WriteString("\n")
	}
	if len(m.header) > 0 {
		b.WriteString(renderColumns(m.header, m.width))
		b.WriteString("\n")
	}
	for _, row := range m.rows {
		b.WriteString(renderColumns(row, m.width))
		b.WriteString("\n")
	}
	b.WriteString("\npress q to quit\n")
	return b.String()
}

func renderColumns(cols []string, width int) string {
	colWidth := width / max(1, len(cols))
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = runewidth.Truncate(c, colWidth, "")
	}
	return strings.Join(parts, "  ")
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (m *Model) poll() tea.Cmd {
	path, offset := m.path, m.offset
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return pollResultMsg{err: err}
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return pollResultMsg{err: err}
		}
		if info.Size() < offset {
			offset = 0 // file was truncated/recreated, e.g. a new trace run
		}
		if _, err := f.Seek(offset, 0); err != nil {
			return pollResultMsg{err: err}
		}

		scanner := bufio.NewScanner(f)
		var header []string
		var rows [][]string
		first := offset == 0
		for scanner.Scan() {
			cols := strings.Split(scanner.Text(), "\t")
			if first {
				header = cols
				first = false
				continue
			}
			rows = append(rows, cols)
		}
		newOffset, _ := f.Seek(0, 1)
		return pollResultMsg{header: header, rows: rows, offset: newOffset, err: scanner.Err()}
	}
}
