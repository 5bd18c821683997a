package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"fontbake/internal/batch"
)

const (
	tickInterval = 150 * time.Millisecond
	marqueeGap   = "   "

	nameWidth   = 24
	statusWidth = 8
	detailWidth = 60
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// tickMsg drives animation (spinner, marquee).
type tickMsg time.Time

type jobRow struct {
	name    string
	status  string
	detail  string
	started time.Time
	elapsed time.Duration
}

// BatchModel is a bubbletea model rendering one row per batch job with its
// status and either the latest editor log line or the final outcome.
type BatchModel struct {
	title string
	rows  []jobRow
	done  bool
	err   error
	tick  int
	now   func() time.Time
}

// NewBatchModel creates a model with one pending row per job, in order.
func NewBatchModel(title string, jobs []batch.Job) BatchModel {
	rows := make([]jobRow, len(jobs))
	for i, job := range jobs {
		rows[i] = jobRow{name: job.Name, status: StatusPending}
	}
	return BatchModel{title: title, rows: rows, now: time.Now}
}

func scheduleTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init satisfies the tea.Model interface.
func (m BatchModel) Init() tea.Cmd {
	return scheduleTick()
}

// Update satisfies the tea.Model interface.
func (m BatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.tick++
		if m.done {
			return m, nil
		}
		return m, scheduleTick()

	case JobStartedMsg:
		if row := m.row(msg.Index); row != nil {
			row.status = StatusRunning
			row.started = m.now()
		}
		return m, nil

	case JobLineMsg:
		if row := m.row(msg.Index); row != nil && strings.TrimSpace(msg.Line) != "" {
			row.detail = strings.TrimSpace(msg.Line)
		}
		return m, nil

	case JobFinishedMsg:
		if row := m.row(msg.Result.Index); row != nil {
			row.status = StatusDone
			row.detail = filepath.Base(msg.Result.Message)
			if !msg.Result.Success {
				row.status = StatusFailed
				row.detail = firstLine(msg.Result.Message)
			}
			if !row.started.IsZero() {
				row.elapsed = m.now().Sub(row.started)
			}
		}
		return m, nil

	case WorkDoneMsg:
		m.done = true
		return m, tea.Quit

	case ErrorMsg:
		m.err = msg.Err
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *BatchModel) row(index int) *jobRow {
	if index < 0 || index >= len(m.rows) {
		return nil
	}
	return &m.rows[index]
}

// View satisfies the tea.Model interface.
func (m BatchModel) View() string {
	if m.done && m.err != nil {
		return fmt.Sprintf("Error: %v\n", m.err)
	}

	var b strings.Builder
	if m.title != "" {
		b.WriteString(TitleStyle.Render(m.title))
		b.WriteString("\n\n")
	}
	b.WriteString(strings.Join([]string{
		HeaderStyle.Render(pad("#", 3)),
		HeaderStyle.Render(pad("JOB", nameWidth)),
		HeaderStyle.Render(pad("STATUS", statusWidth)),
		HeaderStyle.Render(pad("TIME", 7)),
		HeaderStyle.Render("DETAIL"),
	}, "  "))
	b.WriteByte('\n')

	for i, row := range m.rows {
		detail := row.detail
		if row.status == StatusRunning && len(detail) > detailWidth {
			detail = marqueeText(detail, detailWidth, m.tick)
		} else {
			detail = TruncateWithEllipsis(detail, detailWidth)
		}
		elapsed := "-"
		if row.elapsed > 0 {
			elapsed = formatElapsed(row.elapsed)
		} else if row.status == StatusRunning {
			elapsed = formatElapsed(m.now().Sub(row.started))
		}
		b.WriteString(strings.Join([]string{
			pad(fmt.Sprintf("%d", i+1), 3),
			pad(TruncateWithEllipsis(row.name, nameWidth), nameWidth),
			StatusStyle(row.status).Render(pad(row.status, statusWidth)),
			pad(elapsed, 7),
			detail,
		}, "  "))
		b.WriteByte('\n')
	}

	finished, failed := m.counts()
	if !m.done {
		spinner := spinnerFrames[m.tick%len(spinnerFrames)]
		fmt.Fprintf(&b, "\n%s Converting %d/%d", spinner, finished, len(m.rows))
		if failed > 0 {
			fmt.Fprintf(&b, " (%d failed)", failed)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (m BatchModel) counts() (finished, failed int) {
	for _, row := range m.rows {
		switch row.status {
		case StatusDone:
			finished++
		case StatusFailed:
			finished++
			failed++
		}
	}
	return finished, failed
}

// Done returns whether the model has finished (work done or error).
func (m BatchModel) Done() bool {
	return m.done
}

// Err returns any fatal error that occurred.
func (m BatchModel) Err() error {
	return m.err
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// marqueeText renders a scrolling window over text that exceeds width.
func marqueeText(text string, width, tick int) string {
	text = strings.TrimSpace(text)
	if width <= 0 {
		return ""
	}
	if len(text) <= width {
		return text
	}
	cycle := text + marqueeGap
	offset := tick % len(cycle)
	var result strings.Builder
	result.Grow(width)
	for i := 0; i < width; i++ {
		result.WriteByte(cycle[(offset+i)%len(cycle)])
	}
	return result.String()
}

// TruncateWithEllipsis truncates a string and adds "..." if it exceeds max length.
func TruncateWithEllipsis(value string, max int) string {
	if max <= 0 {
		return ""
	}
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
