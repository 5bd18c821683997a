package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"fontbake/internal/batch"
	"fontbake/internal/pipeline"
)

// BatchReporter turns batch progress and editor log lines into model
// messages.
type BatchReporter struct {
	send    func(tea.Msg)
	indexOf map[string]int
}

// NewBatchReporter maps job names to rows for line updates. Jobs sharing a
// name report lines on the first matching row.
func NewBatchReporter(send func(tea.Msg), jobs []batch.Job) *BatchReporter {
	indexOf := make(map[string]int, len(jobs))
	for _, job := range jobs {
		if _, dup := indexOf[job.Name]; !dup {
			indexOf[job.Name] = job.Index
		}
	}
	return &BatchReporter{send: send, indexOf: indexOf}
}

// Start implements batch.ProgressReporter.
func (r *BatchReporter) Start(job batch.Job) {
	r.send(JobStartedMsg{Index: job.Index})
}

// Complete implements batch.ProgressReporter.
func (r *BatchReporter) Complete(res batch.Result) {
	r.send(JobFinishedMsg{Result: res})
}

// Line forwards an editor log line; it matches batch.Options.OnLine.
func (r *BatchReporter) Line(job string, _ pipeline.Phase, line string) {
	if idx, ok := r.indexOf[job]; ok {
		r.send(JobLineMsg{Index: idx, Line: line})
	}
}

var _ batch.ProgressReporter = (*BatchReporter)(nil)
