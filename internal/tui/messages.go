package tui

import "fontbake/internal/batch"

// JobStartedMsg marks a job as running.
type JobStartedMsg struct {
	Index int
}

// JobLineMsg carries the latest editor log line of a job.
type JobLineMsg struct {
	Index int
	Line  string
}

// JobFinishedMsg records a job outcome.
type JobFinishedMsg struct {
	Result batch.Result
}

// WorkDoneMsg signals that all background work has completed.
type WorkDoneMsg struct{}

// ErrorMsg signals a fatal error; the TUI should quit.
type ErrorMsg struct {
	Err error
}
