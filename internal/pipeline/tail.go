package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"fontbake/internal/runner"
)

// TailOptions controls log polling.
type TailOptions struct {
	// Interval between polls.
	Interval time.Duration
	// GracePolls is the number of idle polls after the process exited
	// before tailing stops.
	GracePolls int
	// ChunkSize caps a single read.
	ChunkSize int
	Retry     runner.Retry
}

// DefaultTailOptions returns the polling defaults used for editor logs.
func DefaultTailOptions() TailOptions {
	return TailOptions{
		Interval:   250 * time.Millisecond,
		GracePolls: 4,
		ChunkSize:  64 << 10,
		Retry:      runner.Retry{Attempts: 10, Interval: 100 * time.Millisecond},
	}
}

func (o TailOptions) normalize() TailOptions {
	d := DefaultTailOptions()
	if o.Interval <= 0 {
		o.Interval = d.Interval
	}
	if o.GracePolls <= 0 {
		o.GracePolls = d.GracePolls
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = d.ChunkSize
	}
	return o
}

// Tail follows a growing log file and calls emit for each complete line.
// A trailing partial line is held until its newline arrives. After exited is
// closed, tailing continues until GracePolls consecutive polls find nothing
// new, then any remaining partial line is flushed. Only ticker polls count
// towards the grace period; filesystem notifications for path, when
// available, just trigger an early read.
func Tail(ctx context.Context, path string, exited <-chan struct{}, opts TailOptions, emit func(string)) error {
	opts = opts.normalize()
	if emit == nil {
		emit = func(string) {}
	}

	var (
		events    <-chan fsnotify.Event
		watchErrs <-chan error
	)
	if watcher, err := fsnotify.NewWatcher(); err == nil {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(path)); err == nil {
			events, watchErrs = watcher.Events, watcher.Errors
		}
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	var (
		offset  int64
		partial []byte
		done    bool
		idle    int
		ticked  bool
	)
	target := filepath.Clean(path)
	flush := func() {
		if len(partial) > 0 {
			emit(strings.TrimRight(string(partial), "\r"))
			partial = nil
		}
	}

	for {
		data, size, err := runner.ReadFileRange(ctx, path, offset, opts.ChunkSize, opts.Retry)
		switch {
		case err == nil:
		case errors.Is(err, os.ErrNotExist):
		case ctx.Err() != nil:
			flush()
			return ctx.Err()
		}
		if err == nil && size < offset {
			// Truncated or replaced: start over.
			offset, partial = 0, nil
			continue
		}
		polled := ticked
		ticked = false

		if len(data) > 0 {
			offset += int64(len(data))
			partial = append(partial, data...)
			for {
				i := bytes.IndexByte(partial, '\n')
				if i < 0 {
					break
				}
				emit(strings.TrimRight(string(partial[:i]), "\r"))
				partial = partial[i+1:]
			}
			idle = 0
			if offset < size {
				continue
			}
		} else if done && polled {
			idle++
			if idle >= opts.GracePolls {
				flush()
				return nil
			}
		}

	wait:
		for {
			select {
			case <-ctx.Done():
				flush()
				return ctx.Err()
			case <-exited:
				if !done {
					done = true
					idle = 0
				}
				// exited stays readable; fall back to the ticker from here on.
				exited = nil
				break wait
			case ev, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				if filepath.Clean(ev.Name) == target {
					break wait
				}
			case _, ok := <-watchErrs:
				if !ok {
					watchErrs = nil
				}
			case <-ticker.C:
				ticked = true
				break wait
			}
		}
	}
}
