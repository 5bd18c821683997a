package tui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// StatusWriter renders a single spinner line for one conversion: the
// current phase, its elapsed time and the latest editor log line.
type StatusWriter struct {
	w          io.Writer
	mu         sync.Mutex
	phase      string
	detail     string
	phaseStart time.Time
	done       chan struct{}
	stopped    bool
}

// NewStatusWriter starts a background spinner that redraws every 100ms.
func NewStatusWriter(w io.Writer) *StatusWriter {
	sw := &StatusWriter{
		w:          w,
		phaseStart: time.Now(),
		done:       make(chan struct{}),
	}
	go sw.loop()
	return sw
}

// SetPhase changes the phase text and restarts the elapsed timer.
func (sw *StatusWriter) SetPhase(phase string) {
	sw.mu.Lock()
	if phase != sw.phase {
		sw.phase = phase
		sw.detail = ""
		sw.phaseStart = time.Now()
	}
	sw.mu.Unlock()
}

// SetDetail shows line next to the phase.
func (sw *StatusWriter) SetDetail(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	sw.mu.Lock()
	sw.detail = line
	sw.mu.Unlock()
}

// Stop clears the status line and stops the spinner.
func (sw *StatusWriter) Stop() {
	sw.mu.Lock()
	if sw.stopped {
		sw.mu.Unlock()
		return
	}
	sw.stopped = true
	sw.mu.Unlock()
	close(sw.done)
	fmt.Fprintf(sw.w, "\r\033[K")
}

func (sw *StatusWriter) line(tick int) string {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	spinner := spinnerFrames[tick%len(spinnerFrames)]
	text := fmt.Sprintf("%s %s (%s)", spinner, sw.phase, formatElapsed(time.Since(sw.phaseStart)))
	if sw.detail != "" {
		text += " " + faintStyle.Render(TruncateWithEllipsis(sw.detail, detailWidth))
	}
	return text
}

func (sw *StatusWriter) loop() {
	tick := 0
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sw.done:
			return
		case <-ticker.C:
			// Stop may have cleared the line between the tick and this write.
			sw.mu.Lock()
			stopped := sw.stopped
			sw.mu.Unlock()
			if stopped {
				return
			}
			fmt.Fprintf(sw.w, "\r\033[K%s", sw.line(tick))
			tick++
		}
	}
}

// formatElapsed formats a duration for display.
func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < 10*time.Second {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
