package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Retry describes a fixed-backoff retry budget.
type Retry struct {
	Attempts int
	Interval time.Duration
}

// DefaultRetry is used when callers pass a zero Retry.
var DefaultRetry = Retry{Attempts: 20, Interval: 500 * time.Millisecond}

func (r Retry) normalize() Retry {
	if r.Attempts <= 0 {
		r.Attempts = DefaultRetry.Attempts
	}
	if r.Interval <= 0 {
		r.Interval = DefaultRetry.Interval
	}
	return r
}

// WaitUnlocked blocks until path can be opened without a lock violation.
// Missing files are reported immediately.
func WaitUnlocked(ctx context.Context, path string, retry Retry) error {
	retry = retry.normalize()
	var lastErr error
	for attempt := 0; attempt < retry.Attempts; attempt++ {
		f, err := openExclusive(path)
		if err == nil {
			_ = f.Close()
			return nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return err
		}
		if !IsLockError(err) {
			return fmt.Errorf("open %s: %w", path, err)
		}
		lastErr = err
		if err := sleepCtx(ctx, retry.Interval); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s: %w after %d attempts: %v", path, ErrLocked, retry.Attempts, lastErr)
}

// ReadFileRange reads up to max bytes of path starting at offset, retrying
// lock violations. It returns the bytes read and the file size observed.
func ReadFileRange(ctx context.Context, path string, offset int64, max int, retry Retry) ([]byte, int64, error) {
	retry = retry.normalize()
	var lastErr error
	for attempt := 0; attempt < retry.Attempts; attempt++ {
		data, size, err := readRange(path, offset, max)
		if err == nil || !IsLockError(err) {
			return data, size, err
		}
		lastErr = err
		if err := sleepCtx(ctx, retry.Interval); err != nil {
			return nil, 0, err
		}
	}
	return nil, 0, fmt.Errorf("%s: %w: %v", path, ErrLocked, lastErr)
}

func readRange(path string, offset int64, max int) ([]byte, int64, error) {
	f, err := openShared(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}
	size := info.Size()
	if offset >= size {
		return nil, size, nil
	}
	n := size - offset
	if max > 0 && n > int64(max) {
		n = int64(max)
	}
	buf := make([]byte, n)
	read, err := f.ReadAt(buf, offset)
	if err != nil && read == 0 {
		return nil, size, err
	}
	return buf[:read], size, nil
}
