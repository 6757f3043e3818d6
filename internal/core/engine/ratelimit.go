package engine

import (
	"fmt"
	"sync"
	"time"

	apperrors "github.com/namelens/draftprune/internal/errors"
)

// DefaultWindow is the trailing interval the call ceiling applies to.
const DefaultWindow = time.Minute

// Limiter gates outbound calls. Acquire blocks until another call may be issued.
type Limiter interface {
	Acquire()
}

// SlidingWindow allows at most MaxCalls acquisitions in any trailing Window.
// It keeps one timestamp per acquisition, oldest first.
type SlidingWindow struct {
	mu       sync.Mutex
	maxCalls int
	window   time.Duration
	records  []time.Time

	Clock func() time.Time
	Sleep func(time.Duration)
}

// NewSlidingWindow builds a limiter for maxCalls per window.
// A non-positive ceiling would block forever and is rejected.
func NewSlidingWindow(maxCalls int, window time.Duration) (*SlidingWindow, error) {
	if maxCalls <= 0 {
		return nil, apperrors.NewConfigInvalidError(fmt.Sprintf("rate limit must be positive, got %d", maxCalls))
	}
	if window <= 0 {
		return nil, apperrors.NewConfigInvalidError(fmt.Sprintf("rate limit window must be positive, got %s", window))
	}
	return &SlidingWindow{
		maxCalls: maxCalls,
		window:   window,
		records:  make([]time.Time, 0, maxCalls),
	}, nil
}

// Acquire blocks until a call fits under the ceiling, then records it.
func (w *SlidingWindow) Acquire() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for {
		now := w.now()
		w.purge(now)
		if len(w.records) < w.maxCalls {
			w.records = append(w.records, now)
			return
		}

		// Wait for the oldest record to age out, then re-evaluate.
		wait := w.records[0].Add(w.window).Sub(now)
		if wait > 0 {
			w.sleep(wait)
		}
	}
}

// Wait reports how long Acquire would currently block.
func (w *SlidingWindow) Wait() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.purge(now)
	if len(w.records) < w.maxCalls {
		return 0
	}
	wait := w.records[0].Add(w.window).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Len returns the number of acquisitions still inside the window.
func (w *SlidingWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.purge(w.now())
	return len(w.records)
}

// MaxCalls returns the configured ceiling.
func (w *SlidingWindow) MaxCalls() int {
	return w.maxCalls
}

// Window returns the configured trailing interval.
func (w *SlidingWindow) Window() time.Duration {
	return w.window
}

// purge drops records whose age has reached the window. Records are sorted,
// so expired ones are always a prefix.
func (w *SlidingWindow) purge(now time.Time) {
	cutoff := now.Add(-w.window)
	idx := 0
	for idx < len(w.records) && !w.records[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return
	}
	w.records = append(w.records[:0], w.records[idx:]...)
}

func (w *SlidingWindow) now() time.Time {
	if w.Clock != nil {
		return w.Clock()
	}
	return time.Now().UTC()
}

func (w *SlidingWindow) sleep(d time.Duration) {
	if w.Sleep != nil {
		w.Sleep(d)
		return
	}
	time.Sleep(d)
}
