// Package ratelimit implements the sliding-window message limiter used by
// the relay read loop.
package ratelimit

import (
	"sync"
	"time"
)

// Window is a sliding log of arrival times. Entries older than the window
// length are dropped from the front on every call, so the log must stay
// ordered by time.
type Window struct {
	mu     sync.Mutex
	limit  int
	length time.Duration
	times  []time.Time
	head   int
	clock  func() time.Time
}

// NewWindow returns a window accepting limit arrivals per length.
func NewWindow(limit int, length time.Duration) *Window {
	return &Window{limit: limit, length: length, clock: time.Now}
}

// Take records an arrival now. The clock is read under the window lock, so
// concurrent callers sharing one window append in order.
func (w *Window) Take() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.allowLocked(w.clock())
}

// Allow records an arrival at now and reports whether the number of
// arrivals inside the window is still within the limit. An arrival older
// than the newest recorded one is recorded at the newest time.
func (w *Window) Allow(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.allowLocked(now)
}

func (w *Window) allowLocked(now time.Time) bool {
	if n := len(w.times); n > w.head && now.Before(w.times[n-1]) {
		now = w.times[n-1]
	}
	w.times = append(w.times, now)
	for w.head < len(w.times) && now.Sub(w.times[w.head]) > w.length {
		w.head++
	}
	// Keep at most limit+1 live entries; anything beyond that already
	// exceeds the limit and would only grow the log.
	if n := len(w.times) - w.head; n > w.limit+1 {
		w.head += n - (w.limit + 1)
	}
	if w.head > 0 && w.head >= len(w.times)/2 {
		w.times = append(w.times[:0], w.times[w.head:]...)
		w.head = 0
	}
	return len(w.times)-w.head <= w.limit
}

// Len returns the number of arrivals currently inside the window.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.times) - w.head
}
