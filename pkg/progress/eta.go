// Package progress prints a single, continuously rewritten progress line
// with an estimate of the remaining time.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// clearLine returns the cursor to the start of the line and erases it.
const clearLine = "\r\033[K"

// ETA tracks completed work against a known total.
type ETA struct {
	mu    sync.Mutex
	out   io.Writer
	total int64
	count int64
	start time.Time
	last  time.Time
	now   func() time.Time
}

// Option configures an ETA.
type Option func(*ETA)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *ETA) {
		e.now = now
	}
}

// New returns an ETA for total units of work, printing to out.
func New(out io.Writer, total int64, opts ...Option) *ETA {
	e := &ETA{
		out:   out,
		total: total,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start resets the counter and the clock.
func (e *ETA) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.count = 0
	e.start = e.now()
	e.last = time.Time{}
}

// Increment records n more completed units.
func (e *ETA) Increment(n int64) {
	e.mu.Lock()
	e.count += n
	e.mu.Unlock()
}

// Count returns the completed units so far.
func (e *ETA) Count() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

// Estimate redraws the progress line. It prints at most once per second
// and not at all before the first unit completes.
func (e *ETA) Estimate() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if !e.last.IsZero() && now.Sub(e.last) < time.Second {
		return
	}
	if e.count <= 0 {
		return
	}
	e.last = now

	elapsed := now.Sub(e.start)
	todo := max(e.total-e.count, 0)
	eta := time.Duration(float64(elapsed) * float64(todo) / float64(e.count))

	var msg string
	switch {
	case eta < time.Minute:
		msg = fmt.Sprintf("%02ds", int(eta.Seconds()))
	case eta < time.Hour:
		m, s := splitMinutes(eta)
		msg = fmt.Sprintf("%02dm %02ds", m, s)
	default:
		msg = "ETA: " + now.Add(eta).Local().Format("2006-Jan-02 15:04:05")
	}

	fmt.Fprintf(e.out, "%s[%3d%%] %s", clearLine, e.percent(), msg)
}

// Finish replaces the progress line with the elapsed time.
func (e *ETA) Finish() {
	e.mu.Lock()
	defer e.mu.Unlock()

	elapsed := e.now().Sub(e.start)
	fmt.Fprintf(e.out, "%s[%3d%%] Elapsed: %s\n", clearLine, e.percent(), FormatElapsed(elapsed))
}

func (e *ETA) percent() int64 {
	if e.total <= 0 {
		return 100
	}
	return min(100*e.count/e.total, 100)
}

// FormatElapsed renders d as "05s", "02m 05s" or "01h 02m 05s".
func FormatElapsed(d time.Duration) string {
	total := int64(d / time.Second)
	h, rest := total/3600, total%3600
	m, s := rest/60, rest%60

	switch {
	case h > 0:
		return fmt.Sprintf("%02dh %02dm %02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%02dm %02ds", m, s)
	default:
		return fmt.Sprintf("%02ds", s)
	}
}

func splitMinutes(d time.Duration) (int64, int64) {
	total := int64(d / time.Second)
	return total / 60, total % 60
}
