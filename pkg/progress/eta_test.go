package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func setupTestETA(t *testing.T, total int64) (*ETA, *testClock, *bytes.Buffer) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, time.October, 19, 12, 0, 0, 0, time.Local)}
	var buf bytes.Buffer
	eta := New(&buf, total, WithClock(clock.Now))
	eta.Start()
	return eta, clock, &buf
}

func TestETA_Estimate(t *testing.T) {
	tests := []struct {
		name    string
		total   int64
		done    int64
		elapsed time.Duration
		want    string
	}{
		{name: "seconds", total: 100, done: 50, elapsed: 10 * time.Second, want: "\r\033[K[ 50%] 10s"},
		{name: "padded seconds", total: 100, done: 90, elapsed: 9 * time.Second, want: "\r\033[K[ 90%] 01s"},
		{name: "minutes", total: 100, done: 10, elapsed: 20 * time.Second, want: "\r\033[K[ 10%] 03m 00s"},
		{name: "wall clock", total: 100, done: 1, elapsed: time.Minute, want: "\r\033[K[  1%] ETA: 2026-Oct-19 13:40:00"},
		{name: "complete", total: 4, done: 4, elapsed: time.Second, want: "\r\033[K[100%] 00s"},
		{name: "zero total", total: 0, done: 3, elapsed: time.Second, want: "\r\033[K[100%] 00s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eta, clock, buf := setupTestETA(t, tt.total)
			clock.advance(tt.elapsed)
			eta.Increment(tt.done)
			eta.Estimate()
			if got := buf.String(); got != tt.want {
				t.Errorf("Estimate printed %q, want %q", got, tt.want)
			}
		})
	}
}

func TestETA_RateLimit(t *testing.T) {
	eta, clock, buf := setupTestETA(t, 10)

	eta.Estimate()
	if buf.Len() != 0 {
		t.Fatalf("printed before any work completed: %q", buf.String())
	}

	clock.advance(time.Second)
	eta.Increment(1)
	eta.Estimate()
	eta.Increment(1)
	clock.advance(500 * time.Millisecond)
	eta.Estimate()
	if n := strings.Count(buf.String(), "\r"); n != 1 {
		t.Errorf("expected one estimate within a second, got %d: %q", n, buf.String())
	}

	clock.advance(500 * time.Millisecond)
	eta.Estimate()
	if n := strings.Count(buf.String(), "\r"); n != 2 {
		t.Errorf("expected a second estimate after a second, got %d", n)
	}
}

func TestETA_Finish(t *testing.T) {
	eta, clock, buf := setupTestETA(t, 8)
	eta.Increment(2)
	clock.advance(time.Hour + 2*time.Minute + 5*time.Second)
	eta.Finish()

	want := "\r\033[K[ 25%] Elapsed: 01h 02m 05s\n"
	if got := buf.String(); got != want {
		t.Errorf("Finish printed %q, want %q", got, want)
	}
	if eta.Count() != 2 {
		t.Errorf("Count() = %d, want 2", eta.Count())
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00s"},
		{5 * time.Second, "05s"},
		{59*time.Second + 900*time.Millisecond, "59s"},
		{2*time.Minute + 5*time.Second, "02m 05s"},
		{3 * time.Hour, "03h 00m 00s"},
		{27*time.Hour + 61*time.Second, "27h 01m 01s"},
	}
	for _, tt := range tests {
		if got := FormatElapsed(tt.in); got != tt.want {
			t.Errorf("FormatElapsed(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
