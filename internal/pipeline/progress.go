package pipeline

import (
	"time"
)

// progress tracks per-source fetch throughput so log lines can carry a
// running total and an estimated time remaining.
type progress struct {
	start    time.Time
	now      func() time.Time
	requests int
}

func newProgress(now func() time.Time) *progress {
	if now == nil {
		now = time.Now
	}
	return &progress{start: now(), now: now}
}

func (p *progress) tick() {
	p.requests++
}

// rate returns requests per second since the tracker started.
func (p *progress) rate() float64 {
	elapsed := p.now().Sub(p.start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(p.requests) / elapsed
}

// eta estimates the remaining duration from completed and total unit counts.
// Zero when no estimate is possible yet.
func (p *progress) eta(done, total int) time.Duration {
	r := p.rate()
	if total <= 0 || done <= 0 || r <= 0 {
		return 0
	}
	remaining := total - done
	if remaining < 0 {
		remaining = 0
	}
	perUnit := p.now().Sub(p.start) / time.Duration(done)
	return perUnit * time.Duration(remaining)
}
