package engine

import (
	"fmt"
	"time"
)

// minSamplesForEstimate is how many timed files are needed before an ETA is shown.
const minSamplesForEstimate = 4

// Progress tracks position and per-file timings within one run.
type Progress struct {
	total     int
	position  int
	durations []time.Duration
}

// NewProgress tracks a run of total files.
func NewProgress(total int) *Progress {
	return &Progress{total: total}
}

// Advance moves to the next file and returns its completion percentage.
func (p *Progress) Advance() int {
	p.position++
	if p.total <= 0 {
		return 100
	}

	return min(100, p.position*100/p.total)
}

// Observe records how long a file took.
func (p *Progress) Observe(d time.Duration) {
	p.durations = append(p.durations, d)
}

// Remaining returns the number of files left after the current one.
func (p *Progress) Remaining() int {
	return max(0, p.total-p.position)
}

// Estimate returns the expected time for the remaining files, once enough
// files have been timed.
func (p *Progress) Estimate() (time.Duration, bool) {
	if len(p.durations) < minSamplesForEstimate {
		return 0, false
	}

	var sum time.Duration
	for _, d := range p.durations {
		sum += d
	}
	avg := sum / time.Duration(len(p.durations))

	return avg * time.Duration(p.Remaining()), true
}

// FormatDuration renders d as "1h 2m 3s".
func FormatDuration(d time.Duration) string {
	total := int64(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}
