package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgress_Advance(t *testing.T) {
	t.Parallel()

	p := NewProgress(4)
	assert.Equal(t, 25, p.Advance())
	assert.Equal(t, 50, p.Advance())
	assert.Equal(t, 2, p.Remaining())

	empty := NewProgress(0)
	assert.Equal(t, 100, empty.Advance())
}

func TestProgress_Estimate(t *testing.T) {
	t.Parallel()

	p := NewProgress(10)
	for range 3 {
		p.Advance()
		p.Observe(2 * time.Second)
	}

	_, ok := p.Estimate()
	assert.False(t, ok, "three samples are not enough")

	p.Advance()
	p.Observe(6 * time.Second)

	eta, ok := p.Estimate()
	assert.True(t, ok)
	// Average 3s, six files left.
	assert.Equal(t, 18*time.Second, eta)
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0h 0m 0s", FormatDuration(0))
	assert.Equal(t, "0h 0m 59s", FormatDuration(59900*time.Millisecond))
	assert.Equal(t, "1h 2m 3s", FormatDuration(time.Hour+2*time.Minute+3*time.Second))
}
