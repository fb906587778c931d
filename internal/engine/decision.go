package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Decision is the operator's answer when a checkpoint already exists.
type Decision int

const (
	// Resume continues from the checkpoint.
	Resume Decision = iota
	// Restart discards the checkpoint and starts over.
	Restart
)

func (d Decision) String() string {
	if d == Restart {
		return "restart"
	}

	return "resume"
}

// ResumeInfo describes the checkpoint the operator is asked about.
type ResumeInfo struct {
	RootPath  string
	Processed int
	Model     string
	UpdatedAt time.Time
}

// Decider chooses between resuming and restarting.
type Decider interface {
	Decide(ctx context.Context, info ResumeInfo) (Decision, error)
}

// FixedDecider always returns the same decision.
type FixedDecider Decision

// Decide implements Decider.
func (f FixedDecider) Decide(context.Context, ResumeInfo) (Decision, error) {
	return Decision(f), nil
}

// ConsoleDecider asks on a terminal. "n" or "no" (any case) restarts;
// any other answer, including end of input, resumes.
type ConsoleDecider struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsoleDecider reads answers from in and writes the question to out.
func NewConsoleDecider(in io.Reader, out io.Writer) *ConsoleDecider {
	br, ok := in.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(in)
	}

	return &ConsoleDecider{in: br, out: out}
}

// Decide implements Decider.
func (c *ConsoleDecider) Decide(ctx context.Context, info ResumeInfo) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Resume, err
	}

	updated := "at an unknown time"
	if !info.UpdatedAt.IsZero() {
		updated = humanize.Time(info.UpdatedAt)
	}

	fmt.Fprintf(c.out, "A previous analysis state was found for %s (%d files analysed with %s, last saved %s).\n",
		info.RootPath, info.Processed, info.Model, updated)
	fmt.Fprint(c.out, "Do you want to resume? (yes/no): ")

	type answer struct {
		line string
		err  error
	}
	answers := make(chan answer, 1)
	go func() {
		line, err := c.in.ReadString('\n')
		answers <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(c.out)
		return Resume, ctx.Err()
	case a := <-answers:
		if a.err != nil && !errors.Is(a.err, io.EOF) {
			return Resume, fmt.Errorf("read answer: %w", a.err)
		}
		return ParseAnswer(a.line), nil
	}
}

// ParseAnswer maps a typed answer onto a Decision.
func ParseAnswer(answer string) Decision {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "n", "no":
		return Restart
	default:
		return Resume
	}
}
