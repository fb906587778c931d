// Package qa runs the interactive question loop over a finished scan.
package qa

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// ExitCommand ends a session, compared case-insensitively.
const ExitCommand = "bye"

// Answerer answers one question given the analysis context.
type Answerer interface {
	Answer(ctx context.Context, contextSummary, question string) (string, error)
}

// Session is a read-eval-print loop. The context summary is fixed when the
// session is created.
type Session struct {
	answerer Answerer
	summary  string
	in       *bufio.Scanner
	out      io.Writer
}

// NewSession creates a session answering from summary.
func NewSession(answerer Answerer, summary string, in io.Reader, out io.Writer) *Session {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return &Session{answerer: answerer, summary: summary, in: scanner, out: out}
}

// Run loops until the exit command, end of input or cancellation. It returns
// the number of questions asked. Failed answers are reported and the loop
// continues.
func (s *Session) Run(ctx context.Context) (int, error) {
	asked := 0

	fmt.Fprintf(s.out, "\nAsk questions about the analysed code. Type '%s' to exit.\n", ExitCommand)

	for {
		if err := ctx.Err(); err != nil {
			return asked, err
		}

		fmt.Fprint(s.out, "Question: ")
		line, ok, err := s.readLine(ctx)
		if err != nil {
			return asked, err
		}
		if !ok {
			fmt.Fprintln(s.out)
			return asked, nil
		}

		question := strings.TrimSpace(line)
		if question == "" {
			continue
		}
		if strings.EqualFold(question, ExitCommand) {
			fmt.Fprintln(s.out, "Goodbye!")
			return asked, nil
		}

		asked++
		answer, err := s.answerer.Answer(ctx, s.summary, question)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return asked, err
			}
			logrus.WithField("question", question).Warnf("Question failed: %v", err)
			color.New(color.FgRed).Fprintf(s.out, "Could not get an answer: %v\n", err)
			continue
		}

		color.New(color.FgGreen, color.Bold).Fprintln(s.out, "Response:")
		fmt.Fprintln(s.out, answer)
	}
}

type scanResult struct {
	line string
	ok   bool
	err  error
}

// readLine waits for the next input line or for ctx to end. ok is false at
// end of input. A read abandoned on cancellation is left to finish on its
// own; the session must not be used afterwards.
func (s *Session) readLine(ctx context.Context) (string, bool, error) {
	results := make(chan scanResult, 1)
	go func() {
		if !s.in.Scan() {
			results <- scanResult{err: s.in.Err()}
			return
		}
		results <- scanResult{line: s.in.Text(), ok: true}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(s.out)
		return "", false, ctx.Err()
	case res := <-results:
		if res.err != nil {
			return "", false, fmt.Errorf("read question: %w", res.err)
		}
		return res.line, res.ok, nil
	}
}
