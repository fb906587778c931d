package llm

import (
	"context"
	"sync"
)

// StubReply is one scripted answer of a StubClient.
type StubReply struct {
	Text string
	Err  error
}

// StubClient is a deterministic Client for tests and dry runs. Replies are
// returned in order; once they run out, Fallback is used.
type StubClient struct {
	Replies  []StubReply
	Fallback func(req Request) (string, error)

	mu       sync.Mutex
	requests []Request
}

// Generate records req and returns the next scripted reply.
func (s *StubClient) Generate(ctx context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)

	if err := ctx.Err(); err != nil {
		return "", &ConnectionError{Err: err}
	}

	if len(s.Replies) > 0 {
		reply := s.Replies[0]
		s.Replies = s.Replies[1:]

		return reply.Text, reply.Err
	}

	if s.Fallback != nil {
		return s.Fallback(req)
	}

	return "ok", nil
}

// Requests returns a copy of every request received.
func (s *StubClient) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Request, len(s.requests))
	copy(out, s.requests)

	return out
}
