package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *OllamaClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewOllamaClient(server.URL, timeout)
	require.NoError(t, err)

	return client
}

func reply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

var testRequest = Request{Model: "llama3", System: "be terse", Prompt: "Analyze a.py"}

func TestOllamaClient_Generate(t *testing.T) {
	t.Parallel()

	var received map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		reply(http.StatusOK, `{"model":"llama3","response":"Parses flags.","done":true}`)(w, r)
	}, time.Second)

	text, err := client.Generate(context.Background(), testRequest)
	require.NoError(t, err)

	assert.Equal(t, "Parses flags.", text)
	assert.Equal(t, "llama3", received["model"])
	assert.Equal(t, "be terse", received["system"])
	assert.Equal(t, "Analyze a.py", received["prompt"])
	assert.Equal(t, false, received["stream"])
}

func TestOllamaClient_UnusableResponses(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "missing response field", status: http.StatusOK, body: `{"model":"llama3","done":true}`, message: "empty"},
		{name: "not done", status: http.StatusOK, body: `{"response":"part","done":false}`, message: "not marked done"},
		{name: "unbalanced body", status: http.StatusOK, body: `oops}`, message: "unparseable response"},
		{name: "invalid json", status: http.StatusOK, body: `{not json}`, message: "invalid JSON"},
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"model runner crashed"}`, message: "model runner crashed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, reply(tc.status, tc.body), time.Second)

			_, err := client.Generate(context.Background(), testRequest)
			require.Error(t, err)

			assert.True(t, IsMalformed(err), "got %v", err)
			assert.False(t, IsConnection(err))
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestOllamaClient_ModelNotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, reply(http.StatusNotFound, `{"error":"model \"nope\" not found, try pulling it first"}`), time.Second)

	_, err := client.Generate(context.Background(), testRequest)

	assert.True(t, IsConnection(err))
	assert.ErrorIs(t, err, ErrRequestRejected)
	assert.Contains(t, err.Error(), "try pulling it first")
}

func TestOllamaClient_TimeoutEndsRequest(t *testing.T) {
	t.Parallel()

	abandoned := make(chan struct{}, 1)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// The server notices a closed connection only once the body is consumed.
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
			abandoned <- struct{}{}
		case <-time.After(5 * time.Second):
			reply(http.StatusOK, `{"response":"late","done":true}`)(w, r)
		}
	}, 100*time.Millisecond)

	started := time.Now()
	_, err := client.Generate(context.Background(), testRequest)

	assert.True(t, IsConnection(err))
	assert.Contains(t, err.Error(), "no answer from")
	assert.Less(t, time.Since(started), 2*time.Second)

	select {
	case <-abandoned:
	case <-time.After(2 * time.Second):
		t.Fatal("server request was still running after the client timeout")
	}
}

func TestOllamaClient_Cancelled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	client := newTestClient(t, func(_ http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}, 5*time.Second)
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Generate(ctx, testRequest)

	assert.True(t, IsConnection(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOllamaClient_Unreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(reply(http.StatusOK, `{}`))
	url := server.URL
	server.Close()

	client, err := NewOllamaClient(url, time.Second)
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), testRequest)

	assert.True(t, IsConnection(err))
	assert.False(t, errors.Is(err, ErrRequestRejected))
}
