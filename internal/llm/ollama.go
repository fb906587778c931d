package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JexSrs/go-ollama"
	"github.com/sirupsen/logrus"
)

// OllamaClient is a Client backed by the Ollama generate API.
type OllamaClient struct {
	client  *ollama.Ollama
	host    string
	timeout time.Duration
}

// NewOllamaClient creates a new client for the Ollama server at host.
func NewOllamaClient(host string, timeout time.Duration) (*OllamaClient, error) {
	ollamaURL, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	logrus.Infof("Using Ollama client for host: %s", host)

	client := ollama.New(*ollamaURL)
	// The library builds requests without a context, so the HTTP timeout is
	// what ends a request the server is still working on.
	client.Http = &http.Client{Timeout: timeout}

	return &OllamaClient{
		client:  client,
		host:    host,
		timeout: timeout,
	}, nil
}

type generateResult struct {
	text string
	done bool
	err  error
}

// Generate sends req through the Ollama Generate function. The client
// timeout bounds the HTTP request; cancelling ctx stops waiting for it.
// Both are reported as a ConnectionError.
func (oc *OllamaClient) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ConnectionError{Err: err}
	}

	logrus.Debugf("Sending prompt of %d characters to Ollama model %s", len(req.Prompt), req.Model)

	results := make(chan generateResult, 1)
	go func() {
		// The library's response splitter panics on some malformed bodies.
		defer func() {
			if r := recover(); r != nil {
				results <- generateResult{err: &MalformedResponseError{Reason: fmt.Sprint("unparseable response: ", r)}}
			}
		}()

		res, err := oc.client.Generate(
			oc.client.Generate.WithModel(req.Model),
			oc.client.Generate.WithSystem(req.System),
			oc.client.Generate.WithPrompt(req.Prompt),
		)
		if err != nil {
			results <- generateResult{err: err}
			return
		}
		results <- generateResult{text: res.Response, done: res.Done}
	}()

	select {
	case <-ctx.Done():
		return "", &ConnectionError{Err: ctx.Err()}
	case res := <-results:
		return oc.interpret(res)
	}
}

func (oc *OllamaClient) interpret(res generateResult) (string, error) {
	if res.err != nil {
		var netErr net.Error
		if errors.As(res.err, &netErr) && netErr.Timeout() {
			return "", &ConnectionError{Err: fmt.Errorf("no answer from %s within %s: %w", oc.host, oc.timeout, res.err)}
		}
		return "", classify(fmt.Errorf("error calling the Ollama Generate API: %w", res.err))
	}

	if !res.done {
		return "", &MalformedResponseError{Reason: "request not marked done (unexpected streaming behaviour)"}
	}

	text := CleanResponse(res.text)
	if text == "" {
		return "", &MalformedResponseError{Reason: "response field is empty"}
	}

	logrus.Debug("Response received from Ollama.")

	return text, nil
}

// CleanResponse strips surrounding whitespace and the ``` fences models
// sometimes wrap their whole answer in.
func CleanResponse(text string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(text), "`"))
}
