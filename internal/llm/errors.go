package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrRequestRejected means the endpoint refused the request itself, for
// example because the model does not exist.
var ErrRequestRejected = errors.New("request rejected by the inference endpoint")

// statusError matches the error go-ollama returns for HTTP status >= 400.
var statusError = regexp.MustCompile(`status code: (\d{3})(?:, body: )?`)

// ConnectionError means the endpoint could not be reached or did not answer
// in time. It is fatal to a scan run.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("inference endpoint unavailable: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// MalformedResponseError means the endpoint answered but the answer is not
// usable. It only fails the current file.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed response: %s: %v", e.Reason, e.Err)
	}

	return "malformed response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// IsConnection reports whether err is a ConnectionError.
func IsConnection(err error) bool {
	var connErr *ConnectionError

	return errors.As(err, &connErr)
}

// IsMalformed reports whether err is a MalformedResponseError.
func IsMalformed(err error) bool {
	var malformed *MalformedResponseError

	return errors.As(err, &malformed)
}

// classify maps a transport error onto the client error taxonomy. Decoding
// errors and server-side (5xx) failures mean the server answered with
// something unusable for this request. A 4xx status is a rejected request,
// which retrying other files cannot fix. Everything else is treated as a
// connection failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if IsConnection(err) || IsMalformed(err) {
		return err
	}

	if code, body, ok := httpStatus(err); ok {
		if code >= 500 {
			return &MalformedResponseError{Reason: fmt.Sprintf("server error (HTTP %d): %s", code, body), Err: err}
		}
		return &ConnectionError{Err: fmt.Errorf("%w (HTTP %d): %s", ErrRequestRejected, code, body)}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &MalformedResponseError{Reason: "invalid JSON", Err: err}
	}

	return &ConnectionError{Err: err}
}

// httpStatus extracts the status code and server message from a go-ollama
// status error. The message is the "error" field of a JSON body when there
// is one.
func httpStatus(err error) (int, string, bool) {
	msg := err.Error()

	loc := statusError.FindStringSubmatchIndex(msg)
	if loc == nil {
		return 0, "", false
	}

	code, convErr := strconv.Atoi(msg[loc[2]:loc[3]])
	if convErr != nil {
		return 0, "", false
	}

	body := strings.TrimSpace(msg[loc[1]:])

	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(body), &payload) == nil && payload.Error != "" {
		body = payload.Error
	}

	return code, body, true
}
