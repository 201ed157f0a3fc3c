package postgrest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is an error returned by PostgREST or by a database procedure.
//
// Procedures may raise errors whose message is itself a JSON object (a
// validation report, for instance). The message is decoded once, when the
// Error is built, and the result is exposed as Payload. Callers never need
// to parse Message themselves.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`

	// Payload holds the decoded message when Message is a JSON object.
	Payload map[string]any `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("postgrest")
	if e.Status != 0 {
		fmt.Fprintf(&b, " %d", e.Status)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Details != "" {
		fmt.Fprintf(&b, " (%s)", e.Details)
	}
	return b.String()
}

// Structured reports whether the message decoded to a payload.
func (e *Error) Structured() bool {
	return e.Payload != nil
}

// NewError builds an Error with the given code and message, decoding the
// message payload if it is a JSON object.
func NewError(status int, code, message string) *Error {
	e := &Error{Status: status, Code: code, Message: message}
	e.decodePayload()
	return e
}

// ParseError builds an Error from an HTTP error response body.
// Bodies that are not PostgREST error objects become the message.
func ParseError(status int, body []byte) *Error {
	e := &Error{}
	if err := json.Unmarshal(body, e); err != nil || e.Message == "" && e.Code == "" {
		e = &Error{Message: strings.TrimSpace(string(body))}
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
	}
	e.Status = status
	e.decodePayload()
	return e
}

func (e *Error) decodePayload() {
	msg := strings.TrimSpace(e.Message)
	if !strings.HasPrefix(msg, "{") {
		return
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(msg), &payload); err != nil {
		return
	}
	e.Payload = payload
}

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var pgErr *Error
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
