// Package errors defines the error taxonomy for the exchange conversation.
// The split matters operationally: build and rejection errors carry
// field-level detail for the submitter, transport and parse errors carry a
// reference to the raw payload for the operator, and none of them are
// auto-retried anywhere in the app.
package errors

import "fmt"

// BuildError reports input that is missing a field the exchange mandates. It
// is surfaced to the caller before any network call is made. Fields with
// monetary or legal significance are never silently defaulted.
type BuildError struct {
	Resource string
	Field    string
	Msg      string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("cannot build %s: field %s: %s", e.Resource, e.Field, e.Msg)
}

// TransportError reports a network failure, timeout, or remote 5xx. It is
// retriable, but retries are user-initiated: the exchange offers no
// idempotency guarantee against duplicate submission.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure talking to the exchange: %s", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteRejectionError reports that the exchange accepted the transport but
// rejected the content. Code and Message are the remote's own diagnostics.
type RemoteRejectionError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RemoteRejectionError) Error() string {
	return fmt.Sprintf("exchange rejected the message (http %d, code %s): %s",
		e.StatusCode, e.Code, e.Message)
}

// MatchingAmbiguityError reports an inbound adjudication that did not match
// any open submission. Not fatal: poll batches are shared across submissions,
// so the offender is recorded as a diagnostic and discarded.
type MatchingAmbiguityError struct {
	System string
	Value  string
}

func (e *MatchingAmbiguityError) Error() string {
	return fmt.Sprintf("inbound response answers identifier %s|%s which matches no open submission",
		e.System, e.Value)
}

// ParseError reports a structurally malformed inbound envelope. It is
// isolated to the one offending message and never aborts the batch.
type ParseError struct {
	Err error
	Raw []byte
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed inbound envelope: %s", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
