// Package errdefs defines the error types shared across the browser engine.
package errdefs

import "fmt"

// AttachmentError reports that a debugger attachment failed or that an
// operation required an attached session and found none.
type AttachmentError struct {
	TargetID string
	State    string
	Reason   string
}

func (e *AttachmentError) Error() string {
	switch {
	case e.Reason != "":
		return fmt.Sprintf("target %s: attach failed: %s", e.TargetID, e.Reason)
	case e.State != "":
		return fmt.Sprintf("target %s: debugger not attached (state %s)", e.TargetID, e.State)
	default:
		return fmt.Sprintf("target %s: debugger not attached", e.TargetID)
	}
}

// ProtocolError reports a failed devtools command.
type ProtocolError struct {
	Method  string
	Code    int64
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (code %d)", e.Method, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Method, e.Message)
}

// EvaluationError carries the exception text of a script that threw.
type EvaluationError struct {
	Text string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("script evaluation failed: %s", e.Text)
}

// ElementNotFoundError reports that a selector matched nothing.
type ElementNotFoundError struct {
	Selector string
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element not found: %s", e.Selector)
}

// TimeoutError reports an operation that hit its deadline. The message is
// the full user-facing text; callers set it (navigation waits use
// "Navigation timeout", bridge calls name the action that expired).
type TimeoutError struct {
	Message string
}

func (e *TimeoutError) Error() string {
	return e.Message
}

// ConnectionError reports that no browser client is reachable, or that
// talking to it failed.
type ConnectionError struct {
	Message string
}

func (e *ConnectionError) Error() string {
	return e.Message
}
