package supervisor

import (
	"fmt"
	"time"
)

// timeoutError signals the inactivity watchdog aborted a generation. It is
// distinguishable from a user-initiated stop and from generic failures.
type timeoutError struct {
	id     string
	window time.Duration
}

func (e timeoutError) Error() string {
	return fmt.Sprintf("generation timed out for %s: no token within %s", e.id, e.window)
}

// ErrTimeout constructs a timeoutError.
func ErrTimeout(id string, window time.Duration) error { return timeoutError{id: id, window: window} }

// IsTimeout reports whether err indicates a watchdog abort.
func IsTimeout(err error) bool {
	_, ok := err.(timeoutError)
	return ok
}

// repetitionError signals the repetition guard aborted a generation.
type repetitionError struct{ id string }

func (e repetitionError) Error() string {
	return "generation aborted for " + e.id + ": degenerate repetition detected"
}

// ErrRepetition constructs a repetitionError.
func ErrRepetition(id string) error { return repetitionError{id: id} }

// IsRepetition reports whether err indicates a repetition-guard abort.
func IsRepetition(err error) bool {
	_, ok := err.(repetitionError)
	return ok
}
