package engine

// unavailableError signals that the engine runtime is not present in this
// build or refused to initialize.
type unavailableError struct{ msg string }

func (e unavailableError) Error() string { return e.msg }

// ErrUnavailable constructs an unavailableError.
func ErrUnavailable(msg string) error { return unavailableError{msg: msg} }

// IsUnavailable reports whether err indicates a missing/failed engine runtime.
func IsUnavailable(err error) bool {
	_, ok := err.(unavailableError)
	return ok
}
