package coordinator

// modelNotFoundError signals a task id absent from the model registry.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound constructs a modelNotFoundError.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether err indicates a missing model id.
func IsModelNotFound(err error) bool {
	_, ok := err.(modelNotFoundError)
	return ok
}

// notReadyError signals a generate call against a missing or still-loading
// worker handle. It is a fail-fast rejection with no side effect.
type notReadyError struct{ id string }

func (e notReadyError) Error() string { return "model not initialized: " + e.id }

// ErrNotReady constructs a notReadyError.
func ErrNotReady(id string) error { return notReadyError{id: id} }

// IsNotReady reports whether err indicates a generate-before-init rejection.
func IsNotReady(err error) bool {
	_, ok := err.(notReadyError)
	return ok
}

// busyError signals a second generation requested while one is in flight.
// The request is rejected immediately, never queued.
type busyError struct{ id string }

func (e busyError) Error() string { return "generation already in flight: " + e.id }

// ErrBusy constructs a busyError.
func ErrBusy(id string) error { return busyError{id: id} }

// IsBusy reports whether err indicates the one-generation-per-handle gate.
func IsBusy(err error) bool {
	_, ok := err.(busyError)
	return ok
}

// constructionError signals that the worker's engine binding could not be
// created. The registry is left clean.
type constructionError struct {
	id  string
	msg string
}

func (e constructionError) Error() string { return "worker construction for " + e.id + ": " + e.msg }

// ErrConstruction constructs a constructionError.
func ErrConstruction(id, msg string) error { return constructionError{id: id, msg: msg} }

// IsConstruction reports whether err indicates a worker construction failure.
func IsConstruction(err error) bool {
	_, ok := err.(constructionError)
	return ok
}

// loadFailedError signals an engine or model acquisition failure. The worker
// handle is discarded; retrying means a fresh InitModel.
type loadFailedError struct {
	id  string
	msg string
}

func (e loadFailedError) Error() string { return "load failed for " + e.id + ": " + e.msg }

// ErrLoadFailed constructs a loadFailedError.
func ErrLoadFailed(id, msg string) error { return loadFailedError{id: id, msg: msg} }

// IsLoadFailed reports whether err indicates a fatal load failure.
func IsLoadFailed(err error) bool {
	_, ok := err.(loadFailedError)
	return ok
}

// generationError signals an engine-level failure mid-stream. The worker
// returns to ready and remains usable.
type generationError struct {
	id  string
	msg string
}

func (e generationError) Error() string { return "generation failed for " + e.id + ": " + e.msg }

// ErrGeneration constructs a generationError.
func ErrGeneration(id, msg string) error { return generationError{id: id, msg: msg} }

// IsGeneration reports whether err indicates a recoverable generation failure.
func IsGeneration(err error) bool {
	_, ok := err.(generationError)
	return ok
}

// invalidRequestError signals a request that failed validation.
type invalidRequestError struct{ msg string }

func (e invalidRequestError) Error() string { return "invalid request: " + e.msg }

// ErrInvalidRequest constructs an invalidRequestError.
func ErrInvalidRequest(msg string) error { return invalidRequestError{msg: msg} }

// IsInvalidRequest reports whether err indicates request validation failure.
func IsInvalidRequest(err error) bool {
	_, ok := err.(invalidRequestError)
	return ok
}
