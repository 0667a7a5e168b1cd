package serving

import "fmt"

// unknownModelError signals a lookup miss for 404 mapping.
type unknownModelError struct{ id string }

func (e unknownModelError) Error() string { return "unknown model: " + e.id }

// ErrUnknownModel returns an error for a model id absent from the registry.
func ErrUnknownModel(id string) error { return unknownModelError{id: id} }

// IsUnknownModel reports whether err indicates a missing model id.
func IsUnknownModel(err error) bool {
	_, ok := err.(unknownModelError)
	return ok
}

// duplicateModelError signals a Register call for an id already present.
type duplicateModelError struct{ id string }

func (e duplicateModelError) Error() string { return "duplicate model: " + e.id }

// IsDuplicateModel reports whether err indicates a model id collision.
func IsDuplicateModel(err error) bool {
	_, ok := err.(duplicateModelError)
	return ok
}

// loadFailureError wraps a backend error raised while opening a model.
type loadFailureError struct {
	id  string
	err error
}

func (e loadFailureError) Error() string { return fmt.Sprintf("load %s: %v", e.id, e.err) }
func (e loadFailureError) Unwrap() error { return e.err }

// IsLoadFailure reports whether err indicates a model load failure.
func IsLoadFailure(err error) bool {
	_, ok := err.(loadFailureError)
	return ok
}

// shapeMismatchError signals a request tensor incompatible with the model
// signature (or with requests already queued for the model).
type shapeMismatchError struct {
	id   string
	want []int64
	got  []int64
}

func (e shapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch for %s: want %v, got %v", e.id, e.want, e.got)
}

// IsShapeMismatch reports whether err indicates an incompatible input shape.
func IsShapeMismatch(err error) bool {
	_, ok := err.(shapeMismatchError)
	return ok
}

// backpressureError signals admission rejection for 429 mapping.
type backpressureError struct {
	id     string
	reason string
}

func (e backpressureError) Error() string {
	return fmt.Sprintf("backpressure on %s: %s", e.id, e.reason)
}

// IsBackpressure reports whether err indicates an admission rejection.
func IsBackpressure(err error) bool {
	_, ok := err.(backpressureError)
	return ok
}

// overloadedError signals session-acquire timeout; the batch was discarded.
type overloadedError struct{ id string }

func (e overloadedError) Error() string { return "overloaded: no session for " + e.id }

// IsOverloaded reports whether err indicates a session-acquire timeout.
func IsOverloaded(err error) bool {
	_, ok := err.(overloadedError)
	return ok
}

// executionFailureError wraps the native error delivered to every member of a
// failed batch.
type executionFailureError struct {
	id  string
	err error
}

func (e executionFailureError) Error() string {
	return fmt.Sprintf("execution failed for %s: %v", e.id, e.err)
}
func (e executionFailureError) Unwrap() error { return e.err }

// IsExecutionFailure reports whether err indicates a native execution error.
func IsExecutionFailure(err error) bool {
	_, ok := err.(executionFailureError)
	return ok
}

// busyError signals Unregister attempted while sessions are leased.
type busyError struct {
	id     string
	active int
}

func (e busyError) Error() string {
	return fmt.Sprintf("model %s busy: %d active sessions", e.id, e.active)
}

// IsBusy reports whether err indicates an unregister attempt on an active model.
func IsBusy(err error) bool {
	_, ok := err.(busyError)
	return ok
}
