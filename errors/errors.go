package errors

import (
	"errors"
	"fmt"
	"runtime/debug"
)

var (
	// ErrDead is returned when the target process is not alive
	ErrDead = errors.New("process is not alive")
	// ErrTimeout is returned when a receive does not find a matching message in time
	ErrTimeout = errors.New("receive timed out")
	// ErrRequestTimeout is returned when a call gets no reply in time
	ErrRequestTimeout = errors.New("request timed out")
	// ErrSystemStopped is returned when the actor system has been shut down
	ErrSystemStopped = errors.New("actor system is stopped")
	// ErrInvalidName is returned when registering an empty name
	ErrInvalidName = errors.New("invalid process name")
	// ErrNameTaken is returned when the name is already registered to another process
	ErrNameTaken = errors.New("name is already registered")
	// ErrAlreadyRegistered is returned when the process already has a registered name
	ErrAlreadyRegistered = errors.New("process already has a registered name")
	// ErrNameNotFound is returned when no process is registered under the name
	ErrNameNotFound = errors.New("name is not registered")
	// ErrNotOwner is returned when a process tries to act on another process private data
	ErrNotOwner = errors.New("caller is not the owner")

	// ErrInvalidOptions is returned when the supervisor options are not valid
	ErrInvalidOptions = errors.New("invalid supervisor options")
	// ErrInvalidChildSpec is returned when a child spec is not valid
	ErrInvalidChildSpec = errors.New("invalid child spec")
	// ErrChildNotFound is returned when the supervisor has no child with the given id
	ErrChildNotFound = errors.New("child not found")
	// ErrChildExists is returned when starting a child with an id already in use
	ErrChildExists = errors.New("child already exists")
	// ErrChildRunning is returned when the operation requires a terminated child
	ErrChildRunning = errors.New("child is running")
	// ErrStartChild is returned when a child start function fails
	ErrStartChild = errors.New("failed to start child")
	// ErrMaxRestartsReached is the crash detail of a supervisor that exceeded its restart intensity
	ErrMaxRestartsReached = errors.New("supervisor reached max restart intensity")

	// ErrTableNotFound is returned when the table does not exist
	ErrTableNotFound = errors.New("table not found")
	// ErrTableAccess is returned when the caller is not allowed to access the table
	ErrTableAccess = errors.New("table access denied")
)

// PanicError carries a value recovered from a process body together with the stack
// at the point of recovery
type PanicError struct {
	value any
	stack []byte
}

// NewPanicError wraps a recovered value. Must be called from the deferred recover
// so that the captured stack includes the faulting frame.
func NewPanicError(value any) *PanicError {
	return &PanicError{
		value: value,
		stack: debug.Stack(),
	}
}

// Error implements error
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// Value returns the value passed to panic
func (e *PanicError) Value() any {
	return e.value
}

// Stack returns the goroutine stack captured when the panic was recovered
func (e *PanicError) Stack() []byte {
	return e.stack
}

// Unwrap returns the panic value when it is an error
func (e *PanicError) Unwrap() error {
	if err, ok := e.value.(error); ok {
		return err
	}
	return nil
}
