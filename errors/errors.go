package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which operation was running when the error occurred
type Phase string

const (
	PhaseInit     Phase = "init"     // runtime setup
	PhaseBind     Phase = "bind"     // address reservation
	PhaseListen   Phase = "listen"   // listener creation
	PhaseAccept   Phase = "accept"   // accept loop
	PhaseConnect  Phase = "connect"  // outgoing connection
	PhaseRead     Phase = "read"     // read loop
	PhaseWrite    Phase = "write"    // write pipeline
	PhaseShutdown Phase = "shutdown" // half-close
	PhaseClose    Phase = "close"    // handle teardown
	PhaseSchedule Phase = "schedule" // tick queue and loop
	PhaseEncode   Phase = "encode"   // string write adapters
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidInput    Kind = "invalid_input"
	KindInvalidCallback Kind = "invalid_callback"
	KindInvalidState    Kind = "invalid_state"
	KindUnsupported     Kind = "unsupported"
	KindClosed          Kind = "closed"
	KindNotFound        Kind = "not_found"
	KindTaskPanic       Kind = "task_panic"
	KindNative          Kind = "native"
	KindLoopRunning     Kind = "loop_running"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Op     string
	Detail string
	Handle uint64
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}

	if e.Handle != 0 {
		fmt.Fprintf(&b, " (handle %d)", e.Handle)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Op sets the name of the failing operation
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Handle sets the async id of the handle involved
func (b *Builder) Handle(id uint64) *Builder {
	b.err.Handle = id
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidCallback creates an error for a missing or unusable completion callback
func InvalidCallback(phase Phase, op string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidCallback,
		Op:     op,
		Detail: "completion callback must not be nil",
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidState creates an error for an operation issued in the wrong lifecycle state
func InvalidState(phase Phase, op string, state fmt.Stringer) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidState,
		Op:     op,
		Detail: fmt.Sprintf("not allowed in state %s", state),
		Value:  state,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Closed creates an error for operations on a closed resource
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: what + " is closed",
	}
}

// TaskPanic wraps a value recovered from a scheduled task
func TaskPanic(value any) *Error {
	e := &Error{
		Phase:  PhaseSchedule,
		Kind:   KindTaskPanic,
		Detail: fmt.Sprintf("task panicked: %v", value),
		Value:  value,
	}
	if err, ok := value.(error); ok {
		e.Cause = err
	}
	return e
}

// Native wraps an error returned by the host transport
func Native(phase Phase, op string, cause error) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindNative,
		Op:    op,
		Cause: cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
