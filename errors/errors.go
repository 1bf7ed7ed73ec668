package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which allocator operation produced the error
type Phase string

const (
	PhaseLayout  Phase = "layout"  // layout construction
	PhaseAlloc   Phase = "alloc"   // alloc / alloc_zeroed
	PhaseRealloc Phase = "realloc" // grow or shrink
	PhaseDealloc Phase = "dealloc" // release
	PhaseBuild   Phase = "build"   // handle construction
	PhaseConfig  Phase = "config"  // backend / script configuration
)

// Kind categorizes the error
type Kind string

const (
	KindExhausted     Kind = "exhausted"
	KindInvalidLayout Kind = "invalid_layout"
	KindUnsupported   Kind = "unsupported"
	KindOutOfBounds   Kind = "out_of_bounds"
	KindInvalidInput  Kind = "invalid_input"
	KindNotFound      Kind = "not_found"
	KindAllocation    Kind = "allocation"
)

// Sentinels for errors.Is checks that only care about the kind.
var (
	ErrExhausted     = &Error{Kind: KindExhausted}
	ErrInvalidLayout = &Error{Kind: KindInvalidLayout}
	ErrUnsupported   = &Error{Kind: KindUnsupported}
)

// Error is the structured error type returned by allocators in this module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Size   uint64
	Align  uint64
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Size != 0 || e.Align != 0 {
		fmt.Fprintf(&b, " (size %d, align %d)", e.Size, e.Align)
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

// Is reports whether target matches this error. A target without a phase
// matches any phase.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	return e.Kind == t.Kind
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

// Layout records the size and alignment of the failing request
func (b *Builder) Layout(size, align uint64) *Builder {
	b.err.Size = size
	b.err.Align = align
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

// Exhausted reports that a backing region cannot satisfy a request
func Exhausted(phase Phase, size, align uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindExhausted,
		Size:   size,
		Align:  align,
		Detail: fmt.Sprintf("cannot allocate %d bytes", size),
	}
}

// InvalidLayout creates a layout construction error
func InvalidLayout(detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  PhaseLayout,
		Kind:   KindInvalidLayout,
		Detail: detail,
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

// OutOfBounds reports an access outside a memory region
func OutOfBounds(phase Phase, offset, length uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("offset %d length %d out of bounds", offset, length),
		Value:  offset,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
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

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
