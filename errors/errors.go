package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseConfig  Phase = "config"  // run description parsing and validation
	PhaseLoad    Phase = "load"    // guest compilation
	PhaseHost    Phase = "host"    // host module construction
	PhaseStart   Phase = "start"   // lifecycle entry points
	PhaseBridge  Phase = "bridge"  // asyncify suspension protocol
	PhaseMemory  Phase = "memory"  // guest memory access
	PhaseFS      Phase = "fs"      // virtual filesystem seeding
	PhaseRuntime Phase = "runtime" // everything else at run time
)

// Kind categorizes the error
type Kind string

const (
	KindOutOfBounds    Kind = "out_of_bounds"
	KindInvalidData    Kind = "invalid_data"
	KindUnsupported    Kind = "unsupported"
	KindMissingExport  Kind = "missing_export"
	KindWrongType      Kind = "wrong_type"
	KindNotFound       Kind = "not_found"
	KindNotInitialized Kind = "not_initialized"
	KindAlreadyStarted Kind = "already_started"
	KindIllegalState   Kind = "illegal_state"
	KindInvalidInput   Kind = "invalid_input"
	KindRegistration   Kind = "registration"
	KindInstantiation  Kind = "instantiation"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Export string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Export != "" {
		b.WriteString(": export ")
		b.WriteString(e.Export)
	}

	if e.Detail != "" {
		if e.Export != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
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

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Export sets the guest export name
func (b *Builder) Export(name string) *Builder {
	b.err.Export = name
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

// OutOfBounds creates a guest memory fault error
func OutOfBounds(offset, length uint32) *Error {
	return &Error{
		Phase:  PhaseMemory,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("access at offset %d of %d bytes out of bounds", offset, length),
		Value:  offset,
	}
}

// MissingExport creates an error for a required guest export that is absent
func MissingExport(phase Phase, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMissingExport,
		Export: name,
		Detail: "not exported by guest",
	}
}

// WrongType creates an error for a guest export with an unexpected signature
func WrongType(phase Phase, name, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindWrongType,
		Export: name,
		Detail: detail,
	}
}

// AlreadyStarted creates an error for a second lifecycle entry
func AlreadyStarted(entry string) *Error {
	return &Error{
		Phase:  PhaseStart,
		Kind:   KindAlreadyStarted,
		Export: entry,
		Detail: "instance already started",
	}
}

// IllegalState creates a suspension protocol violation error
func IllegalState(op string, expected, actual any) *Error {
	return &Error{
		Phase:  PhaseBridge,
		Kind:   KindIllegalState,
		Detail: fmt.Sprintf("%s: expected state %v, got %v", op, expected, actual),
		Value:  actual,
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

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
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

// MissingExportsError is returned when a guest exports only part of a
// required export group.
type MissingExportsError struct {
	Group   string
	Exports []string
}

func (e *MissingExportsError) Error() string {
	if len(e.Exports) == 0 {
		return "[load] missing_export: no exports specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("missing %d %s export(s):", len(e.Exports), e.Group))
	for _, name := range e.Exports {
		b.WriteString("\n  - ")
		b.WriteString(name)
	}
	return b.String()
}

// Is reports whether target matches this error type
func (e *MissingExportsError) Is(target error) bool {
	_, ok := target.(*MissingExportsError)
	return ok
}

// Runtime package convenience constructors

// NotInitialized creates a not-initialized error for missing module/instance
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
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

// Registration creates a host function registration error
func Registration(module, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s.%s", module, name),
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Config creates a configuration error rooted at a config path
func Config(path []string, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindInvalidInput,
		Path:   path,
		Detail: detail,
	}
}
