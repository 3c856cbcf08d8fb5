package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseSource      Phase = "source"      // fetching module image bytes
	PhaseLoad        Phase = "load"        // compile and import checks
	PhaseInstantiate Phase = "instantiate" // engine instantiation and init
	PhaseReadiness   Phase = "readiness"   // run dependency bookkeeping
	PhaseMarshal     Phase = "marshal"     // host <-> linear memory copies
	PhaseRuntime     Phase = "runtime"     // export calls
	PhaseHost        Phase = "host"        // host import registration
	PhaseParse       Phase = "parse"       // signatures and configuration
)

// Kind categorizes the error
type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindNetwork        Kind = "network"
	KindIO             Kind = "io"
	KindInstantiation  Kind = "instantiation"
	KindMissingImport  Kind = "missing_import"
	KindNotReady       Kind = "not_ready"
	KindMalformedText  Kind = "malformed_text"
	KindOverflow       Kind = "overflow"
	KindStale          Kind = "stale_view"
	KindInvalidUTF8    Kind = "invalid_utf8"
	KindInvalidData    Kind = "invalid_data"
	KindInvalidInput   Kind = "invalid_input"
	KindTypeMismatch   Kind = "type_mismatch"
	KindRegistration   Kind = "registration"
	KindUnbalanced     Kind = "unbalanced"
	KindAllocation     Kind = "allocation"
	KindNotInitialized Kind = "not_initialized"
	KindTrap           Kind = "trap"
)

// Sentinels for errors.Is. Matching is by Phase and Kind only.
var (
	ErrNotReady        = &Error{Phase: PhaseRuntime, Kind: KindNotReady}
	ErrMalformedText   = &Error{Phase: PhaseMarshal, Kind: KindMalformedText}
	ErrMarshalOverflow = &Error{Phase: PhaseMarshal, Kind: KindOverflow}
	ErrStaleView       = &Error{Phase: PhaseMarshal, Kind: KindStale}
	ErrInstantiation   = &Error{Phase: PhaseInstantiate, Kind: KindInstantiation}
	ErrSourceNotFound  = &Error{Phase: PhaseSource, Kind: KindNotFound}
	ErrSourceNetwork   = &Error{Phase: PhaseSource, Kind: KindNetwork}
	ErrSourceIO        = &Error{Phase: PhaseSource, Kind: KindIO}
)

// Error is the structured error type used throughout the library
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Resource string
	Detail   string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Resource != "" {
		b.WriteString(" at ")
		b.WriteString(e.Resource)
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

// Is is errors.Is from the standard library.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is errors.As from the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
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

// Resource sets the resource the error concerns
func (b *Builder) Resource(r string) *Builder {
	b.err.Resource = r
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

// Source creates an error for image bytes that could not be obtained.
// kind is one of KindNotFound, KindNetwork or KindIO.
func Source(kind Kind, path string, cause error) *Error {
	return &Error{
		Phase:    PhaseSource,
		Kind:     kind,
		Resource: path,
		Detail:   "module image unavailable",
		Cause:    cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(path string, cause error) *Error {
	return &Error{
		Phase:    PhaseInstantiate,
		Kind:     KindInstantiation,
		Resource: path,
		Detail:   "instantiate module",
		Cause:    cause,
	}
}

// NotReady creates the error returned when an export is used before readiness
func NotReady(export string) *Error {
	return &Error{
		Phase:    PhaseRuntime,
		Kind:     KindNotReady,
		Resource: export,
		Detail:   "module initialization has not finished",
	}
}

// Trap creates the error for a guest export call that aborted
func Trap(export string, cause error) *Error {
	return &Error{
		Phase:    PhaseRuntime,
		Kind:     KindTrap,
		Resource: export,
		Detail:   "guest call failed",
		Cause:    cause,
	}
}

// MalformedText creates an error for a text scan that found no terminator
func MalformedText(offset, limit uint32) *Error {
	return &Error{
		Phase:    PhaseMarshal,
		Kind:     KindMalformedText,
		Resource: fmt.Sprintf("offset %d", offset),
		Detail:   fmt.Sprintf("no terminator within %d bytes", limit),
		Value:    offset,
	}
}

// MarshalOverflow creates an error for a region outside linear memory
func MarshalOverflow(offset, length uint64, size uint32) *Error {
	return &Error{
		Phase:    PhaseMarshal,
		Kind:     KindOverflow,
		Resource: fmt.Sprintf("region[%d:%d]", offset, offset+length),
		Detail:   fmt.Sprintf("region exceeds linear memory of %d bytes", size),
		Value:    offset,
	}
}

// StaleView creates an error for a memory view used after the memory moved
func StaleView(reason string) *Error {
	return &Error{
		Phase:  PhaseMarshal,
		Kind:   KindStale,
		Detail: reason,
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, offset uint32, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:    phase,
		Kind:     KindInvalidUTF8,
		Resource: fmt.Sprintf("offset %d", offset),
		Detail:   fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// Unbalanced creates an error for a run dependency removed without a matching add
func Unbalanced(id, detail string) *Error {
	return &Error{
		Phase:    PhaseReadiness,
		Kind:     KindUnbalanced,
		Resource: id,
		Detail:   detail,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, resource, detail string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindInvalidData,
		Resource: resource,
		Detail:   detail,
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

// NotInitialized creates a not-initialized error for a missing collaborator
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
		Phase:    phase,
		Kind:     KindNotFound,
		Resource: name,
		Detail:   fmt.Sprintf("%s %q not found", what, name),
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

// TypeMismatch creates a signature mismatch error
func TypeMismatch(phase Phase, resource, want, got string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindTypeMismatch,
		Resource: resource,
		Detail:   fmt.Sprintf("want %s, got %s", want, got),
	}
}

// Registration creates a registration error
func Registration(phase Phase, namespace, name string, cause error) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindRegistration,
		Resource: namespace + "#" + name,
		Detail:   "register host function",
		Cause:    cause,
	}
}

// ParseFailed creates a parsing error for what
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}

// MissingImport represents a single unresolved or mismatched import
type MissingImport struct {
	Namespace string // e.g., "env"
	Function  string // e.g., "time"
	Reason    string // empty when absent, otherwise the signature mismatch
}

// MissingImportsError is returned when a module declares imports the table does not satisfy
type MissingImportsError struct {
	Imports []MissingImport
}

// Add appends an unsatisfied import with an optional mismatch reason
func (e *MissingImportsError) Add(namespace, function, reason string) {
	e.Imports = append(e.Imports, MissingImport{
		Namespace: namespace,
		Function:  function,
		Reason:    reason,
	})
}

func (e *MissingImportsError) Error() string {
	if len(e.Imports) == 0 {
		return "[load] missing_import: no imports specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("unsatisfied %d host function(s):\n", len(e.Imports)))

	// Group by namespace for cleaner output
	byNS := make(map[string][]string)
	var nsOrder []string
	for _, imp := range e.Imports {
		if _, exists := byNS[imp.Namespace]; !exists {
			nsOrder = append(nsOrder, imp.Namespace)
		}
		line := imp.Function
		if imp.Reason != "" {
			line += " (" + imp.Reason + ")"
		}
		byNS[imp.Namespace] = append(byNS[imp.Namespace], line)
	}

	for _, ns := range nsOrder {
		b.WriteString("\n  ")
		b.WriteString(ns)
		b.WriteString(":\n")
		for _, fn := range byNS[ns] {
			b.WriteString("    - ")
			b.WriteString(fn)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *MissingImportsError) Is(target error) bool {
	_, ok := target.(*MissingImportsError)
	return ok
}
