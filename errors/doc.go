// Package errors provides structured error types for the wasm-host library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the resource it concerns (a module path, an export name,
// a memory region) and an optional cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseMarshal, errors.KindOverflow).
//		Resource("region[65530:65546]").
//		Detail("region exceeds linear memory of %d bytes", size).
//		Build()
//
// Or use the constructors for the taxonomy the runtime reports:
//
//	errors.Source(errors.KindNotFound, path, cause)  // image bytes unavailable
//	errors.Instantiation(path, cause)                // engine rejected the module
//	errors.NotReady("caesarEncrypt")                 // export called before readiness
//	errors.MalformedText(offset, limit)              // no terminator within bound
//	errors.MarshalOverflow(offset, length, size)     // region outside linear memory
//
// All errors implement the standard error interface and support errors.Is/As.
// Is matches on Phase and Kind, so the exported sentinels work as targets:
//
//	if errors.Is(err, errors.ErrNotReady) { ... }
package errors
