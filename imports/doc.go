// Package imports builds the host function table a guest module links against.
//
// A Table is built once and shared freely:
//
//	table, err := imports.NewBuilder().
//		Clock("env", time.Now).
//		Deferred("env", "get", "callback", func(context.Context) []uint64 {
//			return []uint64{api.EncodeI32(123)}
//		}).
//		Func("env", "log", []api.ValueType{api.ValueTypeI32}, nil, logFn).
//		Build()
//
// Before instantiation the loader calls Check with the module's imported
// function definitions. Every import must exist in the table with an equal
// signature; host functions the module does not import are reported back
// and otherwise ignored.
//
// Deferred imports do not call back into the guest while it is running.
// They queue a Completion on the Completions attached to the call context,
// and the instance runs queued completions after the outer call returns.
package imports
