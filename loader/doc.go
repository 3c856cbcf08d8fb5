// Package loader instantiates guest modules and hands out ready instances.
//
// A load holds the "wasm-instantiate" run dependency from start to finish.
// Remote paths on a streaming source are read section by section and
// compiled when the body ends; if that fails for any reason the loader logs
// a warning and retries once from a fully buffered fetch. Local files, data
// URIs and preloaded images go straight to the buffered path.
//
// After instantiation the loader runs __wasm_call_ctors (or _initialize) and,
// with WithRunMain, main. Only then does the instance's gate resolve.
//
//	ld := loader.New(source.Auto{}, loader.WithLocate(source.Prefix("./")))
//	inst, err := ld.Load(ctx, "caesar.wasm", imports.Empty())
//	if err != nil {
//		return err
//	}
//	defer inst.Close(ctx)
//	res, err := inst.Call(ctx, "caesarEncrypt", 0, 10, 3)
//
// Each instance owns a separate engine runtime, so loading the same image
// twice yields two independent memories.
package loader
