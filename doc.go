// Package wasmhost loads sandboxed WebAssembly modules and moves data in and
// out of their linear memory.
//
// A guest module cannot address host values such as strings or slices, so every
// exchange goes through the module's single linear memory: the host copies bytes
// in, calls an export with an (offset, length) pair, and copies the result out.
// This library wraps that pattern with a readiness-tracked loader and a marshaling
// layer that zero-fills transient buffers after use.
//
// # Architecture Overview
//
//	wasmhost/            Root package with the Memory interface and Region descriptor
//	├── source/          Byte sources: local files, HTTP, data URIs, auto-detection
//	├── imports/         Host import tables (clock, deferred callbacks, custom funcs)
//	├── readiness/       Run dependency tracker and readiness gate
//	├── loader/          Streaming and buffered instantiation, Instance
//	├── memory/          Typed memory views, Marshaler, scoped Arena buffers
//	├── exports/         Export registry resolved after readiness
//	├── profile/         Typed capability interfaces over known export sets
//	├── metrics/         Prometheus collectors for loads and run dependencies
//	├── config/          Viper-backed configuration
//	├── errors/          Structured error types
//	└── cmd/wasmhost/    CLI with an interactive mode
//
// # Quick Start
//
//	ld := loader.New(source.Auto{}, loader.WithLocate(source.Prefix("./")))
//	inst, err := ld.Load(ctx, "caesar.wasm", imports.Empty())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	caesar, err := profile.BindCaesar(inst)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	shifted, err := caesar.Encrypt(ctx, []int32{7, 4, 11, 11, 14}, 3)
//
// Lower-level access goes through the Marshaler, which copies values into
// guest memory and zeroes them once the call is done:
//
//	m, _ := inst.Marshaler()
//	region, _ := m.WriteText(0, "stressed")
//	_, err = inst.Call(ctx, "reverse", region.Params()...)
//	out, _ := m.ReadText(region.Offset, region.Extent())
//	_ = m.Zero(region)
//
// # Thread Safety
//
// Loader is safe for concurrent use. Instance serializes its export calls; memory
// regions handed to a call belong to that call until it returns.
package wasmhost
