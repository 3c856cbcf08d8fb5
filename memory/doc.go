// Package memory moves data across the host/guest boundary.
//
// A View is a snapshot of linear memory that hands out typed little-endian
// windows (Uint8, Uint16, Int32, Uint32, Float32, Float64). Views become
// invalid when memory grows or a guest call happens, and every window access
// re-checks that.
//
// The Marshaler writes and reads text, int32 arrays, raw bytes, msgpack and
// protobuf payloads and C string tables at fixed offsets:
//
//	m := memory.NewMarshaler(mem)
//	r, err := m.WriteText(0, "hello")
//	// ... guest call using r.Params() ...
//	out, err := m.ReadText(r.Offset, 0)
//	err = m.Zero(r)
//
// Arena replaces hand-managed offsets with scoped buffers that are always
// zero-filled when the scope ends:
//
//	arena, _ := memory.NewArena(m, 0, 4096)
//	err := arena.Scope(func(s *memory.Scope) error {
//		buf, err := s.Text("hello")
//		if err != nil {
//			return err
//		}
//		_, err = inst.Call(ctx, "reverse", buf.Params()...)
//		return err
//	})
package memory
