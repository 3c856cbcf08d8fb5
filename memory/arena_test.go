package memory

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-host/errors"
)

func TestArena_ScopeZeroes(t *testing.T) {
	mem := newSliceMemory(1)
	m := NewMarshaler(mem)
	arena, err := NewArena(m, 1024, 2048)
	require.NoError(t, err)

	var text, nums *Buffer
	err = arena.Scope(func(s *Scope) error {
		var err error
		text, err = s.Text("hello")
		if err != nil {
			return err
		}
		nums, err = s.Int32s([]int32{1, 2, 3})
		if err != nil {
			return err
		}
		got, err := m.ReadText(text.Offset(), 0)
		require.NoError(t, err)
		assert.Equal(t, "hello", got)
		assert.Equal(t, uint32(0), nums.Offset()%4, "int32 buffer must be aligned")
		assert.Equal(t, []uint64{uint64(text.Offset()), 5}, text.Params())
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, make([]byte, 1024), mem.buf[1024:2048])
	assert.Equal(t, uint32(0), arena.Used())
}

func TestArena_ScopeErrorStillReleases(t *testing.T) {
	mem := newSliceMemory(1)
	arena, err := NewArena(NewMarshaler(mem), 0, 256)
	require.NoError(t, err)

	boom := stderrors.New("guest failed")
	err = arena.Scope(func(s *Scope) error {
		if _, err := s.Bytes([]byte{1, 2, 3, 4}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, make([]byte, 4), mem.buf[:4])
}

func TestArena_Exhausted(t *testing.T) {
	arena, err := NewArena(NewMarshaler(newSliceMemory(1)), 0, 16)
	require.NoError(t, err)

	err = arena.Scope(func(s *Scope) error {
		if _, err := s.Alloc(12, 1); err != nil {
			return err
		}
		_, err := s.Alloc(8, 1)
		return err
	})
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.KindAllocation, e.Kind)

	// rewound after the failed scope
	err = arena.Scope(func(s *Scope) error {
		_, err := s.Alloc(16, 1)
		return err
	})
	assert.NoError(t, err)
}

func TestArena_Nested(t *testing.T) {
	arena, err := NewArena(NewMarshaler(newSliceMemory(1)), 0, 64)
	require.NoError(t, err)

	err = arena.Scope(func(outer *Scope) error {
		a, err := outer.Alloc(8, 1)
		require.NoError(t, err)
		err = arena.Scope(func(inner *Scope) error {
			b, err := inner.Alloc(8, 1)
			require.NoError(t, err)
			assert.Equal(t, a.Offset()+8, b.Offset())
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, uint32(8), arena.Used())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), arena.Used())
}

// A scope that exits while a later scope is still open must not let a third
// scope allocate over the live buffer.
func TestArena_InterleavedScopes(t *testing.T) {
	m := NewMarshaler(newSliceMemory(1))
	arena, err := NewArena(m, 0, 64)
	require.NoError(t, err)

	secret := make(chan *Buffer)
	release := make(chan struct{})
	done := make(chan error)

	err = arena.Scope(func(a *Scope) error {
		_, err := a.Alloc(8, 1)
		require.NoError(t, err)
		go func() {
			done <- arena.Scope(func(b *Scope) error {
				buf, err := b.Text("secret")
				if err != nil {
					return err
				}
				secret <- buf
				<-release
				return nil
			})
		}()
		return nil
	})
	require.NoError(t, err)
	b := <-secret

	err = arena.Scope(func(c *Scope) error {
		buf, err := c.Bytes(make([]byte, 16))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, uint64(buf.Offset()), b.Region().End())
		return nil
	})
	require.NoError(t, err)

	got, err := m.ReadText(b.Offset(), 0)
	require.NoError(t, err)
	assert.Equal(t, "secret", got)
	assert.Equal(t, uint32(15), arena.Used(), "spans below the open scope stay reserved")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, uint32(0), arena.Used())
}

func TestArena_Invalid(t *testing.T) {
	m := NewMarshaler(newSliceMemory(1))

	_, err := NewArena(m, 100, 50)
	assert.Error(t, err)

	_, err = NewArena(m, 0, pageSize+1)
	assert.ErrorIs(t, err, errors.ErrMarshalOverflow)

	arena, err := NewArena(m, 0, 64)
	require.NoError(t, err)
	var leaked *Scope
	err = arena.Scope(func(s *Scope) error {
		leaked = s
		_, err := s.Alloc(4, 3)
		return err
	})
	assert.Error(t, err)

	_, err = leaked.Alloc(4, 4)
	assert.Error(t, err, "closed scope must refuse allocation")
}

func TestBuffer_ReleaseIdempotent(t *testing.T) {
	mem := newSliceMemory(1)
	arena, err := NewArena(NewMarshaler(mem), 0, 64)
	require.NoError(t, err)

	err = arena.Scope(func(s *Scope) error {
		b, err := s.Bytes([]byte{9, 9})
		require.NoError(t, err)
		require.NoError(t, b.Release())
		assert.Equal(t, []byte{0, 0}, mem.buf[:2])
		mem.buf[0] = 7 // reused by the caller after release
		return b.Release()
	})
	require.NoError(t, err)
	assert.Equal(t, byte(7), mem.buf[0])
}
