package gate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnterExitReentrant(t *testing.T) {
	h, err := Create()
	require.NoError(t, err)
	o := NewOwner()

	require.NoError(t, h.Enter(o))
	require.NoError(t, h.Enter(o))
	require.True(t, h.HeldBy(o))

	require.NoError(t, h.Exit(o))
	require.True(t, h.Held())
	require.NoError(t, h.Exit(o))
	require.False(t, h.Held())

	require.ErrorIs(t, h.Exit(o), ErrNotHeld)
}

func TestExitByOtherOwner(t *testing.T) {
	h, _ := Create()
	a, b := NewOwner(), NewOwner()

	require.NoError(t, h.Enter(a))
	require.ErrorIs(t, h.Exit(b), ErrNotOwner)
	require.NoError(t, h.Exit(a))
}

func TestMutualExclusion(t *testing.T) {
	h, _ := Create()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o := NewOwner()
			assert.NoError(t, h.Enter(o))
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			assert.NoError(t, h.Exit(o))
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), maxInside.Load())
}

func TestDestroy(t *testing.T) {
	h, _ := Create()
	o := NewOwner()

	require.NoError(t, h.Enter(o))
	require.ErrorIs(t, h.Destroy(), ErrBusy)
	require.NoError(t, h.Exit(o))
	require.NoError(t, h.Destroy())
	require.ErrorIs(t, h.Enter(o), ErrDestroyed)
	require.ErrorIs(t, h.Destroy(), ErrDestroyed)
}

func TestUntypedRejectsNonHandles(t *testing.T) {
	cases := []struct {
		name string
		v    any
	}{
		{"nil", nil},
		{"string", "CRITICAL"},
		{"typed nil", (*Handle)(nil)},
		{"int", 42},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var te *TypeError
			require.ErrorAs(t, Enter(tc.v, Main), &te)
			require.Equal(t, "argument to crit_enter must be a CRITICAL object", te.Error())
			require.ErrorAs(t, Exit(tc.v, Main), &te)
			require.ErrorAs(t, Destroy(tc.v), &te)
		})
	}

	h, _ := Create()
	require.NoError(t, Enter(h, Main))
	require.NoError(t, Exit(h, Main))
}

func TestUntypedRejectsDestroyedHandles(t *testing.T) {
	h, _ := Create()
	require.NoError(t, Destroy(h))

	cases := []struct {
		name string
		op   string
		call func() error
	}{
		{"enter", "enter", func() error { return Enter(h, Main) }},
		{"exit", "exit", func() error { return Exit(h, Main) }},
		{"terminate", "terminate", func() error { return Destroy(h) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			var te *TypeError
			require.ErrorAs(t, err, &te)
			require.Equal(t, tc.op, te.Op)
			require.ErrorIs(t, err, ErrDestroyed)
			require.Contains(t, err.Error(), "must be a CRITICAL object")
		})
	}
}

func TestOwnerFromContext(t *testing.T) {
	require.Equal(t, Main, OwnerFrom(context.Background()))
	o := NewOwner()
	require.NotEqual(t, Main, o)
	require.Equal(t, o, OwnerFrom(WithOwner(context.Background(), o)))
}

func TestHandleIDsAreDistinct(t *testing.T) {
	a, _ := Create()
	b, _ := Create()
	require.NotEqual(t, a.ID(), b.ID())
	require.Contains(t, a.String(), "critical section")
}
