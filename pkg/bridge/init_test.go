package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/joeydtaylor/steeze-bridge/pkg/bridge/gate"
	"github.com/joeydtaylor/steeze-bridge/pkg/pblock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fakeRuntime records the handshake and registers a callback from Exec.
type fakeRuntime struct {
	mu    sync.Mutex
	calls []string
	env   Env

	startErr error
	loadErr  error
	execErr  error
	register bool
	closed   int
}

func (f *fakeRuntime) record(s string) {
	f.mu.Lock()
	f.calls = append(f.calls, s)
	f.mu.Unlock()
}

func (f *fakeRuntime) Start(context.Context) error {
	f.record("start")
	return f.startErr
}

func (f *fakeRuntime) Bind(_ context.Context, env Env) error {
	f.record("bind")
	f.env = env
	return nil
}

func (f *fakeRuntime) Load(_ context.Context, module string) error {
	f.record("load " + module)
	return f.loadErr
}

func (f *fakeRuntime) Exec(ctx context.Context, entry string) error {
	f.record("exec " + entry)
	if f.execErr != nil {
		return f.execErr
	}
	if f.register {
		f.env.Registry.Register(ctx, Funcs{ServiceFunc: textReturning("PROCEED")})
	}
	return nil
}

func (f *fakeRuntime) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

func TestInitSuccess(t *testing.T) {
	rt := &fakeRuntime{register: true}
	pb := Descriptor{Module: "steeze", Bootstrap: "steeze.init{}", CriticalSection: true}.PBlock()

	b, err := Init(context.Background(), pb, rt)
	require.NoError(t, err)
	require.Equal(t, []string{"start", "bind", "load steeze", "exec steeze.init{}"}, rt.calls)
	require.NotNil(t, b.Gate())
	require.Same(t, b.Gate(), rt.env.Gate)
	require.NotNil(t, b.Registry().Current())
	_, hasErr := pb.FindVal(KeyError)
	require.False(t, hasErr)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	require.Equal(t, 1, rt.closed)
	require.Nil(t, b.Registry().Current())
}

func TestInitWithoutCriticalSection(t *testing.T) {
	rt := &fakeRuntime{register: true}
	b, err := Init(context.Background(), Descriptor{Module: "m", Bootstrap: "m.init()"}.PBlock(), rt)
	require.NoError(t, err)
	require.Nil(t, b.Gate())
	require.Nil(t, rt.env.Gate)
}

func TestInitAborts(t *testing.T) {
	cases := []struct {
		name string
		pb   *pblock.Block
		rt   *fakeRuntime
		diag string
	}{
		{
			name: "module unset",
			pb:   pblock.FromPairs(KeyBootstrap, "x()"),
			rt:   &fakeRuntime{register: true},
			diag: "No module defined",
		},
		{
			name: "bootstrap unset",
			pb:   pblock.FromPairs(KeyModule, "m"),
			rt:   &fakeRuntime{register: true},
			diag: "No bootstrap defined",
		},
		{
			name: "start fails",
			pb:   Descriptor{Module: "m", Bootstrap: "x()"}.PBlock(),
			rt:   &fakeRuntime{startErr: errors.New("no vm")},
			diag: "could not start runtime: no vm",
		},
		{
			name: "import fails",
			pb:   Descriptor{Module: "m", Bootstrap: "x()"}.PBlock(),
			rt:   &fakeRuntime{loadErr: errors.New("module m not found")},
			diag: "could not import m",
		},
		{
			name: "bootstrap fails",
			pb:   Descriptor{Module: "m", Bootstrap: "x()"}.PBlock(),
			rt:   &fakeRuntime{execErr: errors.New("attempt to call a nil value")},
			diag: "could not call x()",
		},
		{
			name: "no callback",
			pb:   Descriptor{Module: "m", Bootstrap: "x()", CriticalSection: true}.PBlock(),
			rt:   &fakeRuntime{},
			diag: "after x() no callback object found",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zap.InfoLevel)
			b, err := Init(context.Background(), tc.pb, tc.rt, WithLogger(zap.New(core)))
			require.Nil(t, b)

			var abort *InitAbortError
			require.ErrorAs(t, err, &abort)
			require.Contains(t, abort.Diagnostic, tc.diag)
			require.Contains(t, err.Error(), "Init: ")

			v, ok := tc.pb.FindVal(KeyError)
			require.True(t, ok)
			require.Equal(t, abort.Diagnostic, v)

			require.Equal(t, 1, tc.rt.closed)
			if tc.rt.env.Gate != nil {
				require.ErrorIs(t, tc.rt.env.Gate.Enter(gate.Main), gate.ErrDestroyed)
			}
			if tc.rt.env.Registry != nil {
				require.Nil(t, tc.rt.env.Registry.Current())
			}
			require.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
		})
	}
}

func TestCloseClearsRegistry(t *testing.T) {
	rt := &fakeRuntime{register: true}
	b, err := Init(context.Background(), Descriptor{Module: "m", Bootstrap: "x()"}.PBlock(), rt)
	require.NoError(t, err)
	reg := b.Registry()
	require.NoError(t, b.Close())
	require.Nil(t, reg.Current())
}

func TestDescriptorRoundTrip(t *testing.T) {
	d := Descriptor{Module: "steeze", Bootstrap: "steeze.init{}", CriticalSection: true}
	got, err := DescriptorFromPBlock(d.PBlock())
	require.NoError(t, err)
	require.Equal(t, d, got)

	got, err = DescriptorFromPBlock(pblock.FromPairs(KeyModule, "m", KeyBootstrap, "b", KeyCriticalSection, ""))
	require.NoError(t, err)
	require.True(t, got.CriticalSection)
}
