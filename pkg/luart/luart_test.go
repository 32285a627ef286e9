package luart

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/joeydtaylor/steeze-bridge/pkg/bridge"
	"github.com/joeydtaylor/steeze-bridge/pkg/host"
	"github.com/joeydtaylor/steeze-bridge/pkg/pblock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fixture struct {
	b    *bridge.Bridge
	rt   *Runtime
	logs *observer.ObservedLogs
}

func start(t *testing.T, d bridge.Descriptor, opts ...bridge.Option) fixture {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	rt := New(WithScriptPath("testdata"))
	opts = append([]bridge.Option{bridge.WithLogger(zap.New(core))}, opts...)
	b, err := bridge.Init(context.Background(), d.PBlock(), rt, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return fixture{b: b, rt: rt, logs: logs}
}

func steezeBridge(t *testing.T) fixture {
	return start(t, bridge.Descriptor{Module: "steeze", Bootstrap: "steeze.init{}", CriticalSection: true})
}

type call struct {
	pb *pblock.Block
	sn *host.Session
	rq *host.Request
	w  *httptest.ResponseRecorder
}

func newCall(method, target, body string) call {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		r.Header.Set("Content-Length", strconv.Itoa(len(body)))
	}
	w := httptest.NewRecorder()
	return call{
		pb: pblock.New(),
		sn: host.NewSession(w, r),
		rq: host.NewRequest(r, "text/plain"),
		w:  w,
	}
}

func (f fixture) service(c call) bridge.ControlCode {
	return f.b.Dispatcher().Service(context.Background(), c.pb, c.sn, c.rq)
}

func (f fixture) warned(sub string) bool {
	for _, e := range f.logs.FilterLevelExact(zap.WarnLevel).All() {
		if d, _ := e.ContextMap()["diagnostic"].(string); strings.Contains(d, sub) {
			return true
		}
	}
	return false
}

func TestSteezeHelloWorld(t *testing.T) {
	f := steezeBridge(t)
	c := newCall(http.MethodGet, "/scripts/hello.lua", "")

	require.Equal(t, bridge.Proceed, f.service(c))
	require.Equal(t, http.StatusOK, c.w.Code)
	require.Equal(t, "Hello World!", c.w.Body.String())
	require.Equal(t, "text/html", c.w.Header().Get("Content-Type"))
	require.Equal(t, "Lua-psychobabble", c.w.Header().Get("X-Grok-This"))
}

func TestSteezeHeadSkipsBody(t *testing.T) {
	f := steezeBridge(t)
	c := newCall(http.MethodHead, "/scripts/hello.lua", "")

	require.Equal(t, bridge.Proceed, f.service(c))
	require.Empty(t, c.w.Body.String())
}

func TestSteezeRedirect(t *testing.T) {
	f := steezeBridge(t)
	c := newCall(http.MethodGet, "/scripts/redirect.lua", "")

	require.Equal(t, bridge.Proceed, f.service(c))
	require.Equal(t, http.StatusFound, c.w.Code)
	require.Equal(t, "http://example.com/", c.w.Header().Get("Location"))
}

func TestSteezeFormData(t *testing.T) {
	f := steezeBridge(t)
	c := newCall(http.MethodPost, "/scripts/echo.lua", "a=1&b=2")

	require.Equal(t, bridge.Proceed, f.service(c))
	require.Equal(t, "POST a=1&b=2", c.w.Body.String())
}

func TestSteezeFormDataOversizedContentLength(t *testing.T) {
	cases := []struct {
		name   string
		length string
	}{
		{"one terabyte", "1099511627776"},
		{"much larger than body", "4096"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := steezeBridge(t)
			c := newCall(http.MethodPost, "/scripts/echo.lua", "a=1")
			c.rq.Headers.Set("content-length", tc.length)

			require.Equal(t, bridge.Proceed, f.service(c))
			require.Equal(t, "POST a=1", c.w.Body.String())
		})
	}
}

func TestSteezeMissingModuleIsForbidden(t *testing.T) {
	f := steezeBridge(t)
	c := newCall(http.MethodGet, "/scripts/nosuch.lua", "")

	require.Equal(t, bridge.Aborted, f.service(c))
	require.Equal(t, http.StatusForbidden, c.rq.Status())
	require.False(t, c.rq.Started())
}

func TestSteezeServerReturn(t *testing.T) {
	f := steezeBridge(t)
	c := newCall(http.MethodGet, "/scripts/gone.lua", "")

	require.Equal(t, bridge.Aborted, f.service(c))
	require.Equal(t, http.StatusNotFound, c.rq.Status())
}

func TestSteezeErrorsWithoutDebugAbort(t *testing.T) {
	f := steezeBridge(t)
	c := newCall(http.MethodGet, "/scripts/broken.lua", "")

	require.Equal(t, bridge.Aborted, f.service(c))
	require.Empty(t, c.w.Body.String())
}

func TestSteezeDebugErrorPage(t *testing.T) {
	f := steezeBridge(t)
	c := newCall(http.MethodGet, "/scripts/broken.luad", "")

	require.Equal(t, bridge.Proceed, f.service(c))
	require.Equal(t, http.StatusOK, c.w.Code)
	require.Contains(t, c.w.Body.String(), "A Lua Error Happened")
	require.Contains(t, c.w.Body.String(), "boom")
}

func TestSteezeAuthTrans(t *testing.T) {
	f := steezeBridge(t)
	cases := []struct {
		name string
		pb   *pblock.Block
		want bridge.ControlCode
	}{
		{"good password", pblock.FromPairs("userdb", "authtest", "user", "grisha", "pw", "mypassword"), bridge.Proceed},
		{"bad password", pblock.FromPairs("userdb", "authtest", "user", "grisha", "pw", "nope"), bridge.NoAction},
		{"debug reload", pblock.FromPairs("userdb", "authtestDEBUG", "user", "grisha", "pw", "mypassword"), bridge.Proceed},
		{"unknown userdb", pblock.FromPairs("userdb", "nosuch", "user", "grisha", "pw", "mypassword"), bridge.Aborted},
		{"no userdb", pblock.FromPairs("user", "grisha"), bridge.Aborted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newCall(http.MethodGet, "/private/", "")
			got := f.b.Dispatcher().AuthTrans(context.Background(), tc.pb, c.sn, c.rq)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestSteezeAliasesCritical(t *testing.T) {
	f := steezeBridge(t)
	require.NoError(t, f.rt.Exec(context.Background(), `
		assert(steeze.CRITICAL ~= nil)
		assert(tostring(steeze.CRITICAL):find("critical section", 1, true))
		local c = steeze.crit_init()
		steeze.crit_enter(c)
		steeze.crit_enter(c)
		steeze.crit_exit(c)
		steeze.crit_exit(c)
	`))
}

func TestModuleFromURI(t *testing.T) {
	f := steezeBridge(t)
	require.NoError(t, f.rt.Exec(context.Background(), `
		local m = steeze.module_from_uri
		assert(m("/scripts/hello.lua") == "hello")
		assert(m("/scripts/hello.luad") == "hello")
		assert(m("/a.b/c.d.lua") == "c.d")
		assert(m("/scripts/noext") == "noex")
	`))
}

func rawBridge(t *testing.T, opts ...bridge.Option) fixture {
	return start(t, bridge.Descriptor{Module: "raw", Bootstrap: "raw.init()", CriticalSection: true}, opts...)
}

func TestRawCallbackResults(t *testing.T) {
	f := rawBridge(t)
	cases := []struct {
		uri  string
		want bridge.ControlCode
		warn string
	}{
		{"/ok", bridge.Proceed, ""},
		{"/exit", bridge.Exit, ""},
		{"/number", bridge.Aborted, "did not return a string (got <number>)"},
		{"/bogus", bridge.Aborted, "returns MAYBE, defaults to ABORTED"},
		{"/error", bridge.Aborted, "Service() failed"},
		{"/findval", bridge.Proceed, ""},
		{"/warn", bridge.Proceed, `unknown status "PROTOCOL_BOGUS"`},
	}
	for _, tc := range cases {
		t.Run(tc.uri, func(t *testing.T) {
			c := newCall(http.MethodGet, tc.uri, "")
			require.Equal(t, tc.want, f.service(c))
			if tc.warn != "" {
				require.True(t, f.warned(tc.warn), "expected warning %q", tc.warn)
			}
		})
	}
}

func TestRawCallbackMissingAuthTrans(t *testing.T) {
	f := rawBridge(t)
	c := newCall(http.MethodGet, "/", "")
	got := f.b.Dispatcher().AuthTrans(context.Background(), pblock.New(), c.sn, c.rq)
	require.Equal(t, bridge.Aborted, got)
	require.True(t, f.warned(bridge.ErrMissingCapability.Error()))
}

func TestCallbackExitsDispatchGate(t *testing.T) {
	f := rawBridge(t)
	c := newCall(http.MethodGet, "/crit", "")

	require.Equal(t, bridge.Proceed, f.service(c))
	require.True(t, f.warned("already exited"))
	require.False(t, f.b.Gate().Held())
}

func TestLogForwardingReentersVM(t *testing.T) {
	f := rawBridge(t, bridge.WithForwardLog(true))
	c := newCall(http.MethodGet, "/warn", "")

	require.Equal(t, bridge.Proceed, f.service(c))
	require.NoError(t, f.rt.Exec(context.Background(), `
		assert(raw.logged("entered critical section"))
		assert(raw.logged("unknown status"))
		assert(raw.logged("Service() returns PROCEED"))
	`))
}

func TestBindingTypeErrors(t *testing.T) {
	f := rawBridge(t)
	require.NoError(t, f.rt.Exec(context.Background(), `
		local bridge = require "bridge"
		local ok, err = pcall(bridge.crit_enter, "not a handle")
		assert(not ok and err:find("TypeError: argument to crit_enter must be a CRITICAL object", 1, true), err)
		ok, err = pcall(bridge.crit_exit, 42)
		assert(not ok and err:find("TypeError", 1, true), err)
		ok, err = pcall(bridge.set_callback, nil)
		assert(not ok and err:find("TypeError", 1, true), err)
	`))
}

func TestCritTerminate(t *testing.T) {
	f := rawBridge(t)
	require.NoError(t, f.rt.Exec(context.Background(), `
		local bridge = require "bridge"
		local c = bridge.crit_init()
		bridge.crit_terminate(c)
		local ok, err = pcall(bridge.crit_enter, c)
		assert(not ok)
		assert(string.find(err, "TypeError: argument to crit_enter", 1, true), err)
		ok, err = pcall(bridge.crit_terminate, c)
		assert(not ok)
		assert(string.find(err, "TypeError:", 1, true), err)
	`))
}

func TestSetCallbackLastWins(t *testing.T) {
	f := rawBridge(t)
	first := f.b.Registry().Current()
	require.NoError(t, f.rt.Exec(context.Background(), `raw.init()`))
	second := f.b.Registry().Current()
	require.NotSame(t, first, second)
	require.True(t, first.(*luaCallback).released.Load())
}

func TestInitAbortsFromLua(t *testing.T) {
	cases := []struct {
		name string
		d    bridge.Descriptor
		diag string
	}{
		{"bootstrap registers nothing", bridge.Descriptor{Module: "raw", Bootstrap: "raw.init_nothing()"}, "no callback object found"},
		{"module missing", bridge.Descriptor{Module: "nosuch", Bootstrap: "nosuch.init()"}, "could not import nosuch"},
		{"bootstrap broken", bridge.Descriptor{Module: "raw", Bootstrap: "raw.init("}, "could not call raw.init("},
		{"bootstrap undefined", bridge.Descriptor{Module: "raw", Bootstrap: "raw.nothing_here()"}, "could not call"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rt := New(WithScriptPath("testdata"))
			b, err := bridge.Init(context.Background(), tc.d.PBlock(), rt)
			require.Nil(t, b)
			var abort *bridge.InitAbortError
			require.ErrorAs(t, err, &abort)
			require.Contains(t, abort.Diagnostic, tc.diag)
			require.ErrorIs(t, rt.Exec(context.Background(), "x = 1"), ErrClosed)
		})
	}
}

func TestRuntimeCancelledContext(t *testing.T) {
	f := rawBridge(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, f.rt.Exec(ctx, `while true do end`))
}
