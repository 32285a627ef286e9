package serverfx

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/joeydtaylor/steeze-bridge/pkg/bridge"
	"github.com/joeydtaylor/steeze-bridge/pkg/manifest"
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/metrics"
	"github.com/joeydtaylor/steeze-bridge/pkg/transport/httpx"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func exampleManifest(t *testing.T) manifest.Config {
	t.Helper()
	t.Setenv("BRIDGE_MANIFEST", filepath.Join("..", "..", "examples", "manifest.toml"))
	man, err := provideManifest(defaultConfig(), zap.NewNop())
	require.NoError(t, err)
	man.Bridge.ScriptPath = []string{filepath.Join("..", "..", "examples", "scripts")}
	man.Bridge.Bootstrap = "steeze.init{}"
	return man
}

func TestExampleManifestServes(t *testing.T) {
	man := exampleManifest(t)
	lc := fxtest.NewLifecycle(t)
	host, err := provideBridge(bridgeDeps{
		LC:       lc,
		Manifest: man,
		System:   zap.NewNop(),
		Diag:     zap.NewNop(),
		Dispatch: metrics.DispatchObserver{},
	})
	require.NoError(t, err)
	lc.RequireStart()
	defer lc.RequireStop()

	h := provideRouter(routerDeps{
		Manifest: man,
		Auth:     auth.New(auth.Config{}),
		LogMW:    logger.New(zap.NewNop()),
		Metrics:  metrics.ProvideMetrics(),
		Router:   httpx.NewChi(),
		Host:     host,
		Logger:   zap.NewNop(),
	})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scripts/hello.lua", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Hello World!")

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private/whoami.lua", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	r := httptest.NewRequest(http.MethodGet, "/private/whoami.lua", nil)
	r.SetBasicAuth("grisha", "mypassword")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "auth-user=grisha")
	require.Contains(t, w.Body.String(), "path-info=/whoami.lua")
}

func TestBridgeAbortFailsConstructor(t *testing.T) {
	man := exampleManifest(t)
	man.Bridge.Bootstrap = "steeze.nothing()"
	_, err := provideBridge(bridgeDeps{
		LC:       fxtest.NewLifecycle(t),
		Manifest: man,
		System:   zap.NewNop(),
		Diag:     zap.NewNop(),
	})
	var abort *bridge.InitAbortError
	require.ErrorAs(t, err, &abort)
}

func TestMissingManifest(t *testing.T) {
	t.Setenv("BRIDGE_MANIFEST", filepath.Join(t.TempDir(), "nope.toml"))
	_, err := provideManifest(defaultConfig(), zap.NewNop())
	require.ErrorIs(t, err, os.ErrNotExist)
}
