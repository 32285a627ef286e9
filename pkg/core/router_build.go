package core

import (
	"net/http"
	"time"

	chimd "github.com/go-chi/chi/v5/middleware"
	manifest "github.com/joeydtaylor/steeze-bridge/pkg/manifest"
	hmetrics "github.com/joeydtaylor/steeze-bridge/pkg/middleware/metrics"
	"go.uber.org/zap"
)

// BuildRouter mounts every manifest route on d.Router behind the shared
// middleware chain. AuthTrans runs before the guard so the user it accepts
// can satisfy it.
func BuildRouter(cfg manifest.Config, d BuildDeps) http.Handler {
	r := d.Router
	r.Use(chimd.RequestID, chimd.Recoverer, chimd.Heartbeat("/ping"))

	if d.Auth != nil {
		r.Use(d.Auth.Middleware())
		if d.LogMW != nil {
			r.Use(d.LogMW.Middleware(d.Auth))
		}
		// metrics collector that references auth state without copying it
		r.Use(hmetrics.Collect(d.Auth))
	} else if d.LogMW != nil {
		r.Use(d.LogMW.Middleware(nil))
	}

	if d.Metrics != nil {
		r.Handle(http.MethodGet, "/metrics", d.Metrics)
	}

	for _, rt := range cfg.Routes {
		h := wrapRoute(rt, d)
		h = withGuard(h, d.Auth, rt.Guard)
		if rt.AuthTrans != nil {
			h = withAuthTrans(h, rt.AuthTrans, rt, d)
		}
		h = withTimeout(h, time.Duration(rt.Policy.TimeoutMS)*time.Millisecond)

		for _, m := range rt.Methods {
			r.Handle(m, rt.Path, h)
		}
		if d.Log != nil {
			d.Log.Info("route mounted",
				zap.String("path", rt.Path),
				zap.Strings("methods", rt.Methods),
				zap.String("handler", string(rt.Handler.Type)),
				zap.Bool("authTrans", rt.AuthTrans != nil))
		}
	}
	return r.Mux()
}
