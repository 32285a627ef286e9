package core

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/joeydtaylor/steeze-bridge/pkg/bridge"
	"github.com/joeydtaylor/steeze-bridge/pkg/host"
	manifest "github.com/joeydtaylor/steeze-bridge/pkg/manifest"
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-bridge/pkg/pblock"
)

// paramBlock turns configured params into a block, in key order.
func paramBlock(params map[string]string, extra ...string) *pblock.Block {
	pb := pblock.FromPairs(extra...)
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pb.NVInsert(k, params[k])
	}
	return pb
}

// hostRequest snapshots r and fills the server variables the callback reads.
func hostRequest(r *http.Request, rt manifest.Route) *host.Request {
	rq := host.NewRequest(r, rt.ContentType)
	if rest := chi.URLParam(r, "*"); rest != "" {
		rq.Vars.Set("path-info", "/"+rest)
	}
	if u, ok := auth.UserFrom(r.Context()); ok && u.Username != "" {
		rq.Vars.Set("auth-user", u.Username)
		rq.Vars.Set("auth-type", u.AuthenticationSource.Provider)
		if u.Role.Name != "" {
			rq.Vars.Set("auth-role", u.Role.Name)
		}
	}
	return rq
}

func serviceHandler(rt manifest.Route, d BuildDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Dispatch == nil {
			http.Error(w, "bridge unavailable", http.StatusServiceUnavailable)
			return
		}
		sn := host.NewSession(w, r)
		rq := hostRequest(r, rt)
		code := d.Dispatch.Service(r.Context(), paramBlock(rt.Handler.Params), sn, rq)
		applyService(w, sn, rq, code)
	}
}

// applyService finishes the response according to the Service control code.
func applyService(w http.ResponseWriter, sn *host.Session, rq *host.Request, code bridge.ControlCode) {
	responded := rq.Started() || sn.Wrote()
	switch code {
	case bridge.Proceed:
		if !responded {
			_, _ = rq.StartResponse(sn)
		}
	case bridge.NoAction:
		if !responded {
			http.Error(w, "404 page not found", http.StatusNotFound)
		}
	case bridge.Exit:
		panic(http.ErrAbortHandler)
	default:
		if !responded {
			status := rq.Status()
			if status < http.StatusBadRequest {
				status = http.StatusInternalServerError
			}
			http.Error(w, http.StatusText(status), status)
		}
	}
}
