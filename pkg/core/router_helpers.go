package core

import (
	"errors"
	"io"
	"net/http"

	manifest "github.com/joeydtaylor/steeze-bridge/pkg/manifest"
)

var errBridgeDown = errors.New("bridge not initialized")

func writeJSON(w http.ResponseWriter, payload []byte, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if len(payload) > 0 {
		_, _ = w.Write(payload)
		return
	}
	_, _ = w.Write([]byte(`{}`))
}

func statusIf(s, def int) int {
	if s > 0 {
		return s
	}
	return def
}

func inprocHandler(rt manifest.Route, d BuildDeps) http.HandlerFunc {
	h, ok := Lookup(rt.Handler.Name)
	if !ok && rt.Handler.Name == InfoHandlerName {
		h, ok = infoHandler(d.Bridge), true
	}
	if !ok {
		return func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "handler not found", http.StatusInternalServerError)
		}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		out, status, err := h(r.Context(), body)
		if err != nil {
			http.Error(w, err.Error(), statusIf(status, http.StatusInternalServerError))
			return
		}
		writeJSON(w, out, statusIf(status, http.StatusOK))
	}
}

func wrapRoute(rt manifest.Route, d BuildDeps) http.HandlerFunc {
	switch rt.Handler.Type {
	case manifest.HandlerInproc:
		return inprocHandler(rt, d)
	case manifest.HandlerBridgeService:
		return serviceHandler(rt, d)
	default:
		return func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "unknown handler type", http.StatusInternalServerError)
		}
	}
}
