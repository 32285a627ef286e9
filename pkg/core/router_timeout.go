package core

import (
	"context"
	"net/http"
	"time"
)

// withTimeout bounds the request context; the Lua VM observes it, so a
// runaway script fails its dispatch instead of holding the VM.
func withTimeout(next http.HandlerFunc, d time.Duration) http.HandlerFunc {
	if d <= 0 {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		next(w, r.WithContext(ctx))
	}
}
