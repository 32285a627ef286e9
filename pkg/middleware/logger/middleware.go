package logger

import (
	"bytes"
	"io"
	"net/http"
	"time"

	chimd "github.com/go-chi/chi/v5/middleware"
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/auth"
	"go.uber.org/zap"
)

// Middleware writes one access-log entry per request.
type Middleware struct {
	access *zap.Logger
}

// New returns a middleware logging to l (the shared http-access.log when nil).
func New(l *zap.Logger) *Middleware { return &Middleware{access: l} }

func (m *Middleware) Middleware(ca *auth.Middleware) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := m.access
			if l == nil {
				l = accessLogger()
			}
			ww := chimd.NewWrapResponseWriter(w, r.ProtoMajor)

			// Allowlisted bodies are read and restored so the handler can still consume them.
			var body []byte
			if r.Body != nil && wantsBody(r) {
				if b, err := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody+1)); err == nil {
					body = b
				}
				r.Body = struct {
					io.Reader
					io.Closer
				}{io.MultiReader(bytes.NewReader(body), r.Body), r.Body}
			}

			scheme := "http"
			if r.TLS != nil {
				scheme = "https"
			}

			start := time.Now()
			defer func() {
				var u auth.User
				isAuth := false
				if ca != nil {
					isAuth = ca.IsAuthenticated(r.Context())
					u = ca.GetUser(r.Context())
				}

				log := l.With(
					zap.String("dateTime", start.UTC().Format(time.RFC1123)),
					zap.String("requestId", chimd.GetReqID(r.Context())),
					zap.String("httpScheme", scheme),
					zap.Bool("isAuthenticated", isAuth),
					zap.String("username", u.Username),
					zap.String("role", u.Role.Name),
					zap.String("authenticationProvider", u.AuthenticationSource.Provider),
					zap.String("httpProto", r.Proto),
					zap.String("httpMethod", r.Method),
					zap.String("remoteAddr", r.RemoteAddr),
					zap.String("uri", r.URL.Path),
					zap.Duration("lat", time.Since(start)),
					zap.Int("responseSize", ww.BytesWritten()),
					zap.Int("status", ww.Status()),
				)
				if len(body) > 0 && len(body) <= maxLoggedBody {
					log.Info("", zap.ByteString("requestData", body))
					return
				}
				log.Info("")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
