package core

import (
	"fmt"
	"net/http"

	"github.com/joeydtaylor/steeze-bridge/pkg/bridge"
	"github.com/joeydtaylor/steeze-bridge/pkg/host"
	manifest "github.com/joeydtaylor/steeze-bridge/pkg/manifest"
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/auth"
)

func challenge(w http.ResponseWriter, realm string) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", realm))
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// withAuthTrans asks the callback's AuthTrans to accept basic credentials
// before the route runs. A request already carrying an authenticated user and
// no credentials passes through.
func withAuthTrans(next http.HandlerFunc, spec *manifest.AuthTransSpec, rt manifest.Route, d BuildDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pw, ok := r.BasicAuth()
		if !ok {
			if u, has := auth.UserFrom(r.Context()); has && u.Username != "" {
				next(w, r)
				return
			}
			challenge(w, spec.Realm)
			return
		}
		if d.Dispatch == nil {
			http.Error(w, "bridge unavailable", http.StatusServiceUnavailable)
			return
		}

		pb := paramBlock(spec.Params,
			"userdb", spec.UserDB,
			"user", user,
			"pw", pw,
			"auth-type", auth.ProviderBasic,
		)
		sn := host.NewSession(w, r)
		rq := hostRequest(r, rt)

		switch d.Dispatch.AuthTrans(r.Context(), pb, sn, rq) {
		case bridge.Proceed:
			u := auth.User{
				Username:             user,
				AuthenticationSource: auth.AuthenticationSource{Provider: auth.ProviderBasic},
			}
			next(w, r.WithContext(auth.WithUser(r.Context(), u)))
		case bridge.NoAction:
			if !rq.Started() && !sn.Wrote() {
				challenge(w, spec.Realm)
			}
		case bridge.Exit:
			panic(http.ErrAbortHandler)
		default:
			if !rq.Started() && !sn.Wrote() {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}
	}
}
