package manifest

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
)

// Route describes a single HTTP route.
type Route struct {
	Path        string         `toml:"path"`
	Method      string         `toml:"method"`
	Methods     []string       `toml:"methods"`
	ContentType string         `toml:"content_type"`
	Guard       Guard          `toml:"guard"`
	Policy      Policy         `toml:"policy"`
	Handler     HSpec          `toml:"handler"`
	AuthTrans   *AuthTransSpec `toml:"auth_trans"`
	Tags        []string       `toml:"tags"`
}

type Guard struct {
	Roles       []string `toml:"roles"`
	Users       []string `toml:"users"`
	RequireAuth bool     `toml:"require_auth"`
}

type Policy struct {
	TimeoutMS int `toml:"timeout_ms"`
}

// HSpec selects the handler. Params become the parameter block handed to the callback.
type HSpec struct {
	Type   HandlerType       `toml:"type"`
	Name   string            `toml:"name"`
	Params map[string]string `toml:"params"`
}

// AuthTransSpec runs the callback's AuthTrans on basic-auth credentials before the handler.
type AuthTransSpec struct {
	UserDB string            `toml:"userdb"`
	Realm  string            `toml:"realm"`
	Params map[string]string `toml:"params"`
}

var knownMethods = map[string]bool{
	http.MethodGet: true, http.MethodHead: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodPatch: true, http.MethodDelete: true, http.MethodOptions: true,
}

// normalize cleans the path and folds Method into Methods.
func (r *Route) normalize() error {
	if r.Path == "" {
		return errors.New("path is required")
	}
	if !strings.HasPrefix(r.Path, "/") {
		r.Path = "/" + r.Path
	}
	if r.Path != "/" && !strings.HasSuffix(r.Path, "/*") {
		r.Path = path.Clean(r.Path)
	}

	var ms []string
	if m := strings.TrimSpace(r.Method); m != "" {
		ms = append(ms, m)
	}
	ms = append(ms, r.Methods...)
	seen := map[string]bool{}
	var out []string
	for _, m := range ms {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	r.Methods = out
	if len(r.Methods) == 0 {
		r.Methods = []string{http.MethodGet}
	}
	r.Method = r.Methods[0]

	r.ContentType = strings.TrimSpace(r.ContentType)
	if a := r.AuthTrans; a != nil {
		a.UserDB = strings.TrimSpace(a.UserDB)
		if strings.TrimSpace(a.Realm) == "" {
			a.Realm = "bridge"
		}
	}
	return nil
}

// validate checks fields that are independent of global state.
func (r *Route) validate() error {
	switch r.Handler.Type {
	case HandlerBridgeService:
	case HandlerInproc:
		if strings.TrimSpace(r.Handler.Name) == "" {
			return errors.New("handler.name required for inproc")
		}
	default:
		return fmt.Errorf("unknown handler type %q", r.Handler.Type)
	}
	for _, m := range r.Methods {
		if !knownMethods[m] {
			return fmt.Errorf("method %q not supported", m)
		}
	}
	if r.AuthTrans != nil && r.AuthTrans.UserDB == "" {
		return errors.New("auth_trans.userdb is required")
	}
	if r.Policy.TimeoutMS < 0 {
		return errors.New("policy.timeout_ms must be >= 0")
	}
	return nil
}
