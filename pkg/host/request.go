// pkg/host/request.go
package host

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/joeydtaylor/steeze-bridge/pkg/pblock"
)

// StartResult is the outcome of a successful StartResponse.
type StartResult int

const (
	// Started means headers went out and a body may follow.
	Started StartResult = iota
	// NoBody means headers went out but the request wants no body (HEAD, 204, 304).
	NoBody
)

// ErrAlreadyStarted is returned by a second StartResponse.
var ErrAlreadyStarted = errors.New("host: response already started")

// Request is the host's view of one HTTP request and its pending response.
type Request struct {
	// ReqPB holds method, uri, protocol, query and clf-request.
	ReqPB *pblock.Block
	// Headers holds the client headers, lower-cased, one pair per value.
	Headers *pblock.Block
	// SrvHdrs holds the response headers sent by StartResponse.
	SrvHdrs *pblock.Block
	// Vars holds server-computed variables (path, path-info, auth-user, auth-type).
	Vars *pblock.Block

	method string

	mu      sync.Mutex
	status  int
	started bool
}

// NewRequest snapshots r into host blocks. contentType seeds SrvHdrs when non-empty.
func NewRequest(r *http.Request, contentType string) *Request {
	uri := r.URL.RequestURI()
	rq := &Request{
		ReqPB: pblock.FromPairs(
			"method", r.Method,
			"uri", r.URL.Path,
			"protocol", r.Proto,
			"clf-request", fmt.Sprintf("%s %s %s", r.Method, uri, r.Proto),
		),
		Headers: pblock.FromHeader(r.Header),
		SrvHdrs: pblock.New(),
		Vars:    pblock.FromPairs("path", r.URL.Path),
		method:  r.Method,
	}
	if q := r.URL.RawQuery; q != "" {
		rq.ReqPB.NVInsert("query", q)
	}
	if contentType != "" {
		rq.SrvHdrs.NVInsert("content-type", contentType)
	}
	return rq
}

// Header returns the first client header value for name (case-insensitive).
func (rq *Request) Header(name string) (string, bool) {
	return rq.Headers.FindVal(strings.ToLower(name))
}

// SetStatus records the status StartResponse will send.
func (rq *Request) SetStatus(code int) {
	rq.mu.Lock()
	rq.status = code
	rq.mu.Unlock()
}

// Status is the recorded status, zero when none was set.
func (rq *Request) Status() int {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	return rq.status
}

// Started reports whether StartResponse sent the headers.
func (rq *Request) Started() bool {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	return rq.started
}

// StartResponse copies SrvHdrs to the client and writes the status line (200 when unset).
func (rq *Request) StartResponse(sn *Session) (StartResult, error) {
	if sn == nil {
		return Started, errors.New("host: nil session")
	}
	rq.mu.Lock()
	if rq.started {
		rq.mu.Unlock()
		return Started, ErrAlreadyStarted
	}
	rq.started = true
	if rq.status == 0 {
		rq.status = http.StatusOK
	}
	status := rq.status
	rq.mu.Unlock()

	h := sn.ResponseWriter().Header()
	seen := map[string]bool{}
	for _, p := range rq.SrvHdrs.Params() {
		if !seen[p.Name] {
			h.Del(p.Name)
			seen[p.Name] = true
		}
		h.Add(p.Name, p.Value)
	}
	sn.ResponseWriter().WriteHeader(status)

	if rq.method == http.MethodHead || status == http.StatusNoContent || status == http.StatusNotModified {
		return NoBody, nil
	}
	return Started, nil
}
