// pkg/host/session.go
package host

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"strings"
	"sync"

	chimd "github.com/go-chi/chi/v5/middleware"
	"github.com/joeydtaylor/steeze-bridge/pkg/pblock"
)

// Resolver is the reverse lookup used for Session.DNS. *net.Resolver satisfies it.
type Resolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Session is the host's view of one client connection for the lifetime of a request.
type Session struct {
	// Client carries "ip" and, once resolved, "dns".
	Client *pblock.Block

	w        http.ResponseWriter
	body     *bufio.Reader
	id       string
	ip       string
	resolver Resolver

	mu      sync.Mutex
	wrote   bool
	dnsDone bool
	dns     string
}

// SessionOption customizes NewSession.
type SessionOption func(*Session)

// WithResolver swaps the reverse DNS resolver.
func WithResolver(r Resolver) SessionOption { return func(s *Session) { s.resolver = r } }

// NewSession wraps the response writer and the request body of r.
func NewSession(w http.ResponseWriter, r *http.Request, opts ...SessionOption) *Session {
	ip := r.RemoteAddr
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = h
	}
	body := bufio.NewReader(http.NoBody)
	if r.Body != nil {
		body = bufio.NewReader(r.Body)
	}
	id := chimd.GetReqID(r.Context())
	if id == "" {
		id = "main"
	}
	s := &Session{
		Client:   pblock.FromPairs("ip", ip),
		w:        w,
		body:     body,
		id:       id,
		ip:       ip,
		resolver: net.DefaultResolver,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// DNS returns the client's reverse-resolved host name. The first lookup is cached,
// including a failed one.
func (s *Session) DNS(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dnsDone {
		s.dnsDone = true
		if s.resolver != nil && s.ip != "" {
			if names, err := s.resolver.LookupAddr(ctx, s.ip); err == nil && len(names) > 0 {
				s.dns = strings.TrimSuffix(names[0], ".")
				s.Client.Set("dns", s.dns)
			}
		}
	}
	return s.dns, s.dns != ""
}

// Write sends bytes to the client.
func (s *Session) Write(p []byte) (int, error) {
	s.mu.Lock()
	s.wrote = true
	s.mu.Unlock()
	return s.w.Write(p)
}

// Read consumes the request body.
func (s *Session) Read(p []byte) (int, error) { return s.body.Read(p) }

// ReadByte consumes one byte of the request body.
func (s *Session) ReadByte() (byte, error) { return s.body.ReadByte() }

// ID is the worker identity serving this session: the request id, or "main".
func (s *Session) ID() string { return s.id }

// Wrote reports whether anything was written through the session.
func (s *Session) Wrote() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wrote
}

// ResponseWriter exposes the underlying writer to the host.
func (s *Session) ResponseWriter() http.ResponseWriter { return s.w }
