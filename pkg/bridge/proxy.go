// pkg/bridge/proxy.go
package bridge

import (
	"context"
	"fmt"
	"io"

	"github.com/joeydtaylor/steeze-bridge/pkg/bridge/gate"
	"github.com/joeydtaylor/steeze-bridge/pkg/host"
	"github.com/joeydtaylor/steeze-bridge/pkg/pblock"
)

// ---------- Scope ----------

type disposable interface{ dispose() }

// Scope ties the proxies of one dispatch together. Dispose ends every proxy
// exactly once; later use fails with ErrProxyReleased.
type Scope struct {
	ctx      context.Context
	log      *Logger
	proxies  []disposable
	disposed bool
}

// NewScope starts a dispatch scope.
func NewScope(ctx context.Context, l *Logger) *Scope {
	if l == nil {
		l = NewLogger(nil)
	}
	return &Scope{ctx: ctx, log: l}
}

// Context is the dispatch context.
func (s *Scope) Context() context.Context { return s.ctx }

// Owner is the gate owner of this dispatch.
func (s *Scope) Owner() gate.Owner { return gate.OwnerFrom(s.ctx) }

// Len is the number of live proxies.
func (s *Scope) Len() int {
	if s.disposed {
		return 0
	}
	return len(s.proxies)
}

// Dispose releases every proxy built in the scope. Calling it again is a no-op.
func (s *Scope) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	for i := len(s.proxies) - 1; i >= 0; i-- {
		s.proxies[i].dispose()
	}
	s.proxies = nil
}

func (s *Scope) track(p disposable) error {
	if s.disposed {
		return ErrProxyReleased
	}
	s.proxies = append(s.proxies, p)
	return nil
}

type proxyBase struct {
	scope    *Scope
	released bool
}

func (p *proxyBase) dispose() { p.released = true }

func (p *proxyBase) live() error {
	if p == nil || p.released {
		return ErrProxyReleased
	}
	return nil
}

// Released reports whether the proxy's dispatch ended.
func (p *proxyBase) Released() bool { return p.released }

// ---------- ParamBlock ----------

// ParamBlock is a non-owning view of a host parameter block.
type ParamBlock struct {
	proxyBase
	pb *pblock.Block
}

// ParamBlock wraps pb for the duration of the scope.
func (s *Scope) ParamBlock(pb *pblock.Block) (*ParamBlock, error) {
	if pb == nil {
		return nil, fmt.Errorf("parameter block: %w", ErrNilNative)
	}
	p := &ParamBlock{proxyBase: proxyBase{scope: s}, pb: pb}
	if err := s.track(p); err != nil {
		return nil, err
	}
	return p, nil
}

// FindVal returns the first value for name.
func (p *ParamBlock) FindVal(name string) (string, error) {
	if err := p.live(); err != nil {
		return "", err
	}
	v, ok := p.pb.FindVal(name)
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// NVInsert appends a pair.
func (p *ParamBlock) NVInsert(name, value string) error {
	if err := p.live(); err != nil {
		return err
	}
	p.pb.NVInsert(name, value)
	return nil
}

// Remove drops the first pair named name. Absent names are ignored.
func (p *ParamBlock) Remove(name string) error {
	if err := p.live(); err != nil {
		return err
	}
	if removed := p.pb.Remove(name); removed != nil {
		removed.Free()
	}
	return nil
}

// Serialize renders the block in its textual form.
func (p *ParamBlock) Serialize() (string, error) {
	if err := p.live(); err != nil {
		return "", err
	}
	return p.pb.String(), nil
}

// Params returns the pairs in order.
func (p *ParamBlock) Params() ([]pblock.Param, error) {
	if err := p.live(); err != nil {
		return nil, err
	}
	return p.pb.Params(), nil
}

// ---------- Session ----------

// Session is a non-owning view of the host session.
type Session struct {
	proxyBase
	sn *host.Session
}

// Session wraps sn for the duration of the scope.
func (s *Scope) Session(sn *host.Session) (*Session, error) {
	if sn == nil {
		return nil, fmt.Errorf("session: %w", ErrNilNative)
	}
	p := &Session{proxyBase: proxyBase{scope: s}, sn: sn}
	if err := s.track(p); err != nil {
		return nil, err
	}
	return p, nil
}

// DNS returns the client's host name; ok is false when it cannot be resolved.
func (p *Session) DNS() (name string, ok bool, err error) {
	if err := p.live(); err != nil {
		return "", false, err
	}
	name, ok = p.sn.DNS(p.scope.ctx)
	return name, ok, nil
}

// NetWrite sends b to the client. Failures are not retried.
func (p *Session) NetWrite(b []byte) error {
	if err := p.live(); err != nil {
		return err
	}
	if _, err := p.sn.Write(b); err != nil {
		return &IOError{Op: "net_write", Err: err}
	}
	return nil
}

// FormData reads up to n bytes of the request body. It returns exactly the bytes
// read: fewer than n at end of body, none when a read error occurs before the
// first byte, and the partial data when one occurs later.
func (p *Session) FormData(n int) ([]byte, error) {
	if err := p.live(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, ErrInvalidLength
	}
	// n is client controlled (usually content-length), so the buffer grows with
	// what actually arrives.
	buf, err := io.ReadAll(io.LimitReader(p.sn, int64(n)))
	if err != nil {
		p.scope.log.Warnf(p.scope.ctx, "form_data", "read failed after %d bytes: %v", len(buf), err)
	}
	return buf, nil
}

// Client returns the client parameter block ("ip", and "dns" once resolved).
func (p *Session) Client() (*ParamBlock, error) {
	if err := p.live(); err != nil {
		return nil, err
	}
	return p.scope.ParamBlock(p.sn.Client)
}

// ---------- Request ----------

// Member names the fixed request sub-blocks.
type Member int

const (
	ReqPB Member = iota
	SrvHdrs
	Vars
	Headers
)

var memberNames = map[Member]string{
	ReqPB:   "reqpb",
	SrvHdrs: "srvhdrs",
	Vars:    "vars",
	Headers: "headers",
}

func (m Member) String() string {
	if n, ok := memberNames[m]; ok {
		return n
	}
	return fmt.Sprintf("Member(%d)", int(m))
}

// ParseMember resolves a sub-block name.
func ParseMember(name string) (Member, bool) {
	for m, n := range memberNames {
		if n == name {
			return m, true
		}
	}
	return 0, false
}

// StartOutcome is the result of Request.StartResponse.
type StartOutcome int

const (
	StartSucceeded StartOutcome = iota
	StartNoAction
	StartFailed
)

func (o StartOutcome) String() string {
	switch o {
	case StartSucceeded:
		return "PROCEED"
	case StartNoAction:
		return "NO_ACTION"
	default:
		return "ABORTED"
	}
}

// Request is a non-owning view of the host request.
type Request struct {
	proxyBase
	rq *host.Request

	started   bool
	lastStart StartOutcome

	// one view per member, built on first use
	blocks map[Member]*ParamBlock
}

// Request wraps rq for the duration of the scope.
func (s *Scope) Request(rq *host.Request) (*Request, error) {
	if rq == nil {
		return nil, fmt.Errorf("request: %w", ErrNilNative)
	}
	p := &Request{proxyBase: proxyBase{scope: s}, rq: rq}
	if err := s.track(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Request) session(sn *Session) (*host.Session, error) {
	if sn == nil || sn.scope != p.scope {
		return nil, ErrSessionMismatch
	}
	if err := sn.live(); err != nil {
		return nil, err
	}
	return sn.sn, nil
}

// Header returns the first value of a client header (case-insensitive).
func (p *Request) Header(name string, sn *Session) (string, bool, error) {
	if err := p.live(); err != nil {
		return "", false, err
	}
	if _, err := p.session(sn); err != nil {
		return "", false, err
	}
	v, ok := p.rq.Header(name)
	return v, ok, nil
}

// StartResponse sends the status line and SrvHdrs. The outcome is recorded on the proxy.
func (p *Request) StartResponse(sn *Session) (StartOutcome, error) {
	if err := p.live(); err != nil {
		return StartFailed, err
	}
	hs, err := p.session(sn)
	if err != nil {
		return StartFailed, err
	}
	res, err := p.rq.StartResponse(hs)
	out := StartSucceeded
	switch {
	case err != nil:
		p.scope.log.Warnf(p.scope.ctx, "start_response", "%v", err)
		out = StartFailed
	case res == host.NoBody:
		out = StartNoAction
	}
	p.started, p.lastStart = true, out
	return out, nil
}

// LastStart reports the outcome of the most recent StartResponse, if any.
func (p *Request) LastStart() (StartOutcome, bool) { return p.lastStart, p.started }

// ProtocolStatus sets the response status from a PROTOCOL_* token. Unknown tokens
// mean forbidden.
func (p *Request) ProtocolStatus(sn *Session, token string) error {
	if err := p.live(); err != nil {
		return err
	}
	if _, err := p.session(sn); err != nil {
		return err
	}
	code, ok := host.ParseStatus(token)
	if !ok {
		p.scope.log.Warnf(p.scope.ctx, "protocol_status", "unknown status %q, using PROTOCOL_FORBIDDEN", token)
	}
	p.rq.SetStatus(code)
	return nil
}

// Block returns a view of one of the request's sub-blocks. Repeated calls for
// the same member return the same view.
func (p *Request) Block(m Member) (*ParamBlock, error) {
	if err := p.live(); err != nil {
		return nil, err
	}
	if v, ok := p.blocks[m]; ok {
		return v, nil
	}
	var pb *pblock.Block
	switch m {
	case ReqPB:
		pb = p.rq.ReqPB
	case SrvHdrs:
		pb = p.rq.SrvHdrs
	case Vars:
		pb = p.rq.Vars
	case Headers:
		pb = p.rq.Headers
	default:
		return nil, ErrUnknownMember
	}
	v, err := p.scope.ParamBlock(pb)
	if err != nil {
		return nil, err
	}
	if p.blocks == nil {
		p.blocks = make(map[Member]*ParamBlock, len(memberNames))
	}
	p.blocks[m] = v
	return v, nil
}

// LogError writes a warning to the host log on behalf of the callback.
func (p *Request) LogError(fn, msg string, sn *Session) error {
	if err := p.live(); err != nil {
		return err
	}
	if _, err := p.session(sn); err != nil {
		return err
	}
	p.scope.log.Warnf(p.scope.ctx, fn, "%s", msg)
	return nil
}
