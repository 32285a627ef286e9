// pkg/luart/proxies.go
package luart

import (
	"github.com/joeydtaylor/steeze-bridge/pkg/bridge"
	lua "github.com/yuin/gopher-lua"
)

const (
	pblockTypeName  = "bridge.pblock"
	sessionTypeName = "bridge.session"
	requestTypeName = "bridge.request"
)

var pblockMethods = map[string]lua.LGFunction{
	"findval":       pblockFindVal,
	"nvinsert":      pblockNVInsert,
	"remove":        pblockRemove,
	"pblock_remove": pblockRemove,
	"pblock2str":    pblockString,
	"items":         pblockItems,
}

var sessionMethods = map[string]lua.LGFunction{
	"session_dns": sessionDNS,
	"net_write":   sessionNetWrite,
	"form_data":   sessionFormData,
	"client":      sessionClient,
}

var requestMethods = map[string]lua.LGFunction{
	"request_header":  requestHeader,
	"start_response":  requestStartResponse,
	"protocol_status": requestProtocolStatus,
	"log_error":       requestLogError,
}

func registerProxyTypes(L *lua.LState) {
	mt := L.NewTypeMetatable(pblockTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), pblockMethods))
	L.SetField(mt, "__tostring", L.NewFunction(pblockString))

	mt = L.NewTypeMetatable(sessionTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), sessionMethods))

	mt = L.NewTypeMetatable(requestTypeName)
	L.SetField(mt, "__index", L.NewFunction(requestIndex))

	registerCriticalType(L)
}

func newUserData(L *lua.LState, v any, typeName string) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = v
	L.SetMetatable(ud, L.GetTypeMetatable(typeName))
	return ud
}

func pushPBlock(L *lua.LState, p *bridge.ParamBlock) {
	L.Push(newUserData(L, p, pblockTypeName))
}

func checkPBlock(L *lua.LState, n int) *bridge.ParamBlock {
	if p, ok := L.CheckUserData(n).Value.(*bridge.ParamBlock); ok {
		return p
	}
	L.ArgError(n, "TypeError: parameter block expected")
	return nil
}

func checkSession(L *lua.LState, n int) *bridge.Session {
	if s, ok := L.CheckUserData(n).Value.(*bridge.Session); ok {
		return s
	}
	L.ArgError(n, "TypeError: session expected")
	return nil
}

func checkRequest(L *lua.LState, n int) *bridge.Request {
	if r, ok := L.CheckUserData(n).Value.(*bridge.Request); ok {
		return r
	}
	L.ArgError(n, "TypeError: request expected")
	return nil
}

// optSession returns the session at n, or nil for anything else; the proxy
// reports the mismatch.
func optSession(L *lua.LState, n int) *bridge.Session {
	if ud, ok := L.Get(n).(*lua.LUserData); ok {
		if s, ok := ud.Value.(*bridge.Session); ok {
			return s
		}
	}
	return nil
}

// ---------- pblock ----------

func pblockFindVal(L *lua.LState) int {
	p := checkPBlock(L, 1)
	v, err := p.FindVal(L.CheckString(2))
	if err != nil {
		raise(L, err)
	}
	L.Push(lua.LString(v))
	return 1
}

func pblockNVInsert(L *lua.LState) int {
	p := checkPBlock(L, 1)
	if err := p.NVInsert(L.CheckString(2), L.CheckString(3)); err != nil {
		raise(L, err)
	}
	return 0
}

func pblockRemove(L *lua.LState) int {
	p := checkPBlock(L, 1)
	if err := p.Remove(L.CheckString(2)); err != nil {
		raise(L, err)
	}
	return 0
}

func pblockString(L *lua.LState) int {
	p := checkPBlock(L, 1)
	s, err := p.Serialize()
	if err != nil {
		raise(L, err)
	}
	L.Push(lua.LString(s))
	return 1
}

func pblockItems(L *lua.LState) int {
	p := checkPBlock(L, 1)
	params, err := p.Params()
	if err != nil {
		raise(L, err)
	}
	out := L.CreateTable(len(params), 0)
	for _, kv := range params {
		item := L.CreateTable(0, 2)
		item.RawSetString("name", lua.LString(kv.Name))
		item.RawSetString("value", lua.LString(kv.Value))
		out.Append(item)
	}
	L.Push(out)
	return 1
}

// ---------- session ----------

func sessionDNS(L *lua.LState) int {
	s := checkSession(L, 1)
	name, ok, err := s.DNS()
	if err != nil {
		raise(L, err)
	}
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(name))
	return 1
}

func sessionNetWrite(L *lua.LState) int {
	s := checkSession(L, 1)
	if err := s.NetWrite([]byte(L.CheckString(2))); err != nil {
		raise(L, err)
	}
	return 0
}

func sessionFormData(L *lua.LState) int {
	s := checkSession(L, 1)
	b, err := s.FormData(L.CheckInt(2))
	if err != nil {
		raise(L, err)
	}
	L.Push(lua.LString(b))
	return 1
}

func sessionClient(L *lua.LState) int {
	s := checkSession(L, 1)
	p, err := s.Client()
	if err != nil {
		raise(L, err)
	}
	pushPBlock(L, p)
	return 1
}

// ---------- request ----------

// requestIndex resolves the fixed sub-blocks as fields and the accessors as methods.
func requestIndex(L *lua.LState) int {
	r := checkRequest(L, 1)
	key := L.CheckString(2)
	if m, ok := bridge.ParseMember(key); ok {
		p, err := r.Block(m)
		if err != nil {
			raise(L, err)
		}
		pushPBlock(L, p)
		return 1
	}
	if fn, ok := requestMethods[key]; ok {
		L.Push(L.NewFunction(fn))
		return 1
	}
	L.Push(lua.LNil)
	return 1
}

func requestHeader(L *lua.LState) int {
	r := checkRequest(L, 1)
	v, ok, err := r.Header(L.CheckString(2), optSession(L, 3))
	if err != nil {
		raise(L, err)
	}
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(v))
	return 1
}

func requestStartResponse(L *lua.LState) int {
	r := checkRequest(L, 1)
	out, err := r.StartResponse(optSession(L, 2))
	if err != nil {
		raise(L, err)
	}
	L.Push(lua.LString(out.String()))
	return 1
}

func requestProtocolStatus(L *lua.LState) int {
	r := checkRequest(L, 1)
	if err := r.ProtocolStatus(optSession(L, 2), L.CheckString(3)); err != nil {
		raise(L, err)
	}
	return 0
}

func requestLogError(L *lua.LState) int {
	r := checkRequest(L, 1)
	if err := r.LogError(L.CheckString(2), L.CheckString(3), optSession(L, 4)); err != nil {
		raise(L, err)
	}
	return 0
}
