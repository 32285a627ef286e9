// core/handlers.go
package core

import (
	"context"
	"net/http"
	"sync"

	"github.com/joeydtaylor/steeze-bridge/pkg/bridge"
	"github.com/joeydtaylor/steeze-bridge/pkg/codec"
)

// InprocHandler is the signature for Go handlers referenced from the manifest.
// 'in' is the raw request body, 'status' is the HTTP status code to send.
type InprocHandler func(ctx context.Context, in []byte) (out []byte, status int, err error)

var (
	registryMu sync.RWMutex
	registry   = map[string]InprocHandler{}
)

// Register makes a handler available under a name referenced in manifest.toml.
func Register(name string, h InprocHandler) {
	registryMu.Lock()
	registry[name] = h
	registryMu.Unlock()
}

// Lookup retrieves a registered in-proc handler by name.
func Lookup(name string) (InprocHandler, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	h, ok := registry[name]
	return h, ok
}

// InfoHandlerName serves the bridge status as JSON.
const InfoHandlerName = "bridge.info"

type bridgeInfo struct {
	Module          string `json:"module"`
	Bootstrap       string `json:"bootstrap"`
	CriticalSection bool   `json:"critical_section"`
	Callback        bool   `json:"callback_registered"`
	GateHeld        bool   `json:"gate_held"`
}

func infoHandler(b *bridge.Bridge) InprocHandler {
	return func(context.Context, []byte) ([]byte, int, error) {
		if b == nil {
			return nil, http.StatusServiceUnavailable, errBridgeDown
		}
		d := b.Descriptor()
		info := bridgeInfo{
			Module:          d.Module,
			Bootstrap:       d.Bootstrap,
			CriticalSection: d.CriticalSection,
			Callback:        b.Registry().Current() != nil,
		}
		if g := b.Gate(); g != nil {
			info.GateHeld = g.Held()
		}
		out, err := codec.JSONStrict.Marshal(info)
		return out, http.StatusOK, err
	}
}
