package core

import (
	"context"
	"net/http"

	"github.com/joeydtaylor/steeze-bridge/pkg/bridge"
	"github.com/joeydtaylor/steeze-bridge/pkg/host"
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-bridge/pkg/pblock"
	httpx "github.com/joeydtaylor/steeze-bridge/pkg/transport/httpx"
	"go.uber.org/zap"
)

// Dispatch is the part of the bridge the routes call into.
type Dispatch interface {
	Service(ctx context.Context, pb *pblock.Block, sn *host.Session, rq *host.Request) bridge.ControlCode
	AuthTrans(ctx context.Context, pb *pblock.Block, sn *host.Session, rq *host.Request) bridge.ControlCode
}

type BuildDeps struct {
	Auth     *auth.Middleware
	LogMW    *logger.Middleware
	Metrics  http.Handler
	Router   httpx.Router
	Dispatch Dispatch
	// Bridge backs the bridge.info handler; optional.
	Bridge *bridge.Bridge
	Log    *zap.Logger
}
