package manifest

// HandlerType enumerates the supported handler kinds.
type HandlerType string

const (
	// HandlerBridgeService dispatches the request to the callback's Service.
	HandlerBridgeService HandlerType = "bridge.service"
	// HandlerInproc runs a Go handler registered with core.Register.
	HandlerInproc HandlerType = "inproc"
)
