package host

import "net/http"

// protocolStatus maps the fixed protocol status tokens to HTTP codes.
var protocolStatus = map[string]int{
	"PROTOCOL_OK":                 http.StatusOK,
	"PROTOCOL_NO_RESPONSE":        http.StatusNoContent,
	"PROTOCOL_REDIRECT":           http.StatusFound,
	"PROTOCOL_NOT_MODIFIED":       http.StatusNotModified,
	"PROTOCOL_BAD_REQUEST":        http.StatusBadRequest,
	"PROTOCOL_UNAUTHORIZED":       http.StatusUnauthorized,
	"PROTOCOL_FORBIDDEN":          http.StatusForbidden,
	"PROTOCOL_NOT_FOUND":          http.StatusNotFound,
	"PROTOCOL_PROXY_UNAUTHORIZED": http.StatusProxyAuthRequired,
	"PROTOCOL_SERVER_ERROR":       http.StatusInternalServerError,
	"PROTOCOL_NOT_IMPLEMENTED":    http.StatusNotImplemented,
}

// ParseStatus resolves a protocol status token. Unknown tokens resolve to
// forbidden and ok is false.
func ParseStatus(token string) (code int, ok bool) {
	if c, found := protocolStatus[token]; found {
		return c, true
	}
	return http.StatusForbidden, false
}

// StatusTokens lists every recognized token, for publishing into runtimes.
func StatusTokens() map[string]int {
	out := make(map[string]int, len(protocolStatus))
	for k, v := range protocolStatus {
		out[k] = v
	}
	return out
}
