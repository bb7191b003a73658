package grpcengine

import (
	"fmt"

	"github.com/grpcwire/engine/grpcserver"
	"github.com/grpcwire/engine/metadata"
)

// HandlerMap accumulates registered RPC handlers keyed by method path. It
// satisfies grpcserver.Router directly and can be shared across multiple
// grpcserver.Server instances the way grpchan's HandlerMap let the same
// registered service implementations back multiple transports — here the
// same map can back a grpcserver.Server and transport/inproc.Dial, and the
// reuse-the-map pattern also serves dispatch-policy layering such as Use
// below.
type HandlerMap map[metadata.Path]grpcserver.Handler

var _ grpcserver.Router = HandlerMap(nil)

// Handle registers h to serve calls to service/method. Re-registering an
// already-registered path panics, matching the teacher's
// already-registered-service panic.
func (m HandlerMap) Handle(service, method string, h grpcserver.Handler) {
	p := metadata.Path{Service: service, Method: method}
	if _, ok := m[p]; ok {
		panic(fmt.Sprintf("grpcengine: handler already registered for %s", p.String()))
	}
	m[p] = h
}

// Lookup implements grpcserver.Router.
func (m HandlerMap) Lookup(p metadata.Path) (grpcserver.Handler, bool) {
	h, ok := m[p]
	return h, ok
}

// ForEach calls fn once per registered (path, handler) pair.
func (m HandlerMap) ForEach(fn func(p metadata.Path, h grpcserver.Handler)) {
	for p, h := range m {
		fn(p, h)
	}
}

// Use returns a new HandlerMap with every handler wrapped by the given
// interceptor chain, leaving m itself untouched so the same base map can
// back differently-decorated servers (e.g. one with auth, one without,
// for an internal debug listener). With no interceptors it returns m itself.
func (m HandlerMap) Use(interceptors ...Interceptor) HandlerMap {
	if len(interceptors) == 0 {
		return m
	}
	chained := Chain(interceptors...)
	out := make(HandlerMap, len(m))
	for p, h := range m {
		out[p] = chained(h)
	}
	return out
}
