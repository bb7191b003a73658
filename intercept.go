package grpcengine

import "github.com/grpcwire/engine/grpcserver"

// Interceptor wraps a Handler with cross-cutting behavior (auth, logging,
// recovery, rate limiting). Because every RPC shape — unary, server-
// streaming, client-streaming, bidi — is the same grpcserver.Handler type
// in this engine, a single Interceptor shape covers what grpchan's
// intercept.go needed a separate unary/stream pair for.
type Interceptor func(next grpcserver.Handler) grpcserver.Handler

// Chain composes interceptors into one, applied in order: the first
// interceptor given is the outermost, so it runs first and its call to
// next reaches the second interceptor, and so on down to final.
func Chain(interceptors ...Interceptor) Interceptor {
	return func(final grpcserver.Handler) grpcserver.Handler {
		h := final
		for i := len(interceptors) - 1; i >= 0; i-- {
			h = interceptors[i](h)
		}
		return h
	}
}
