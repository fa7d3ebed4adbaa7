// Package kit holds the small transport-agnostic plumbing shared by the
// HTTP and MCP surfaces: the endpoint abstraction, middleware chaining,
// and request-scoped context values.
package kit

import (
	"context"
	"log/slog"
)

// Endpoint is a transport-agnostic operation: decoded request in, encoded
// response out. HTTP handlers and MCP tools both wrap one.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behavior.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so the first listed runs outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logged returns a middleware that logs each invocation of op with the
// caller identity carried in the context.
func Logged(logger *slog.Logger, op string) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			log := logger.With("op", op,
				"transport", GetTransport(ctx),
				"remote_addr", GetRemoteAddr(ctx),
				"request_id", GetRequestID(ctx))
			resp, err := next(ctx, req)
			if err != nil {
				log.Warn("endpoint failed", "error", err)
				return nil, err
			}
			log.Debug("endpoint ok")
			return resp, nil
		}
	}
}
