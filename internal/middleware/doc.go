// Package middleware provides HTTP middleware for the planner API.
//
// # Available Middleware
//
//   - RequestID: assigns or propagates X-Request-ID
//   - Logger: structured request logging through an injected slog.Logger
//   - Recovery: converts panics into RFC 9457 500 responses
//   - CORS: origin allow-list and preflight handling
//
// Compose them with Chain, outermost first:
//
//	wrapped := middleware.Chain(mux,
//	    middleware.RequestID,
//	    middleware.Logger(logger),
//	    middleware.Recovery(logger),
//	    middleware.CORS(cfg.Server.AllowedOrigins),
//	)
//
// # Context Values
//
//   - GetRequestID(ctx): Returns unique request identifier
package middleware
