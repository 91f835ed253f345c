// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jeranaias/parley/internal/request"
)

// Middleware decorates a Gateway.
type Middleware func(Gateway) Gateway

// Chain applies middlewares so that the first one is outermost.
func Chain(g Gateway, mws ...Middleware) Gateway {
	for i := len(mws) - 1; i >= 0; i-- {
		g = mws[i](g)
	}
	return g
}

// WithTimeout bounds every call. Non-positive durations disable it.
func WithTimeout(d time.Duration) Middleware {
	return func(next Gateway) Gateway {
		if d <= 0 {
			return next
		}
		return Func(func(ctx context.Context, req *request.TurnRequest) (string, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			text, err := next.Generate(ctx, req)
			if err != nil && ctx.Err() == context.DeadlineExceeded {
				return "", &Error{Reason: ReasonTimeout, Message: "no reply within " + d.String(), Err: err}
			}
			return text, err
		})
	}
}

// WithRateLimit spaces calls to at most perMinute per minute with a burst
// of one. Zero or negative disables it. Waiting respects ctx.
func WithRateLimit(perMinute int) Middleware {
	return func(next Gateway) Gateway {
		if perMinute <= 0 {
			return next
		}
		limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
		return Func(func(ctx context.Context, req *request.TurnRequest) (string, error) {
			if err := limiter.Wait(ctx); err != nil {
				return "", &Error{Reason: ReasonRateLimit, Message: "local request limit", Err: err}
			}
			return next.Generate(ctx, req)
		})
	}
}

// WithLogging logs each call's outcome and latency. Credentials and
// message text are never logged.
func WithLogging(logger zerolog.Logger) Middleware {
	return func(next Gateway) Gateway {
		return Func(func(ctx context.Context, req *request.TurnRequest) (string, error) {
			start := time.Now()
			logger.Debug().
				Str("model", req.Model).
				Str("kind", req.Kind.String()).
				Int("turns", len(req.Turns)).
				Msg("Sending model request")

			text, err := next.Generate(ctx, req)

			ev := logger.Info()
			if err != nil {
				ev = logger.Warn().Err(err)
			}
			ev.Str("model", req.Model).
				Dur("latency", time.Since(start)).
				Int("reply_chars", len(text)).
				Msg("Model request finished")
			return text, err
		})
	}
}
