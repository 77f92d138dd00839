package middleware

import (
	"time"

	"github.com/valyala/fasthttp"

	httpctx "strideminder/internal/http/ctx"
	"strideminder/internal/telemetry"
)

// Route tags the request with its route pattern for Instrument.
func Route(pattern string, next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		httpctx.SetRoute(ctx, pattern)
		next(ctx)
	}
}

// Instrument records request counts and durations for every request,
// labelled by the pattern set with Route.
func Instrument(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		telemetry.ObserveRequest(httpctx.RouteFromCtx(ctx), string(ctx.Method()), ctx.Response.StatusCode(), time.Since(start))
	}
}
