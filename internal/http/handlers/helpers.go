package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/valyala/fasthttp"

	"strideminder/internal/aggregate"
	dbpkg "strideminder/internal/db"
	"strideminder/internal/gait"
	httpctx "strideminder/internal/http/ctx"
)

// requestTimeout bounds the storage and queue calls made for one request.
const requestTimeout = 30 * time.Second

// RequestLogger returns fasthttp middleware that logs method, path, status, duration.
func RequestLogger(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		slog.Info("request",
			slog.String("method", string(ctx.Method())),
			slog.String("path", string(ctx.Path())),
			slog.Int("status", ctx.Response.StatusCode()),
			slog.Duration("took", time.Since(start)),
			slog.String("ip", ctx.RemoteIP().String()))
	}
}

// MustDevice returns the authenticated device, or sends 401 and returns (nil, false).
func MustDevice(ctx *fasthttp.RequestCtx) (*dbpkg.Device, bool) {
	dev, ok := httpctx.DeviceFromCtx(ctx)
	if !ok {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		ctx.SetBodyString("unauthorized")
		return nil, false
	}
	return dev, true
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

func jsonResponse(ctx *fasthttp.RequestCtx, data map[string]any) {
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(data)
	ctx.SetBody(body)
}

func errResponse(ctx *fasthttp.RequestCtx, code int, msg string) {
	ctx.SetStatusCode(code)
	ctx.SetBodyString(msg)
}

// failResponse maps pipeline and storage errors to status codes.
func failResponse(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, gait.ErrInsufficientData), errors.Is(err, gait.ErrDegenerateSignal):
		errResponse(ctx, fasthttp.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, aggregate.ErrStorage):
		slog.Error("storage failure", slog.Any("err", err))
		errResponse(ctx, fasthttp.StatusInternalServerError, "storage error")
	case errors.Is(err, context.DeadlineExceeded):
		errResponse(ctx, fasthttp.StatusServiceUnavailable, "timed out")
	default:
		slog.Error("request failed", slog.Any("err", err))
		errResponse(ctx, fasthttp.StatusInternalServerError, "internal error")
	}
}
