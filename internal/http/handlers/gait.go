package handlers

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"strideminder/internal/aggregate"
	"strideminder/internal/export"
)

// parseGranularity reads the {granularity} route parameter.
func parseGranularity(ctx *fasthttp.RequestCtx) (aggregate.Granularity, bool) {
	s, _ := ctx.UserValue("granularity").(string)
	g, err := aggregate.ParseGranularity(s)
	if err != nil {
		errResponse(ctx, fasthttp.StatusBadRequest, "granularity must be raw, hourly, daily or monthly")
		return 0, false
	}
	return g, true
}

// parseRange reads an inclusive [start, end] window in unix milliseconds.
// Without "start", "hours" (float) or "days" (int) select a window ending
// now; with neither, the whole series is returned.
func parseRange(ctx *fasthttp.RequestCtx) (start, end int64, ok bool) {
	args := ctx.QueryArgs()
	start, end = 0, math.MaxInt64

	if s := string(args.Peek("end")); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid end")
			return 0, 0, false
		}
		end = v
	}

	switch {
	case len(args.Peek("start")) > 0:
		v, err := strconv.ParseInt(string(args.Peek("start")), 10, 64)
		if err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid start")
			return 0, 0, false
		}
		start = v
	case len(args.Peek("hours")) > 0:
		f, err := strconv.ParseFloat(string(args.Peek("hours")), 64)
		if err != nil || f <= 0 {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid hours")
			return 0, 0, false
		}
		start = time.Now().Add(-time.Duration(f * float64(time.Hour))).UnixMilli()
	case len(args.Peek("days")) > 0:
		n, err := strconv.Atoi(string(args.Peek("days")))
		if err != nil || n <= 0 {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid days")
			return 0, 0, false
		}
		start = time.Now().Add(-time.Duration(n) * 24 * time.Hour).UnixMilli()
	}

	if start > end {
		errResponse(ctx, fasthttp.StatusBadRequest, "start must not be after end")
		return 0, 0, false
	}
	return start, end, true
}

// SeriesHandler returns the records of one series within a time range.
func SeriesHandler(agg *aggregate.Aggregator) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if _, ok := MustDevice(ctx); !ok {
			return
		}
		g, ok := parseGranularity(ctx)
		if !ok {
			return
		}
		start, end, ok := parseRange(ctx)
		if !ok {
			return
		}

		rctx, cancel := requestContext()
		defer cancel()

		records, err := agg.Query(rctx, g, start, end)
		if err != nil {
			failResponse(ctx, err)
			return
		}
		jsonResponse(ctx, map[string]any{
			"granularity": g.String(),
			"records":     records,
		})
	}
}

// LastHandler returns the newest timestamp of one series.
func LastHandler(agg *aggregate.Aggregator) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if _, ok := MustDevice(ctx); !ok {
			return
		}
		g, ok := parseGranularity(ctx)
		if !ok {
			return
		}

		rctx, cancel := requestContext()
		defer cancel()

		ts, found, err := agg.LastTimestamp(rctx, g)
		if err != nil {
			failResponse(ctx, err)
			return
		}
		if !found {
			errResponse(ctx, fasthttp.StatusNotFound, "no records")
			return
		}
		jsonResponse(ctx, map[string]any{
			"granularity":   g.String(),
			"timestamp_ms":  ts,
			"timestamp_utc": time.UnixMilli(ts).UTC().Format(time.RFC3339),
		})
	}
}

// ExportHandler streams one series as CSV or Parquet.
func ExportHandler(agg *aggregate.Aggregator) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if _, ok := MustDevice(ctx); !ok {
			return
		}
		g, ok := parseGranularity(ctx)
		if !ok {
			return
		}
		format, err := export.ParseFormat(string(ctx.QueryArgs().Peek("format")))
		if err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, err.Error())
			return
		}
		start, end, ok := parseRange(ctx)
		if !ok {
			return
		}

		rctx, cancel := requestContext()
		defer cancel()

		records, err := agg.Query(rctx, g, start, end)
		if err != nil {
			failResponse(ctx, err)
			return
		}

		var buf bytes.Buffer
		if err := export.Write(&buf, format, g, records); err != nil {
			failResponse(ctx, err)
			return
		}

		ctx.SetContentType(format.ContentType())
		ctx.Response.Header.Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="gait_%s.%s"`, g, format))
		ctx.SetBody(buf.Bytes())
	}
}
