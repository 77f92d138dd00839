package handlers

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/valyala/fasthttp"

	"strideminder/internal/acquisition"
	"strideminder/internal/gait"
	"strideminder/internal/worker"
)

// maxSamplesPerRequest caps a single upload; a 10 s block at 100 Hz is
// about 1000 samples.
const maxSamplesPerRequest = 20000

type batchRequest struct {
	// StartMs is the wall-clock start of the batch. If zero, the first
	// sample's t_ns is taken as unix nanoseconds.
	StartMs int64                 `json:"start_ms"`
	Samples []acquisition.Reading `json:"samples"`
}

type samplesRequest struct {
	Samples []acquisition.Reading `json:"samples"`
}

// BatchHandler processes one complete batch synchronously and ingests its
// metrics if the wearer was walking.
func BatchHandler(pool *worker.Pool) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		dev, ok := MustDevice(ctx)
		if !ok {
			return
		}

		var payload batchRequest
		if err := json.Unmarshal(ctx.PostBody(), &payload); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if len(payload.Samples) == 0 {
			errResponse(ctx, fasthttp.StatusBadRequest, "no samples provided")
			return
		}
		if len(payload.Samples) > maxSamplesPerRequest {
			errResponse(ctx, fasthttp.StatusRequestEntityTooLarge, "too many samples")
			return
		}

		startMs := payload.StartMs
		if startMs == 0 {
			startMs = payload.Samples[0].UnixNano / int64(time.Millisecond)
		}
		samples := make([]gait.Sample, len(payload.Samples))
		for i, r := range payload.Samples {
			if i > 0 && r.UnixNano < payload.Samples[i-1].UnixNano {
				errResponse(ctx, fasthttp.StatusBadRequest, "sample timestamps must be non-decreasing")
				return
			}
			samples[i] = gait.Sample{T: time.Duration(r.UnixNano), X: r.X, Y: r.Y, Z: r.Z}
		}

		rctx, cancel := requestContext()
		defer cancel()

		job := worker.NewJob(dev.Name, gait.NewBatch(startMs, samples))
		res, err := pool.Run(rctx, job)
		if err != nil {
			failResponse(ctx, err)
			return
		}

		out := map[string]any{
			"batch_id": res.JobID.String(),
			"outcome":  res.Outcome.String(),
			"metrics":  res.Metrics,
		}
		if res.Metrics != nil {
			out["raw_id"] = res.RawID
			out["steps_per_minute"] = res.Metrics.StepsPerMinute()
		}
		jsonResponse(ctx, out)
	}
}

// SamplesHandler appends streamed readings to the device's collector.
// Completed blocks are queued for the worker pool.
func SamplesHandler(hub *acquisition.Hub) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		dev, ok := MustDevice(ctx)
		if !ok {
			return
		}

		var payload samplesRequest
		if err := json.Unmarshal(ctx.PostBody(), &payload); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if len(payload.Samples) == 0 {
			errResponse(ctx, fasthttp.StatusBadRequest, "no samples provided")
			return
		}
		if len(payload.Samples) > maxSamplesPerRequest {
			errResponse(ctx, fasthttp.StatusRequestEntityTooLarge, "too many samples")
			return
		}

		rctx, cancel := requestContext()
		defer cancel()

		handed, err := hub.For(dev.Name).Add(rctx, payload.Samples...)
		if err != nil {
			if errors.Is(err, worker.ErrClosed) {
				errResponse(ctx, fasthttp.StatusServiceUnavailable, "shutting down")
				return
			}
			failResponse(ctx, err)
			return
		}

		ctx.SetStatusCode(fasthttp.StatusAccepted)
		jsonResponse(ctx, map[string]any{
			"status":  "accepted",
			"count":   len(payload.Samples),
			"batches": handed,
		})
	}
}
