package middleware

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	dbpkg "strideminder/internal/db"
	httpctx "strideminder/internal/http/ctx"
	"strideminder/internal/telemetry"
)

func TestBearerAuth(t *testing.T) {
	db, err := dbpkg.Open(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	_, err = dbpkg.CreateDevice(db, "ankle", "good-key", nil)
	require.NoError(t, err)

	var seen string
	handler := BearerAuth(db)(func(ctx *fasthttp.RequestCtx) {
		dev, ok := httpctx.DeviceFromCtx(ctx)
		require.True(t, ok)
		seen = dev.Name
		ctx.VisitUserValues(func(_ []byte, v any) {
			assert.NotEqual(t, "good-key", v, "raw bearer key kept on request")
		})
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", fasthttp.StatusUnauthorized},
		{"wrong scheme", "Basic Zm9vOmJhcg==", fasthttp.StatusUnauthorized},
		{"empty token", "Bearer   ", fasthttp.StatusUnauthorized},
		{"unknown key", "Bearer nope", fasthttp.StatusUnauthorized},
		{"valid", "Bearer good-key", fasthttp.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var ctx fasthttp.RequestCtx
			if tc.header != "" {
				ctx.Request.Header.Set("Authorization", tc.header)
			}
			handler(&ctx)
			assert.Equal(t, tc.status, ctx.Response.StatusCode())
		})
	}
	assert.Equal(t, "ankle", seen)
}

func TestInstrumentUsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	telemetry.Init(reg)

	h := Instrument(Route("/v1/gait/{granularity}", func(ctx *fasthttp.RequestCtx) {
		time.Sleep(time.Millisecond)
		ctx.SetStatusCode(fasthttp.StatusOK)
	}))
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod("GET")
	ctx.Request.SetRequestURI("/v1/gait/raw")
	h(&ctx)

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() != "strideminder_http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "route" && l.GetValue() == "/v1/gait/{granularity}" {
					found = true
				}
			}
		}
	}
	assert.True(t, found)
}
