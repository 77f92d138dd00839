package ctx

import (
	"github.com/valyala/fasthttp"

	dbpkg "strideminder/internal/db"
)

const (
	DeviceKey = "device"
	RouteKey  = "route"
)

func SetDevice(ctx *fasthttp.RequestCtx, dev *dbpkg.Device) {
	ctx.SetUserValue(DeviceKey, dev)
}

func DeviceFromCtx(ctx *fasthttp.RequestCtx) (*dbpkg.Device, bool) {
	v := ctx.UserValue(DeviceKey)
	if v == nil {
		return nil, false
	}
	dev, ok := v.(*dbpkg.Device)
	return dev, ok && dev != nil
}

// SetRoute records the route pattern so metrics are not labelled with raw
// paths.
func SetRoute(ctx *fasthttp.RequestCtx, route string) {
	ctx.SetUserValue(RouteKey, route)
}

func RouteFromCtx(ctx *fasthttp.RequestCtx) string {
	if s, ok := ctx.UserValue(RouteKey).(string); ok {
		return s
	}
	return "unmatched"
}
