package metrics

import (
	"fmt"
	"net"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Handler serves the metrics endpoint.
type Handler interface {
	ServeHTTP(ctx *fasthttp.RequestCtx)
}

// StartServer starts a fasthttp server exposing handler on path. It returns
// nil when metrics are disabled. The caller shuts the server down.
func StartServer(enabled bool, listen, path string, handler Handler, logger *zap.Logger) (*fasthttp.Server, error) {
	if !enabled {
		logger.Debug("Metrics endpoint disabled")
		return nil, nil
	}

	// Bind up front so a busy port is reported to the caller.
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("metrics listen %s: %w", listen, err)
	}

	server := &fasthttp.Server{
		Handler:            newRequestHandler(path, handler),
		Name:               "statuspeek-metrics",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		MaxRequestBodySize: 1 * 1024,
		MaxConnsPerIP:      100,
		Concurrency:        100,
	}

	go func() {
		logger.Info("Metrics server listening",
			zap.String("listen", ln.Addr().String()),
			zap.String("path", path))

		if err := server.Serve(ln); err != nil {
			logger.Error("Metrics server stopped",
				zap.String("listen", listen),
				zap.Error(err))
		}
	}()

	return server, nil
}

func newRequestHandler(path string, handler Handler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) == path {
			handler.ServeHTTP(ctx)
			return
		}

		ctx.SetStatusCode(fasthttp.StatusNotFound)
		ctx.SetBodyString("Not Found")
	}
}
