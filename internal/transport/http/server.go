package http

import (
	"fmt"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/atomirex/syncroom-server/internal/config"
	"github.com/atomirex/syncroom-server/internal/core"
	"github.com/atomirex/syncroom-server/internal/state"
)

// NewServer assembles the HTTP server: websocket endpoint, debug surface,
// health, and metrics.
func NewServer(hub *core.Hub, store *state.Store, limiter *RateLimiter, registry *prometheus.Registry, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, logger, limiter)))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	debug := NewDebugHandlers(hub, store, logger)
	router.GET("/rooms", debug.Rooms)
	router.GET("/room/:name", debug.Room)
	router.POST("/clear", debug.Clear)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	fmt.Fprint(c.Writer, "ok")
}
