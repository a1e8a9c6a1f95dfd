package api

import (
	"strconv"
	"time"

	"greentwin/internal/api/handler"
	"greentwin/internal/metrics"
	"greentwin/pkg/router"

	_ "greentwin/docs"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// NewRouter builds the engine's HTTP API
func NewRouter(h *handler.Handler, log *zap.Logger, color bool) *gin.Engine {
	r := router.New(log, color)
	r.Use(instrument())

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", gin.WrapH(httpSwagger.WrapHandler))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/machines", h.ListMachines)
		v1.GET("/machines/:id", h.GetMachine)
		v1.GET("/machines/:id/summary", h.GetMachineSummary)
		v1.GET("/errors", h.ListErrors)
	}
	return r
}

func instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
