// Package adminhttp is the side HTTP surface both roomline servers expose
// alongside its real wire protocol: health, Prometheus metrics, and (for
// crs-server) a debug room listing. None of this is part of the CRS/SNS
// wire protocol itself.
package adminhttp

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/barnden/roomline/internal/crs/registry"
)

// RoomLister is implemented by *registry.Registry; kept as an interface so
// this package doesn't otherwise need to know about CRS internals.
type RoomLister interface {
	List() []string
}

var _ RoomLister = (*registry.Registry)(nil)

// New builds the admin router for service, registering /healthz and
// /metrics unconditionally. When rooms is non-nil a /rooms debug endpoint
// is added (crs-server only).
func New(service string, rooms RoomLister) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(service))
	r.Use(cors.Default())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": service})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if rooms != nil {
		r.GET("/rooms", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"rooms": rooms.List()})
		})
	}

	return r
}
