package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/imageforge/internal/api/handlers/job"
	"github.com/aliskhannn/imageforge/internal/middleware"
)

func Setup(h *job.Handler) *ginext.Engine {
	r := ginext.New()

	r.Use(middleware.CORSMiddleware())
	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	api := r.Group("/api")

	api.POST("/jobs", h.Submit)                 // submitting a batch job
	api.GET("/jobs/:id", h.Get)                 // getting a job snapshot by id
	api.GET("/jobs/:id/archive", h.Archive)     // downloading the finished archive
	api.DELETE("/jobs/:id/archive", h.Purge)    // purging a delivered archive
	r.GET("/ws/jobs/:id", h.Live)               // live progress stream

	return r
}
