package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/siteaudit/internal/common"
	"github.com/suPer8Hu/siteaudit/internal/httpapi/handlers"
	"github.com/suPer8Hu/siteaudit/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler, schedulerSecret string, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	api := r.Group("/api")
	api.POST("/jobs/process", middleware.SchedulerAuth(schedulerSecret), h.ProcessJobs)
	api.GET("/jobs/:job_id", h.GetJob)
	return r
}
