package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/suPer8Hu/siteaudit/internal/common"
	"github.com/suPer8Hu/siteaudit/internal/httpapi/middleware"
)

// ProcessJobs is the scheduler trigger. It runs one dispatcher pass and
// returns once every claimed job has settled.
func (h *Handler) ProcessJobs(c *gin.Context) {
	if h.ConfigErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.ConfigErr.Error()})
		return
	}
	if h.Runner == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dispatcher is not configured"})
		return
	}

	sum, err := h.Runner.Run(c.Request.Context())
	if err != nil {
		h.Logger.Error("dispatch run failed", "request_id", c.GetString(middleware.RequestIDKey), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"skipped":    sum.Skipped,
		"reaped":     sum.Reaped,
		"reconciled": sum.Reconciled,
		"claimed":    sum.Claimed,
		"completed":  sum.Completed,
		"failed":     sum.Failed,
	})
}

// GetJob returns a job and its result.
func (h *Handler) GetJob(c *gin.Context) {
	if h.Jobs == nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "storage is not configured")
		return
	}
	ctx := c.Request.Context()

	job, err := h.Jobs.GetJob(ctx, c.Param("job_id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to load job")
		return
	}

	result, err := h.Jobs.GetResult(ctx, job.ResultID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to load result")
		return
	}
	common.OK(c, gin.H{"job": job, "result": result})
}
