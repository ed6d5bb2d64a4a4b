package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/siteaudit/internal/analysis"
)

// Runner runs one dispatcher pass.
type Runner interface {
	Run(ctx context.Context) (analysis.RunSummary, error)
}

// JobReader loads jobs and results for the status endpoint.
type JobReader interface {
	GetJob(ctx context.Context, id string) (*analysis.Job, error)
	GetResult(ctx context.Context, id string) (*analysis.Result, error)
}

type Handler struct {
	Runner    Runner
	Jobs      JobReader
	ConfigErr error
	Logger    *slog.Logger
}

// NewHandler wires the endpoints. A non-nil configErr makes the trigger fail
// with that error until the process is restarted with valid configuration.
func NewHandler(runner Runner, jobs JobReader, configErr error, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Runner: runner, Jobs: jobs, ConfigErr: configErr, Logger: logger}
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}
