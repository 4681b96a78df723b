package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"salesbi/internal/core/apperror"
	"salesbi/internal/core/id"
	"salesbi/internal/domain/pipeline"
	"salesbi/internal/infrastructure/http/v1/dto"
)

// RunReader is the read side of the run repository.
type RunReader interface {
	GetByID(ctx context.Context, runID id.ID) (*pipeline.Run, error)
	List(ctx context.Context, limit int) ([]pipeline.Run, error)
	Latest(ctx context.Context) (id.ID, error)
}

// RunsHandler exposes recorded pipeline runs.
type RunsHandler struct {
	*BaseHandler
	runs RunReader
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(base *BaseHandler, runs RunReader) *RunsHandler {
	return &RunsHandler{BaseHandler: base, runs: runs}
}

// List handles GET /runs
func (h *RunsHandler) List(c *gin.Context) {
	req := dto.RunListRequest{Limit: 20}
	if !h.BindQuery(c, &req) {
		return
	}

	runs, err := h.runs.List(c.Request.Context(), req.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	respondList(c, dto.FromRuns(runs))
}

// Get handles GET /runs/:id and includes the review summary.
func (h *RunsHandler) Get(c *gin.Context) {
	runID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid run id").WithDetail("id", c.Param("id")))
		return
	}

	run, err := h.runs.GetByID(c.Request.Context(), runID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromRun(run))
}

// GetLatest handles GET /runs/latest, the run that reports default to.
func (h *RunsHandler) GetLatest(c *gin.Context) {
	ctx := c.Request.Context()
	runID, err := h.runs.Latest(ctx)
	if err != nil {
		h.Error(c, err)
		return
	}

	run, err := h.runs.GetByID(ctx, runID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromRun(run))
}

// RegisterRoutes registers run routes.
func (h *RunsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/latest", h.GetLatest)
	rg.GET("/:id", h.Get)
}
