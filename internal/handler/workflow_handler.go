package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sigpae-api/internal/dto"
	"github.com/noah-isme/sigpae-api/internal/service"
	appErrors "github.com/noah-isme/sigpae-api/pkg/errors"
	"github.com/noah-isme/sigpae-api/pkg/response"
)

type workflowIntrospector interface {
	Workflow(variant string) (*dto.WorkflowView, error)
}

type sweepRunner interface {
	Names() []string
	Run(ctx context.Context, name string) (*service.SweepSummary, error)
}

// WorkflowHandler serves definition introspection and manual sweeps.
type WorkflowHandler struct {
	workflows workflowIntrospector
	sweeps    sweepRunner
}

// NewWorkflowHandler constructs the handler.
func NewWorkflowHandler(workflows workflowIntrospector, sweeps sweepRunner) *WorkflowHandler {
	return &WorkflowHandler{workflows: workflows, sweeps: sweeps}
}

// Definition godoc
// @Summary Describe the workflow of a variant
// @Tags Workflows
// @Produce json
// @Param variant path string true "Variant"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /workflows/{variant} [get]
func (h *WorkflowHandler) Definition(c *gin.Context) {
	if h.workflows == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "workflow service not configured"))
		return
	}
	view, err := h.workflows.Workflow(c.Param("variant"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Sweeps godoc
// @Summary List batch sweeps
// @Tags Sweeps
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sweeps [get]
func (h *WorkflowHandler) Sweeps(c *gin.Context) {
	if h.sweeps == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "sweep service not configured"))
		return
	}
	response.JSON(c, http.StatusOK, h.sweeps.Names(), nil)
}

// RunSweep godoc
// @Summary Run a batch sweep now
// @Tags Sweeps
// @Produce json
// @Param name path string true "Sweep name"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sweeps/{name} [post]
func (h *WorkflowHandler) RunSweep(c *gin.Context) {
	if h.sweeps == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "sweep service not configured"))
		return
	}
	summary, err := h.sweeps.Run(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
