package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sigpae-api/internal/dto"
	"github.com/noah-isme/sigpae-api/internal/models"
	"github.com/noah-isme/sigpae-api/internal/service"
	appErrors "github.com/noah-isme/sigpae-api/pkg/errors"
)

type workflowStub struct {
	view *dto.WorkflowView
	err  error
}

func (s *workflowStub) Workflow(variant string) (*dto.WorkflowView, error) {
	if s.err != nil {
		return nil, s.err
	}
	view := *s.view
	view.Variant = variant
	return &view, nil
}

type sweepStub struct {
	ran string
	err error
}

func (s *sweepStub) Names() []string {
	return []string{"cancelar_automaticamente", "terminar_automaticamente"}
}

func (s *sweepStub) Run(ctx context.Context, name string) (*service.SweepSummary, error) {
	s.ran = name
	if s.err != nil {
		return nil, s.err
	}
	return &service.SweepSummary{Name: name, Candidates: 2, Applied: 2, StartedAt: time.Now()}, nil
}

func TestWorkflowHandlerDefinition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewWorkflowHandler(&workflowStub{view: &dto.WorkflowView{
		Family:       "escola",
		Initial:      "rascunho",
		CreatorRoles: []models.UserRole{models.RoleEscola},
	}}, nil)

	c, w := newGinContext(http.MethodGet, "/workflows/alteracao_cardapio", nil)
	c.Params = gin.Params{{Key: "variant", Value: "alteracao_cardapio"}}
	handler.Definition(c)
	require.Equal(t, http.StatusOK, w.Code)

	var view dto.WorkflowView
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &view))
	assert.Equal(t, "alteracao_cardapio", view.Variant)
	assert.Equal(t, "rascunho", view.Initial)

	unknown := NewWorkflowHandler(&workflowStub{err: appErrors.Clone(appErrors.ErrUnknownVariant, "unknown variant: x")}, nil)
	c, w = newGinContext(http.MethodGet, "/workflows/x", nil)
	c.Params = gin.Params{{Key: "variant", Value: "x"}}
	unknown.Definition(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrUnknownVariant.Code, decodeEnvelope(t, w).Error.Code)
}

func TestWorkflowHandlerSweeps(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sweeps := &sweepStub{}
	handler := NewWorkflowHandler(nil, sweeps)

	c, w := newGinContext(http.MethodGet, "/sweeps", nil)
	handler.Sweeps(c)
	require.Equal(t, http.StatusOK, w.Code)
	var names []string
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &names))
	assert.Len(t, names, 2)

	c, w = newGinContext(http.MethodPost, "/sweeps/cancelar_automaticamente", nil)
	c.Params = gin.Params{{Key: "name", Value: "cancelar_automaticamente"}}
	handler.RunSweep(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelar_automaticamente", sweeps.ran)

	var summary service.SweepSummary
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &summary))
	assert.Equal(t, 2, summary.Applied)
}

func TestWorkflowHandlerSweepErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[string]struct {
		err    error
		status int
	}{
		"unknown": {appErrors.Clone(appErrors.ErrNotFound, `unknown sweep "x"`), http.StatusNotFound},
		"running": {appErrors.Clone(appErrors.ErrConflict, "already running"), http.StatusConflict},
		"plain":   {errors.New("boom"), http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			handler := NewWorkflowHandler(nil, &sweepStub{err: tc.err})
			c, w := newGinContext(http.MethodPost, "/sweeps/x", nil)
			c.Params = gin.Params{{Key: "name", Value: "x"}}
			handler.RunSweep(c)
			assert.Equal(t, tc.status, w.Code)
		})
	}

	c, w := newGinContext(http.MethodGet, "/sweeps", nil)
	NewWorkflowHandler(nil, nil).Sweeps(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
