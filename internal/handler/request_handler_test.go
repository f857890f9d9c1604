package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sigpae-api/internal/dto"
	"github.com/noah-isme/sigpae-api/internal/middleware"
	"github.com/noah-isme/sigpae-api/internal/models"
	"github.com/noah-isme/sigpae-api/internal/service"
	"github.com/noah-isme/sigpae-api/internal/workflow"
	appErrors "github.com/noah-isme/sigpae-api/pkg/errors"
)

type requestServiceStub struct {
	created  dto.CreateRequestPayload
	applied  dto.TransitionPayload
	query    dto.RequestQuery
	request  *models.Request
	list     *dto.RequestList
	events   *dto.AllowedEventsResponse
	history  []models.AuditEntry
	verified *workflow.Verification
	err      error
}

func (s *requestServiceStub) Create(ctx context.Context, payload dto.CreateRequestPayload, claims *models.JWTClaims) (*models.Request, error) {
	s.created = payload
	return s.request, s.err
}

func (s *requestServiceStub) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Request, error) {
	return s.request, s.err
}

func (s *requestServiceStub) List(ctx context.Context, query dto.RequestQuery, claims *models.JWTClaims) (*dto.RequestList, error) {
	s.query = query
	return s.list, s.err
}

func (s *requestServiceStub) Apply(ctx context.Context, id string, payload dto.TransitionPayload, claims *models.JWTClaims) (*models.Request, error) {
	s.applied = payload
	return s.request, s.err
}

func (s *requestServiceStub) AllowedEvents(ctx context.Context, id string, claims *models.JWTClaims) (*dto.AllowedEventsResponse, error) {
	return s.events, s.err
}

func (s *requestServiceStub) History(ctx context.Context, id string, claims *models.JWTClaims) ([]models.AuditEntry, error) {
	return s.history, s.err
}

func (s *requestServiceStub) VerifyHistory(ctx context.Context, id string, claims *models.JWTClaims) (*workflow.Verification, error) {
	return s.verified, s.err
}

type reportServiceStub struct {
	format string
	query  dto.RequestQuery
	file   *service.ReportFile
	err    error
}

func (s *reportServiceStub) Export(ctx context.Context, query dto.RequestQuery, format string, claims *models.JWTClaims) (*service.ReportFile, error) {
	s.format = format
	s.query = query
	return s.file, s.err
}

var escolaUser = &models.JWTClaims{UserID: "user-escola", Role: models.RoleEscola, InstitutionID: "escola-1"}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func sampleRequest() *models.Request {
	return &models.Request{
		ID:          "abcdef12-3456",
		Variant:     workflow.VariantAlteracaoCardapio,
		Status:      string(workflow.StateRascunho),
		Version:     1,
		DataInicial: time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
		Category:    "motivo-1",
	}
}

func TestRequestHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &requestServiceStub{request: sampleRequest()}
	handler := NewRequestHandler(svc, nil)

	body, _ := json.Marshal(dto.CreateRequestPayload{Variant: workflow.VariantAlteracaoCardapio, DataInicial: "2024-03-20", Category: "motivo-1"})
	c, w := newGinContext(http.MethodPost, "/requests", body)
	c.Set(middleware.ContextUserKey, escolaUser)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "2024-03-20", svc.created.DataInicial)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestRequestHandlerCreateRejects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRequestHandler(&requestServiceStub{}, nil)

	c, w := newGinContext(http.MethodPost, "/requests", []byte("{"))
	c.Set(middleware.ContextUserKey, escolaUser)
	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeEnvelope(t, w).Error.Code)

	c, w = newGinContext(http.MethodPost, "/requests", []byte(`{"variant":"x"}`))
	handler.Create(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodPost, "/requests", []byte(`{}`))
	c.Set(middleware.ContextUserKey, escolaUser)
	NewRequestHandler(nil, nil).Create(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequestHandlerListParsesFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &requestServiceStub{list: &dto.RequestList{
		Items: []dto.RequestItem{{Request: *sampleRequest(), ExternalID: "#ABCDE", Priority: workflow.PriorityUrgent}},
		Total: 41,
	}}
	handler := NewRequestHandler(svc, nil)

	c, w := newGinContext(http.MethodGet, "/requests?variant=alteracao_cardapio&status=a_validar,+validado,&due=WEEK&page=3&page_size=500", nil)
	c.Set(middleware.ContextUserKey, escolaUser)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"a_validar", "validado"}, svc.query.Status)
	assert.Equal(t, "week", svc.query.Due)
	assert.Equal(t, 100, svc.query.PageSize)

	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, models.Pagination{Page: 3, PageSize: 100, TotalCount: 41}, *env.Pagination)

	var items []dto.RequestItem
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, workflow.PriorityUrgent, items[0].Priority)
}

func TestRequestHandlerListRejectsBadPage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRequestHandler(&requestServiceStub{}, nil)

	c, w := newGinContext(http.MethodGet, "/requests?page=-1", nil)
	c.Set(middleware.ContextUserKey, escolaUser)
	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestHandlerGetAddsExternalID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRequestHandler(&requestServiceStub{request: sampleRequest()}, nil)

	c, w := newGinContext(http.MethodGet, "/requests/abcdef12-3456", nil)
	c.Params = gin.Params{{Key: "id", Value: "abcdef12-3456"}}
	c.Set(middleware.ContextUserKey, escolaUser)

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "#ABCDE", decodeEnvelope(t, w).Meta["externalId"])
}

func TestRequestHandlerTransitionMapsErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[string]struct {
		err    error
		status int
	}{
		"guard":    {appErrors.Clone(appErrors.ErrGuardViolation, "Data 01/03/2024 ainda não passou"), http.StatusBadRequest},
		"unknown":  {appErrors.ErrUnknownTransition, http.StatusBadRequest},
		"role":     {appErrors.ErrForbidden, http.StatusForbidden},
		"conflict": {appErrors.ErrConcurrentModification, http.StatusConflict},
		"missing":  {appErrors.ErrNotFound, http.StatusNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			handler := NewRequestHandler(&requestServiceStub{err: tc.err}, nil)
			c, w := newGinContext(http.MethodPost, "/requests/r1/transitions", []byte(`{"event":"iniciar"}`))
			c.Params = gin.Params{{Key: "id", Value: "r1"}}
			c.Set(middleware.ContextUserKey, escolaUser)

			handler.Transition(c)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestRequestHandlerTransitionPassesPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &requestServiceStub{request: sampleRequest()}
	handler := NewRequestHandler(svc, nil)

	c, w := newGinContext(http.MethodPost, "/requests/r1/transitions", []byte(`{"event":"dre_nao_valida","version":2,"justification":"fora do prazo"}`))
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	c.Set(middleware.ContextUserKey, escolaUser)

	handler.Transition(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dre_nao_valida", svc.applied.Event)
	require.NotNil(t, svc.applied.Version)
	assert.Equal(t, 2, *svc.applied.Version)
	assert.Equal(t, "fora do prazo", svc.applied.Justification)
}

func TestRequestHandlerHistoryEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &requestServiceStub{
		events:   &dto.AllowedEventsResponse{RequestID: "r1", Status: "a_validar", Events: []string{"dre_valida"}},
		history:  []models.AuditEntry{{ID: "e1", RequestID: "r1", Seq: 1}},
		verified: &workflow.Verification{Valid: true, Entries: 1},
	}
	handler := NewRequestHandler(svc, nil)

	for _, run := range []func(*gin.Context){handler.Events, handler.History, handler.VerifyHistory} {
		c, w := newGinContext(http.MethodGet, "/requests/r1", nil)
		c.Params = gin.Params{{Key: "id", Value: "r1"}}
		c.Set(middleware.ContextUserKey, escolaUser)
		run(c)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRequestHandlerExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reports := &reportServiceStub{file: &service.ReportFile{
		Filename:    "solicitacoes-20240304-091500.csv",
		ContentType: "text/csv; charset=utf-8",
		Data:        []byte("a;b\n"),
		Rows:        0,
	}}
	handler := NewRequestHandler(&requestServiceStub{}, reports)

	c, w := newGinContext(http.MethodGet, "/requests/export?format=csv&variant=dieta_especial", nil)
	c.Set(middleware.ContextUserKey, escolaUser)

	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", reports.format)
	assert.Equal(t, "dieta_especial", reports.query.Variant)
	assert.Equal(t, `attachment; filename="solicitacoes-20240304-091500.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "a;b\n", w.Body.String())

	c, w = newGinContext(http.MethodGet, "/requests/export", nil)
	c.Set(middleware.ContextUserKey, escolaUser)
	NewRequestHandler(&requestServiceStub{}, nil).Export(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
