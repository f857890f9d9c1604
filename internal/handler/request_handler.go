package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sigpae-api/internal/dto"
	"github.com/noah-isme/sigpae-api/internal/models"
	"github.com/noah-isme/sigpae-api/internal/service"
	"github.com/noah-isme/sigpae-api/internal/workflow"
	appErrors "github.com/noah-isme/sigpae-api/pkg/errors"
	"github.com/noah-isme/sigpae-api/pkg/response"
)

type requestService interface {
	Create(ctx context.Context, payload dto.CreateRequestPayload, claims *models.JWTClaims) (*models.Request, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Request, error)
	List(ctx context.Context, query dto.RequestQuery, claims *models.JWTClaims) (*dto.RequestList, error)
	Apply(ctx context.Context, id string, payload dto.TransitionPayload, claims *models.JWTClaims) (*models.Request, error)
	AllowedEvents(ctx context.Context, id string, claims *models.JWTClaims) (*dto.AllowedEventsResponse, error)
	History(ctx context.Context, id string, claims *models.JWTClaims) ([]models.AuditEntry, error)
	VerifyHistory(ctx context.Context, id string, claims *models.JWTClaims) (*workflow.Verification, error)
}

type reportService interface {
	Export(ctx context.Context, query dto.RequestQuery, format string, claims *models.JWTClaims) (*service.ReportFile, error)
}

// RequestHandler exposes the request workflow endpoints.
type RequestHandler struct {
	service requestService
	reports reportService
}

// NewRequestHandler constructs the handler.
func NewRequestHandler(service requestService, reports reportService) *RequestHandler {
	return &RequestHandler{service: service, reports: reports}
}

// Create godoc
// @Summary Open a request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.CreateRequestPayload true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "request service not configured"))
		return
	}
	var payload dto.CreateRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	req, err := h.service.Create(c.Request.Context(), payload, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, req)
}

// List godoc
// @Summary List requests with their deadline priority
// @Tags Requests
// @Produce json
// @Param variant query string false "Variant"
// @Param status query string false "Comma separated statuses"
// @Param escola_id query string false "Escola"
// @Param dre_id query string false "DRE"
// @Param lote_id query string false "Lote"
// @Param terceirizada_id query string false "Terceirizada"
// @Param from query string false "Event date from (YYYY-MM-DD)"
// @Param to query string false "Event date to (YYYY-MM-DD)"
// @Param due query string false "week, month or overdue"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "request service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query, err := parseRequestQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}
	response.JSON(c, http.StatusOK, result.Items, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: result.Total})
}

// Get godoc
// @Summary Get a request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "request service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	req, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil, map[string]interface{}{"externalId": req.ExternalID()})
}

// Transition godoc
// @Summary Apply an event to a request
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.TransitionPayload true "Event"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/transitions [post]
func (h *RequestHandler) Transition(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "request service not configured"))
		return
	}
	var payload dto.TransitionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid transition payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	req, err := h.service.Apply(c.Request.Context(), c.Param("id"), payload, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// Events godoc
// @Summary List the events the caller may submit
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/events [get]
func (h *RequestHandler) Events(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "request service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	events, err := h.service.AllowedEvents(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// History godoc
// @Summary Audit history of a request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/history [get]
func (h *RequestHandler) History(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "request service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	history, err := h.service.History(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// VerifyHistory godoc
// @Summary Verify the audit hash chain and replay it
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/history/verify [get]
func (h *RequestHandler) VerifyHistory(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "request service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.VerifyHistory(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Export godoc
// @Summary Export requests as CSV, XLSX or PDF
// @Tags Requests
// @Produce octet-stream
// @Param format query string false "csv (default), xlsx or pdf"
// @Param variant query string false "Variant"
// @Param due query string false "week, month or overdue"
// @Success 200 {file} file
// @Router /requests/export [get]
func (h *RequestHandler) Export(c *gin.Context) {
	if h.reports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "report service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query, err := parseRequestQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.reports.Export(c.Request.Context(), query, c.Query("format"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

func parseRequestQuery(c *gin.Context) (dto.RequestQuery, error) {
	query := dto.RequestQuery{
		Variant:        strings.TrimSpace(c.Query("variant")),
		EscolaID:       strings.TrimSpace(c.Query("escola_id")),
		DREID:          strings.TrimSpace(c.Query("dre_id")),
		LoteID:         strings.TrimSpace(c.Query("lote_id")),
		TerceirizadaID: strings.TrimSpace(c.Query("terceirizada_id")),
		From:           strings.TrimSpace(c.Query("from")),
		To:             strings.TrimSpace(c.Query("to")),
		Due:            strings.ToLower(strings.TrimSpace(c.Query("due"))),
	}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				query.Status = append(query.Status, part)
			}
		}
	}
	for name, dest := range map[string]*int{"page": &query.Page, "page_size": &query.PageSize} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return query, appErrors.Clone(appErrors.ErrValidation, name+" must be a positive integer")
		}
		*dest = n
	}
	if query.PageSize > 100 {
		query.PageSize = 100
	}
	return query, nil
}
