package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sigpae-api/internal/models"
	"github.com/noah-isme/sigpae-api/internal/service"
	appErrors "github.com/noah-isme/sigpae-api/pkg/errors"
	"github.com/noah-isme/sigpae-api/pkg/response"
)

type calendarLister interface {
	List(ctx context.Context, req service.CalendarListRequest, claims *models.JWTClaims) ([]models.NonInstructionalDay, *models.Pagination, error)
}

// CalendarHandler lists the non-instructional days used in deadline counting.
type CalendarHandler struct {
	service calendarLister
}

// NewCalendarHandler constructs the handler.
func NewCalendarHandler(svc calendarLister) *CalendarHandler {
	return &CalendarHandler{service: svc}
}

// List godoc
// @Summary List non-instructional days
// @Tags Calendar
// @Produce json
// @Param institution_id query string false "Institution"
// @Param from query string false "From (YYYY-MM-DD)"
// @Param to query string false "To (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /calendar/non-instructional-days [get]
func (h *CalendarHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "calendar service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	req := service.CalendarListRequest{InstitutionID: strings.TrimSpace(c.Query("institution_id"))}
	for name, dest := range map[string]**time.Time{"from": &req.From, "to": &req.To} {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			continue
		}
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, name+" must be YYYY-MM-DD"))
			return
		}
		*dest = &day
	}
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "page must be a positive integer"))
			return
		}
		req.Page = n
	}
	if raw := c.Query("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "page_size must be a positive integer"))
			return
		}
		req.PageSize = n
	}

	days, pagination, err := h.service.List(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, days, pagination)
}
