package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sigpae-api/internal/dto"
	"github.com/noah-isme/sigpae-api/internal/models"
	"github.com/noah-isme/sigpae-api/internal/repository"
	"github.com/noah-isme/sigpae-api/internal/workflow"
	appErrors "github.com/noah-isme/sigpae-api/pkg/errors"
)

const dateLayout = "2006-01-02"

type requestReader interface {
	GetByID(ctx context.Context, id string) (*models.Request, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.Request, error)
	Count(ctx context.Context, filter models.RequestFilter) (int, error)
}

type trailResolver interface {
	TrailForEscola(ctx context.Context, escolaID string) (*models.Trail, error)
	TrailForDRE(ctx context.Context, dreID string) (*models.Trail, error)
}

type historyReader interface {
	History(ctx context.Context, requestID string) ([]models.AuditEntry, error)
}

// TransitionPublisher is told about every committed transition.
type TransitionPublisher interface {
	Publish(ctx context.Context, notice TransitionNotice)
}

// RequestService is the entry point for creating, reading and moving requests
// through their workflow.
type RequestService struct {
	executor  *workflow.Executor
	requests  requestReader
	trails    trailResolver
	audit     historyReader
	cache     *CacheService
	metrics   *MetricsService
	publisher TransitionPublisher
	bands     workflow.Bands
	validator *validator.Validate
	logger    *zap.Logger
}

// RequestServiceOption configures optional collaborators.
type RequestServiceOption func(*RequestService)

// WithRequestCache enables the list cache.
func WithRequestCache(cache *CacheService) RequestServiceOption {
	return func(s *RequestService) { s.cache = cache }
}

// WithRequestMetrics records transition and query metrics.
func WithRequestMetrics(metrics *MetricsService) RequestServiceOption {
	return func(s *RequestService) { s.metrics = metrics }
}

// WithTransitionPublisher hands committed transitions to a publisher.
func WithTransitionPublisher(p TransitionPublisher) RequestServiceOption {
	return func(s *RequestService) { s.publisher = p }
}

// WithPriorityBands overrides the default priority thresholds.
func WithPriorityBands(bands workflow.Bands) RequestServiceOption {
	return func(s *RequestService) {
		if len(bands) > 0 {
			s.bands = bands
		}
	}
}

// NewRequestService wires the service.
func NewRequestService(executor *workflow.Executor, requests requestReader, trails trailResolver, audit historyReader, validate *validator.Validate, logger *zap.Logger, opts ...RequestServiceOption) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &RequestService{
		executor:  executor,
		requests:  requests,
		trails:    trails,
		audit:     audit,
		bands:     workflow.DefaultBands(),
		validator: validate,
		logger:    logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create opens a request in the initial state of its variant.
func (s *RequestService) Create(ctx context.Context, payload dto.CreateRequestPayload, claims *models.JWTClaims) (*models.Request, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	start, err := time.Parse(dateLayout, payload.DataInicial)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dataInicial must be YYYY-MM-DD")
	}
	req := models.Request{
		Variant:     strings.TrimSpace(payload.Variant),
		DataInicial: start,
		Category:    strings.TrimSpace(payload.Category),
		Details:     payload.Details,
	}
	if payload.DataFinal != "" {
		end, err := time.Parse(dateLayout, payload.DataFinal)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "dataFinal must be YYYY-MM-DD")
		}
		if end.Before(start) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "dataFinal must not precede dataInicial")
		}
		req.DataFinal = &end
	}

	actor := claims.Actor()
	trail, err := s.resolveTrail(ctx, payload.EscolaID, actor)
	if err != nil {
		return nil, err
	}
	req.Trail = trail

	created, err := s.executor.Create(ctx, req, actor)
	if err != nil {
		s.metrics.ObserveTransition(req.Variant, string(workflow.EventCreate), outcomeFor(err))
		return nil, mapWorkflowError(err)
	}
	s.metrics.ObserveTransition(created.Variant, string(workflow.EventCreate), OutcomeApplied)
	s.cache.InvalidateRequestLists(ctx)
	s.logger.Info("request created",
		zap.String("request_id", created.ID),
		zap.String("variant", created.Variant),
		zap.String("actor_id", actor.ID))
	return created, nil
}

func (s *RequestService) resolveTrail(ctx context.Context, escolaID string, actor models.Actor) (models.Trail, error) {
	var (
		trail *models.Trail
		err   error
	)
	switch {
	case actor.Role == models.RoleEscola:
		if actor.InstitutionID == "" {
			return models.Trail{}, appErrors.Clone(appErrors.ErrForbidden, "token carries no escola")
		}
		trail, err = s.trails.TrailForEscola(ctx, actor.InstitutionID)
	case escolaID != "":
		trail, err = s.trails.TrailForEscola(ctx, escolaID)
	case actor.Role == models.RoleDRE:
		trail, err = s.trails.TrailForDRE(ctx, actor.InstitutionID)
	case actor.Role == models.RoleTerceirizada && actor.InstitutionID != "":
		id := actor.InstitutionID
		return models.Trail{TerceirizadaID: &id}, nil
	default:
		return models.Trail{}, nil
	}
	if err != nil {
		if errors.Is(err, repository.ErrInstitutionNotFound) {
			return models.Trail{}, appErrors.Clone(appErrors.ErrValidation, "unknown institution")
		}
		return models.Trail{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve institution trail")
	}
	return *trail, nil
}

// Get returns a request visible to the caller.
func (s *RequestService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Request, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if !visibleTo(*req, claims.Actor()) {
		return nil, appErrors.ErrNotFound
	}
	return req, nil
}

// List returns one page of requests in the caller's scope with their priority.
func (s *RequestService) List(ctx context.Context, query dto.RequestQuery, claims *models.JWTClaims) (*dto.RequestList, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	today := s.executor.Today()
	filter, err := s.buildFilter(query, claims.Actor(), today)
	if err != nil {
		return nil, err
	}

	key := RequestListKey(filter, today) + ":" + query.Due
	var cached dto.RequestList
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	started := time.Now()
	items, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	total, err := s.requests.Count(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count requests")
	}
	s.metrics.ObserveDBQuery("requests.list", time.Since(started))

	if query.Due == DueOverdue {
		items = s.openOnly(FilterOverdue(items, today))
	}

	result := &dto.RequestList{Items: s.classify(ctx, items, today), Total: total}
	s.cache.Set(ctx, key, result, 0)
	return result, nil
}

// ListForExport returns up to maxRows classified requests in the caller's scope,
// bypassing the cache.
func (s *RequestService) ListForExport(ctx context.Context, query dto.RequestQuery, claims *models.JWTClaims, maxRows int) ([]dto.RequestItem, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	today := s.executor.Today()
	query.Page, query.PageSize = 1, maxRows
	filter, err := s.buildFilter(query, claims.Actor(), today)
	if err != nil {
		return nil, err
	}
	items, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	if query.Due == DueOverdue {
		items = s.openOnly(FilterOverdue(items, today))
	}
	return s.classify(ctx, items, today), nil
}

func (s *RequestService) buildFilter(query dto.RequestQuery, actor models.Actor, today time.Time) (models.RequestFilter, error) {
	filter := models.RequestFilter{
		Variant:        strings.TrimSpace(query.Variant),
		Status:         query.Status,
		EscolaID:       query.EscolaID,
		DREID:          query.DREID,
		LoteID:         query.LoteID,
		TerceirizadaID: query.TerceirizadaID,
	}
	if query.From != "" {
		from, err := time.Parse(dateLayout, query.From)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD")
		}
		filter.From = &from
	}
	if query.To != "" {
		to, err := time.Parse(dateLayout, query.To)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD")
		}
		filter.To = &to
	}
	if query.Due != "" {
		from, to, ok := DueWindow(query.Due, today)
		if !ok {
			return filter, appErrors.Clone(appErrors.ErrValidation, "due must be week, month or overdue")
		}
		filter.From, filter.To = from, to
	}

	switch actor.Role {
	case models.RoleEscola:
		filter.EscolaID = actor.InstitutionID
	case models.RoleDRE:
		filter.DREID = actor.InstitutionID
	case models.RoleTerceirizada:
		filter.TerceirizadaID = actor.InstitutionID
	}

	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize
	return filter, nil
}

func (s *RequestService) classify(ctx context.Context, requests []models.Request, today time.Time) []dto.RequestItem {
	cal := s.executor.Calendar(ctx)
	limit := s.bands.Horizon() + 1
	items := make([]dto.RequestItem, 0, len(requests))
	for _, req := range requests {
		days := cal.DaysUntil(req.Institution(), today, req.EventDate(), limit)
		items = append(items, dto.RequestItem{
			Request:    req,
			ExternalID: req.ExternalID(),
			DaysUntil:  days,
			Priority:   workflow.Classify(days, s.bands),
		})
	}
	return items
}

func (s *RequestService) openOnly(requests []models.Request) []models.Request {
	out := requests[:0]
	for _, req := range requests {
		def, err := s.executor.Definition(req.Variant)
		if err != nil || def.IsTerminal(workflow.State(req.Status)) {
			continue
		}
		out = append(out, req)
	}
	return out
}

// Apply submits an event on behalf of the caller.
func (s *RequestService) Apply(ctx context.Context, id string, payload dto.TransitionPayload, claims *models.JWTClaims) (*models.Request, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transition payload")
	}
	req, err := s.Get(ctx, id, claims)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			s.logger.Warn("transition requested for unknown request",
				zap.String("request_id", id),
				zap.String("event", payload.Event),
				zap.String("actor_id", claims.UserID))
		}
		return nil, err
	}
	if payload.Version != nil && *payload.Version != req.Version {
		s.metrics.ObserveTransition(req.Variant, payload.Event, OutcomeConflict)
		return nil, appErrors.Clone(appErrors.ErrConcurrentModification, "request was modified since it was read, reload and retry")
	}

	updated, err := s.Transition(ctx, *req, workflow.Event(payload.Event), claims.Actor(), workflow.Payload{
		Justification: payload.Justification,
		Answer:        payload.Answer,
	})
	if err != nil {
		return nil, mapWorkflowError(err)
	}
	return updated, nil
}

// Transition runs event through the executor and fans out the side effects of
// a committed transition. Errors are returned unmapped.
func (s *RequestService) Transition(ctx context.Context, req models.Request, event workflow.Event, actor models.Actor, payload workflow.Payload) (*models.Request, error) {
	updated, err := s.executor.Apply(ctx, req, event, actor, payload)
	if err != nil {
		s.metrics.ObserveTransition(req.Variant, string(event), outcomeFor(err))
		return nil, err
	}
	s.metrics.ObserveTransition(req.Variant, string(event), OutcomeApplied)
	s.cache.InvalidateRequestLists(ctx)
	if s.publisher != nil {
		notice := TransitionNotice{
			Request: *updated,
			Event:   string(event),
			From:    req.Status,
			To:      updated.Status,
			Actor:   actor,
			At:      time.Now().UTC(),
		}
		if j := strings.TrimSpace(payload.Justification); j != "" {
			notice.Justification = j
		}
		s.publisher.Publish(ctx, notice)
	}
	return updated, nil
}

// AllowedEvents lists the events the caller may submit from the current state.
func (s *RequestService) AllowedEvents(ctx context.Context, id string, claims *models.JWTClaims) (*dto.AllowedEventsResponse, error) {
	req, err := s.Get(ctx, id, claims)
	if err != nil {
		return nil, err
	}
	events, err := s.executor.AllowedEvents(*req, claims.Actor())
	if err != nil {
		return nil, mapWorkflowError(err)
	}
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, string(e))
	}
	return &dto.AllowedEventsResponse{RequestID: req.ID, Status: req.Status, Events: names}, nil
}

// History returns the audit trail of a request.
func (s *RequestService) History(ctx context.Context, id string, claims *models.JWTClaims) ([]models.AuditEntry, error) {
	req, err := s.Get(ctx, id, claims)
	if err != nil {
		return nil, err
	}
	history, err := s.audit.History(ctx, req.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}
	return history, nil
}

// VerifyHistory checks the hash chain and replays the history of a request.
func (s *RequestService) VerifyHistory(ctx context.Context, id string, claims *models.JWTClaims) (*workflow.Verification, error) {
	req, err := s.Get(ctx, id, claims)
	if err != nil {
		return nil, err
	}
	def, err := s.executor.Definition(req.Variant)
	if err != nil {
		return nil, mapWorkflowError(err)
	}
	history, err := s.audit.History(ctx, req.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}
	result := workflow.Verify(def, *req, history)
	if !result.Valid {
		s.logger.Warn("audit history verification failed",
			zap.String("request_id", req.ID),
			zap.String("problem", result.Problem))
	}
	return &result, nil
}

// Workflow describes the definition governing variant.
func (s *RequestService) Workflow(variant string) (*dto.WorkflowView, error) {
	def, err := s.executor.Definition(variant)
	if err != nil {
		return nil, mapWorkflowError(err)
	}
	view := &dto.WorkflowView{
		Variant:      def.Variant(),
		Family:       string(def.Family()),
		Initial:      string(def.Initial()),
		States:       statesToStrings(def.States()),
		Terminals:    statesToStrings(def.Terminals()),
		CreatorRoles: def.CreatorRoles(),
	}
	for _, t := range def.Transitions() {
		view.Transitions = append(view.Transitions, dto.TransitionView{
			From:   string(t.From),
			Event:  string(t.Event),
			To:     string(t.To),
			Roles:  t.Roles,
			Guards: len(t.Guards),
		})
	}
	return view, nil
}

func statesToStrings(states []workflow.State) []string {
	out := make([]string, 0, len(states))
	for _, st := range states {
		out = append(out, string(st))
	}
	return out
}

func visibleTo(req models.Request, actor models.Actor) bool {
	match := func(id *string) bool {
		return id != nil && actor.InstitutionID != "" && *id == actor.InstitutionID
	}
	switch actor.Role {
	case models.RoleEscola:
		return match(req.EscolaID)
	case models.RoleDRE:
		return match(req.DREID)
	case models.RoleTerceirizada:
		return match(req.TerceirizadaID)
	default:
		return true
	}
}

func outcomeFor(err error) string {
	switch workflow.KindOf(err) {
	case workflow.KindConcurrentModification:
		return OutcomeConflict
	case workflow.KindUnknownTransition, workflow.KindForbidden, workflow.KindGuardViolation:
		return OutcomeRejected
	default:
		return OutcomeError
	}
}

func mapWorkflowError(err error) error {
	if err == nil {
		return nil
	}
	var werr *workflow.Error
	if errors.As(err, &werr) {
		var base *appErrors.Error
		switch werr.Kind {
		case workflow.KindUnknownTransition:
			base = appErrors.ErrUnknownTransition
		case workflow.KindForbidden:
			base = appErrors.ErrForbidden
		case workflow.KindGuardViolation:
			base = appErrors.ErrGuardViolation
		case workflow.KindConcurrentModification:
			base = appErrors.ErrConcurrentModification
		case workflow.KindNotFound:
			base = appErrors.ErrNotFound
		default:
			base = appErrors.ErrInternal
		}
		return appErrors.Wrap(werr, base.Code, base.Status, werr.Error())
	}
	if errors.Is(err, workflow.ErrUnknownVariant) {
		return appErrors.Wrap(err, appErrors.ErrUnknownVariant.Code, appErrors.ErrUnknownVariant.Status, err.Error())
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
}
