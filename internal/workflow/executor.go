package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sigpae-api/internal/calendar"
	"github.com/noah-isme/sigpae-api/internal/models"
)

// ErrUnknownVariant is returned when no definition is registered for a request.
var ErrUnknownVariant = errors.New("unknown request variant")

// Tx is the unit of work in which a transition is persisted.
type Tx interface {
	InsertRequest(ctx context.Context, req *models.Request) error
	// CompareAndSetStatus moves the request from (version, from) to to and bumps
	// the version. It returns ErrStaleVersion when the row changed meanwhile and
	// ErrRequestNotFound when it does not exist.
	CompareAndSetStatus(ctx context.Context, id string, version int, from, to State) error
	LastEntry(ctx context.Context, requestID string) (*models.AuditEntry, error)
	AppendAudit(ctx context.Context, entry *models.AuditEntry) error
	// LockScope blocks other units of work locking the same key until this one ends.
	LockScope(ctx context.Context, key string) error
	ListActiveOverlapping(ctx context.Context, req models.Request) ([]models.Request, error)
}

// Store opens transactions and answers the sibling lookups some guards need.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	ListActiveOverlapping(ctx context.Context, req models.Request) ([]models.Request, error)
}

// Executor applies transitions atomically: lookup, role check, guards, then
// status update and audit append in one transaction.
type Executor struct {
	registry    *Registry
	store       Store
	calendarFor func(ctx context.Context) *calendar.BusinessCalendar
	now         func() time.Time
	loc         *time.Location
	newID       func() string
	logger      *zap.Logger
}

// ExecutorOption customises an Executor.
type ExecutorOption func(*Executor)

// WithClock overrides the wall clock used to compute today.
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the zone in which stored timestamps are read as calendar days.
func WithLocation(loc *time.Location) ExecutorOption {
	return func(e *Executor) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithCalendar uses a fixed calendar.
func WithCalendar(cal *calendar.BusinessCalendar) ExecutorOption {
	return func(e *Executor) {
		if cal != nil {
			e.calendarFor = func(context.Context) *calendar.BusinessCalendar { return cal }
		}
	}
}

// WithCalendarSource builds a calendar per call backed by src.
func WithCalendarSource(src calendar.Source) ExecutorOption {
	return func(e *Executor) {
		if src != nil {
			e.calendarFor = func(ctx context.Context) *calendar.BusinessCalendar {
				return calendar.New(calendar.SourcePredicate(ctx, src, e.logger))
			}
		}
	}
}

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(fn func() string) ExecutorOption {
	return func(e *Executor) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// WithExecutorLogger sets the logger used for anomalies.
func WithExecutorLogger(logger *zap.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor builds an executor over registry and store.
func NewExecutor(registry *Registry, store Store, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry: registry,
		store:    store,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   zap.NewNop(),
	}
	defaultCal := calendar.New(nil)
	e.calendarFor = func(context.Context) *calendar.BusinessCalendar { return defaultCal }
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) location(now time.Time) *time.Location {
	if e.loc != nil {
		return e.loc
	}
	return now.Location()
}

// Today returns the current date according to the executor clock.
func (e *Executor) Today() time.Time {
	return calendar.Date(e.now())
}

// Calendar returns the calendar bound to ctx.
func (e *Executor) Calendar(ctx context.Context) *calendar.BusinessCalendar {
	return e.calendarFor(ctx)
}

// Definition resolves the definition governing variant.
func (e *Executor) Definition(variant string) (*Definition, error) {
	def, ok := e.registry.Get(variant)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariant, variant)
	}
	return def, nil
}

// AllowedEvents lists the events actor may submit for req, without evaluating guards.
func (e *Executor) AllowedEvents(req models.Request, actor models.Actor) ([]Event, error) {
	def, err := e.Definition(req.Variant)
	if err != nil {
		return nil, err
	}
	return def.AllowedEvents(State(req.Status), actor.Role), nil
}

// Create persists req in the initial state of its variant once the creator role
// and creation guards pass.
func (e *Executor) Create(ctx context.Context, req models.Request, actor models.Actor) (*models.Request, error) {
	def, err := e.Definition(req.Variant)
	if err != nil {
		return nil, err
	}
	if !def.CanCreate(actor.Role) {
		return nil, forbidden("", EventCreate, actor.Role)
	}

	now := e.now()
	created := req
	if created.ID == "" {
		created.ID = e.newID()
	}
	created.Status = string(def.Initial())
	created.Version = 1
	created.CreatedAt = now
	created.CreatedBy = actor.ID

	in := GuardInput{
		Definition: def,
		Request:    created,
		Today:      calendar.Date(now),
		Actor:      actor,
		Calendar:   e.calendarFor(ctx),
		Location:   e.location(now),
	}
	guards := def.CreationGuards()
	err = e.store.InTx(ctx, func(tx Tx) error {
		if needsSiblings(guards) {
			if err := tx.LockScope(ctx, OverlapScope(created)); err != nil {
				return err
			}
		}
		if err := e.evaluate(ctx, guards, &in, "", EventCreate, tx.ListActiveOverlapping); err != nil {
			return err
		}
		return tx.InsertRequest(ctx, &created)
	})
	if err != nil {
		var werr *Error
		if errors.As(err, &werr) {
			return nil, werr
		}
		return nil, fmt.Errorf("create request: %w", err)
	}
	return &created, nil
}

// Apply triggers event on req. On success the returned copy carries the new
// status and version and exactly one audit entry has been appended.
func (e *Executor) Apply(ctx context.Context, req models.Request, event Event, actor models.Actor, payload Payload) (*models.Request, error) {
	def, err := e.Definition(req.Variant)
	if err != nil {
		return nil, err
	}
	from := State(req.Status)
	edge, ok := def.EdgeFor(from, event)
	if !ok {
		werr := unknownTransition(from, event)
		werr.RequestID = req.ID
		e.logger.Warn("unknown transition requested",
			zap.String("request_id", req.ID),
			zap.String("variant", req.Variant),
			zap.String("state", string(from)),
			zap.String("event", string(event)),
			zap.String("actor_id", actor.ID))
		return nil, werr
	}
	if !edge.Allows(actor.Role) {
		werr := forbidden(from, event, actor.Role)
		werr.RequestID = req.ID
		return nil, werr
	}

	now := e.now()
	in := GuardInput{
		Definition: def,
		Request:    req,
		Today:      calendar.Date(now),
		Actor:      actor,
		Payload:    payload,
		Calendar:   e.calendarFor(ctx),
		Location:   e.location(now),
	}
	if err := e.evaluate(ctx, edge.Guards, &in, from, event, e.store.ListActiveOverlapping); err != nil {
		return nil, err
	}

	entry := models.AuditEntry{
		ID:         e.newID(),
		RequestID:  req.ID,
		Variant:    req.Variant,
		Event:      string(event),
		FromStatus: string(from),
		ToStatus:   string(edge.To),
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Answer:     payload.Answer,
		CreatedAt:  AuditTime(now),
	}
	if j := strings.TrimSpace(payload.Justification); j != "" {
		entry.Justification = &j
	}

	err = e.store.InTx(ctx, func(tx Tx) error {
		if err := tx.CompareAndSetStatus(ctx, req.ID, req.Version, from, edge.To); err != nil {
			return err
		}
		last, err := tx.LastEntry(ctx, req.ID)
		if err != nil {
			return err
		}
		Seal(&entry, last)
		return tx.AppendAudit(ctx, &entry)
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrStaleVersion):
		return nil, concurrentModification(req.ID)
	case errors.Is(err, ErrRequestNotFound):
		e.logger.Warn("transition on missing request", zap.String("request_id", req.ID))
		return nil, NotFound(req.ID)
	default:
		return nil, fmt.Errorf("apply %s on %s: %w", event, req.ID, err)
	}

	updated := req
	updated.Status = string(edge.To)
	updated.Version = req.Version + 1
	return &updated, nil
}

type siblingLoader func(ctx context.Context, req models.Request) ([]models.Request, error)

func (e *Executor) evaluate(ctx context.Context, guards []Guard, in *GuardInput, from State, event Event, load siblingLoader) error {
	if needsSiblings(guards) {
		siblings, err := load(ctx, in.Request)
		if err != nil {
			return fmt.Errorf("load overlapping requests: %w", err)
		}
		in.Siblings = siblings
	}
	if reason, ok := Evaluate(guards, *in); !ok {
		werr := guardViolation(from, event, reason)
		werr.RequestID = in.Request.ID
		return werr
	}
	return nil
}
