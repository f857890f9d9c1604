package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/sigpae-api/internal/models"
	"github.com/noah-isme/sigpae-api/internal/workflow"
	appErrors "github.com/noah-isme/sigpae-api/pkg/errors"
)

const sweepBatchSize = 200

type sweepRequestStore interface {
	GetByID(ctx context.Context, id string) (*models.Request, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.Request, error)
}

type transitioner interface {
	Transition(ctx context.Context, req models.Request, event workflow.Event, actor models.Actor, payload workflow.Payload) (*models.Request, error)
}

// SweepSummary reports one sweep run.
type SweepSummary struct {
	Name       string    `json:"name"`
	Candidates int       `json:"candidates"`
	Applied    int       `json:"applied"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

type sweepTarget struct {
	variant      string
	from         []string
	useFinalDate bool
}

// Sweep is a batch transition fired by the system actor, derived from every
// edge only the SISTEMA role may take.
type Sweep struct {
	Name    string
	Event   workflow.Event
	targets []sweepTarget
}

// DeriveSweeps groups system-only edges of the registry by event.
func DeriveSweeps(registry *workflow.Registry) map[string]*Sweep {
	sweeps := make(map[string]*Sweep)
	if registry == nil {
		return sweeps
	}
	for _, variant := range registry.Variants() {
		def, _ := registry.Get(variant)
		byEvent := map[workflow.Event]*sweepTarget{}
		order := []workflow.Event{}
		for _, t := range def.Transitions() {
			if len(t.Roles) != 1 || t.Roles[0] != models.RoleSistema {
				continue
			}
			target, ok := byEvent[t.Event]
			if !ok {
				target = &sweepTarget{variant: variant}
				byEvent[t.Event] = target
				order = append(order, t.Event)
			}
			target.from = append(target.from, string(t.From))
			for _, g := range t.Guards {
				if de, ok := g.(workflow.DateElapsed); ok && de.UseFinalDate {
					target.useFinalDate = true
				}
			}
		}
		for _, event := range order {
			name := string(event)
			sw, ok := sweeps[name]
			if !ok {
				sw = &Sweep{Name: name, Event: event}
				sweeps[name] = sw
			}
			sw.targets = append(sw.targets, *byEvent[event])
		}
	}
	return sweeps
}

// SweepConfig schedules the sweeps.
type SweepConfig struct {
	Enabled  bool
	Schedule string
	Timeout  time.Duration
	Location *time.Location
}

// SweepService runs the automatic transitions, on a cron schedule or on demand.
// Runs are idempotent: requests that already left the candidate states are skipped.
type SweepService struct {
	requests     sweepRequestStore
	transitioner transitioner
	sweeps       map[string]*Sweep
	today        func() time.Time
	cfg          SweepConfig
	metrics      *MetricsService
	logger       *zap.Logger

	mu      sync.Mutex
	running map[string]bool
	cron    *cron.Cron
}

// NewSweepService constructs the service. today must agree with the executor clock.
func NewSweepService(requests sweepRequestStore, transitioner transitioner, registry *workflow.Registry, today func() time.Time, cfg SweepConfig, metrics *MetricsService, logger *zap.Logger) *SweepService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &SweepService{
		requests:     requests,
		transitioner: transitioner,
		sweeps:       DeriveSweeps(registry),
		today:        today,
		cfg:          cfg,
		metrics:      metrics,
		logger:       logger,
		running:      make(map[string]bool),
	}
}

// Names lists the available sweeps.
func (s *SweepService) Names() []string {
	names := make([]string, 0, len(s.sweeps))
	for name := range s.sweeps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start schedules every sweep on the configured cron spec.
func (s *SweepService) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.logger.Info("sweeps disabled")
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}
	c := cron.New(cron.WithSeconds(), cron.WithLocation(s.cfg.Location))
	if _, err := c.AddFunc(s.cfg.Schedule, func() { s.RunAll(ctx) }); err != nil {
		return fmt.Errorf("schedule sweeps %q: %w", s.cfg.Schedule, err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("sweeps scheduled", zap.String("schedule", s.cfg.Schedule), zap.Strings("sweeps", s.Names()))
	return nil
}

// Stop waits for a running scheduled sweep to finish.
func (s *SweepService) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}

// RunAll runs every sweep once, each bounded by the configured timeout.
func (s *SweepService) RunAll(ctx context.Context) {
	for _, name := range s.Names() {
		runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		if _, err := s.Run(runCtx, name); err != nil {
			s.logger.Error("sweep failed", zap.String("sweep", name), zap.Error(err))
		}
		cancel()
	}
}

// Run executes one sweep. Two runs of the same sweep never overlap.
func (s *SweepService) Run(ctx context.Context, name string) (*SweepSummary, error) {
	sweep, ok := s.sweeps[name]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown sweep %q", name))
	}
	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("sweep %q already running", name))
	}
	s.running[name] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
	}()

	summary := &SweepSummary{Name: name, StartedAt: time.Now().UTC()}
	today := s.today()
	var runErr error
	for _, target := range sweep.targets {
		if err := s.sweepTarget(ctx, sweep.Event, target, today, summary); err != nil {
			runErr = err
			break
		}
	}
	summary.FinishedAt = time.Now().UTC()
	s.metrics.ObserveSweep(name, *summary, summary.FinishedAt.Sub(summary.StartedAt))
	s.logger.Info("sweep finished",
		zap.String("sweep", name),
		zap.Int("candidates", summary.Candidates),
		zap.Int("applied", summary.Applied),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
	if runErr != nil {
		return summary, appErrors.Wrap(runErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sweep interrupted")
	}
	return summary, nil
}

func (s *SweepService) sweepTarget(ctx context.Context, event workflow.Event, target sweepTarget, today time.Time, summary *SweepSummary) error {
	filter := models.RequestFilter{Variant: target.variant, Status: target.from, Limit: sweepBatchSize}
	if target.useFinalDate {
		filter.FinalBefore = &today
	} else {
		yesterday := today.AddDate(0, 0, -1)
		filter.To = &yesterday
	}

	// Applied requests leave the candidate set, so only the ones left behind
	// advance the offset.
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := s.requests.List(ctx, filter)
		if err != nil {
			return fmt.Errorf("list %s candidates: %w", target.variant, err)
		}
		for _, req := range page {
			summary.Candidates++
			switch s.sweepOne(ctx, event, target, req) {
			case OutcomeApplied:
				summary.Applied++
			case OutcomeSkipped:
				summary.Skipped++
				filter.Offset++
			default:
				summary.Failed++
				filter.Offset++
			}
		}
		if len(page) < sweepBatchSize {
			return nil
		}
	}
}

func (s *SweepService) sweepOne(ctx context.Context, event workflow.Event, target sweepTarget, req models.Request) string {
	for attempt := 0; attempt < 2; attempt++ {
		_, err := s.transitioner.Transition(ctx, req, event, models.SystemActor(), workflow.Payload{})
		switch workflow.KindOf(err) {
		case 0:
			if err == nil {
				return OutcomeApplied
			}
			s.logger.Error("sweep transition failed",
				zap.String("request_id", req.ID), zap.String("event", string(event)), zap.Error(err))
			return OutcomeError
		case workflow.KindUnknownTransition, workflow.KindGuardViolation, workflow.KindForbidden, workflow.KindNotFound:
			return OutcomeSkipped
		case workflow.KindConcurrentModification:
			fresh, err := s.requests.GetByID(ctx, req.ID)
			if err != nil {
				s.logger.Warn("sweep reload failed", zap.String("request_id", req.ID), zap.Error(err))
				return OutcomeError
			}
			if !containsStatus(target.from, fresh.Status) {
				return OutcomeSkipped
			}
			req = *fresh
		}
	}
	return OutcomeConflict
}

func containsStatus(statuses []string, status string) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}
