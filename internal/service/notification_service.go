package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sigpae-api/internal/models"
	"github.com/noah-isme/sigpae-api/internal/workflow"
	"github.com/noah-isme/sigpae-api/pkg/jobs"
)

// JobTypeAuditAppended identifies notification jobs.
const JobTypeAuditAppended = "audit.appended"

// TransitionNotice describes a committed transition.
type TransitionNotice struct {
	Request       models.Request
	Event         string
	From          string
	To            string
	Actor         models.Actor
	Justification string
	At            time.Time
}

// Notification is the rendered message handed to a Notifier.
type Notification struct {
	RequestID  string
	ExternalID string
	Variant    string
	Event      string
	Status     string
	Recipients []models.UserRole
	Subject    string
	Body       string
	At         time.Time
}

// Notifier delivers notifications. Delivery channels live outside this service.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs the default notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, msg Notification) error {
	recipients := make([]string, 0, len(msg.Recipients))
	for _, r := range msg.Recipients {
		recipients = append(recipients, string(r))
	}
	n.logger.Info("notification",
		zap.String("request_id", msg.RequestID),
		zap.String("external_id", msg.ExternalID),
		zap.String("variant", msg.Variant),
		zap.String("event", msg.Event),
		zap.String("status", msg.Status),
		zap.Strings("recipients", recipients),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body))
	return nil
}

// NotificationService turns transition notices into notifications on a
// background queue so delivery never blocks the transition.
type NotificationService struct {
	queue    *jobs.Queue
	notifier Notifier
	registry *workflow.Registry
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewNotificationService builds the service and its queue. Call Start before publishing.
func NewNotificationService(notifier Notifier, registry *workflow.Registry, metrics *MetricsService, logger *zap.Logger, cfg jobs.QueueConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	svc := &NotificationService{notifier: notifier, registry: registry, metrics: metrics, logger: logger}
	cfg.Logger = logger
	svc.queue = jobs.NewQueue("notifications", svc.handle, cfg)
	return svc
}

// Start launches the workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Publish implements TransitionPublisher. A full or stopped queue drops the
// notice with a warning; the audit entry is already committed.
func (s *NotificationService) Publish(_ context.Context, notice TransitionNotice) {
	job := jobs.Job{
		ID:      fmt.Sprintf("%s:%s", notice.Request.ID, notice.Event),
		Type:    JobTypeAuditAppended,
		Payload: notice,
	}
	if err := s.queue.TryEnqueue(job); err != nil {
		s.metrics.ObserveNotification("dropped")
		s.logger.Warn("notification dropped",
			zap.String("request_id", notice.Request.ID),
			zap.String("event", notice.Event),
			zap.Error(err))
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	notice, ok := job.Payload.(TransitionNotice)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	msg := s.Render(notice)
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.metrics.ObserveNotification(OutcomeError)
		return fmt.Errorf("notify %s: %w", notice.Request.ID, err)
	}
	s.metrics.ObserveNotification("delivered")
	return nil
}

// Render builds the notification for a notice using the family adapter.
func (s *NotificationService) Render(notice TransitionNotice) Notification {
	var family workflow.Family
	var def *workflow.Definition
	if s.registry != nil {
		if d, ok := s.registry.Get(notice.Request.Variant); ok {
			def = d
			family = d.Family()
		}
	}
	adapter := ReportableFor(family)
	return Notification{
		RequestID:  notice.Request.ID,
		ExternalID: notice.Request.ExternalID(),
		Variant:    notice.Request.Variant,
		Event:      notice.Event,
		Status:     notice.To,
		Recipients: recipientsFor(def, workflow.State(notice.To)),
		Subject:    adapter.Subject(notice.Request),
		Body:       adapter.Message(notice),
		At:         notice.At,
	}
}

// recipientsFor returns the roles expected to act next; terminal states notify
// the creators.
func recipientsFor(def *workflow.Definition, state workflow.State) []models.UserRole {
	if def == nil {
		return nil
	}
	if def.IsTerminal(state) {
		return def.CreatorRoles()
	}
	seen := map[models.UserRole]struct{}{}
	for _, t := range def.Transitions() {
		if t.From != state {
			continue
		}
		for _, r := range t.Roles {
			if r != models.RoleSistema {
				seen[r] = struct{}{}
			}
		}
	}
	out := make([]models.UserRole, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
