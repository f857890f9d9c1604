package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sigpae-api/internal/models"
	"github.com/noah-isme/sigpae-api/internal/workflow"
	"github.com/noah-isme/sigpae-api/pkg/jobs"
)

type captureNotifier struct {
	mu    sync.Mutex
	sent  []Notification
	fails int
	done  chan struct{}
}

func newCaptureNotifier(fails int) *captureNotifier {
	return &captureNotifier{fails: fails, done: make(chan struct{}, 8)}
}

func (n *captureNotifier) Notify(_ context.Context, msg Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fails > 0 {
		n.fails--
		return errors.New("smtp down")
	}
	n.sent = append(n.sent, msg)
	n.done <- struct{}{}
	return nil
}

func (n *captureNotifier) messages() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}

func testRegistry(t *testing.T) *workflow.Registry {
	t.Helper()
	registry, err := workflow.DefaultRegistry(workflow.DefaultVariantParams())
	require.NoError(t, err)
	return registry
}

func sampleNotice(to workflow.State) TransitionNotice {
	req := escolaRequest("abcdef12-0000", workflow.VariantAlteracaoCardapio, to, ymd(2024, 3, 20))
	return TransitionNotice{
		Request:       req,
		Event:         string(workflow.EventIniciar),
		From:          string(workflow.StateRascunho),
		To:            string(to),
		Actor:         models.Actor{ID: "user-escola", Role: models.RoleEscola},
		Justification: "cardápio especial",
		At:            time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC),
	}
}

func TestNotificationRenderUsesFamilyAdapter(t *testing.T) {
	svc := NewNotificationService(newCaptureNotifier(0), testRegistry(t), nil, nil, jobs.QueueConfig{})

	msg := svc.Render(sampleNotice(workflow.StateAValidar))
	assert.Equal(t, "#ABCDE", msg.ExternalID)
	assert.Equal(t, "[SIGPAE] alteracao cardapio #ABCDE para 20/03/2024", msg.Subject)
	assert.Contains(t, msg.Body, "passou de rascunho para a_validar")
	assert.Contains(t, msg.Body, "Justificativa: cardápio especial")
	assert.Contains(t, msg.Recipients, models.RoleDRE)
	assert.NotContains(t, msg.Recipients, models.RoleSistema)

	terminal := svc.Render(sampleNotice(workflow.StateNegado))
	assert.Equal(t, []models.UserRole{models.RoleEscola}, terminal.Recipients)
}

func TestNotificationRenderDietaSubject(t *testing.T) {
	svc := NewNotificationService(nil, testRegistry(t), nil, nil, jobs.QueueConfig{})
	notice := sampleNotice(workflow.StateAAutorizar)
	notice.Request.Variant = workflow.VariantDietaEspecial
	notice.Request.Details = json.RawMessage(`{"nome_aluno":"Ana"}`)

	msg := svc.Render(notice)
	assert.Equal(t, "[SIGPAE] Dieta especial #ABCDE - Ana", msg.Subject)
	assert.Equal(t, []models.UserRole{models.RoleCODAE, models.RoleEscola}, msg.Recipients)
}

func TestNotificationRenderUnknownVariant(t *testing.T) {
	svc := NewNotificationService(nil, nil, nil, nil, jobs.QueueConfig{})
	notice := sampleNotice(workflow.StateAValidar)
	notice.Request.Variant = "desconhecida"

	msg := svc.Render(notice)
	assert.Empty(t, msg.Recipients)
	assert.Contains(t, msg.Subject, "#ABCDE")
}

func TestNotificationPublishDeliversWithRetry(t *testing.T) {
	notifier := newCaptureNotifier(1)
	svc := NewNotificationService(notifier, testRegistry(t), NewMetricsService(), zap.NewNop(), jobs.QueueConfig{
		Workers:    1,
		BufferSize: 4,
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
	})
	svc.Start(context.Background())
	defer svc.Stop()

	svc.Publish(context.Background(), sampleNotice(workflow.StateAValidar))

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
	sent := notifier.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "abcdef12-0000", sent[0].RequestID)
}

func TestNotificationPublishBeforeStartDrops(t *testing.T) {
	notifier := newCaptureNotifier(0)
	svc := NewNotificationService(notifier, testRegistry(t), nil, nil, jobs.QueueConfig{})

	assert.NotPanics(t, func() {
		svc.Publish(context.Background(), sampleNotice(workflow.StateAValidar))
	})
	assert.Empty(t, notifier.messages())
}
