package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sigpae-api/internal/models"
	"github.com/noah-isme/sigpae-api/internal/repository"
	"github.com/noah-isme/sigpae-api/internal/workflow"
)

// memRequests backs the workflow store and the read-side interfaces with maps.
type memRequests struct {
	mu       sync.Mutex
	requests map[string]models.Request
	audit    map[string][]models.AuditEntry
	listErr  error
	lists    []models.RequestFilter
	// staleOnce makes the next status update of an id fail as if another
	// writer got there first.
	staleOnce map[string]bool
}

func newMemRequests(seed ...models.Request) *memRequests {
	m := &memRequests{
		requests: make(map[string]models.Request),
		audit:    make(map[string][]models.AuditEntry),
	}
	for _, r := range seed {
		m.requests[r.ID] = r
	}
	return m
}

func (m *memRequests) InTx(ctx context.Context, fn func(tx workflow.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memRequestTx{owner: m, requests: make(map[string]models.Request, len(m.requests)), audit: make(map[string][]models.AuditEntry, len(m.audit))}
	for k, v := range m.requests {
		tx.requests[k] = v
	}
	for k, v := range m.audit {
		tx.audit[k] = append([]models.AuditEntry(nil), v...)
	}
	if err := fn(tx); err != nil {
		return err
	}
	m.requests = tx.requests
	m.audit = tx.audit
	return nil
}

func (m *memRequests) ListActiveOverlapping(ctx context.Context, req models.Request) ([]models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return overlapping(m.requests, req), nil
}

func overlapping(requests map[string]models.Request, req models.Request) []models.Request {
	out := make([]models.Request, 0)
	for _, r := range requests {
		if r.ID != req.ID && r.Variant == req.Variant && r.Overlaps(req) {
			out = append(out, r)
		}
	}
	return out
}

func (m *memRequests) GetByID(ctx context.Context, id string) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (m *memRequests) matching(filter models.RequestFilter) []models.Request {
	match := func(want string, got *string) bool {
		return want == "" || (got != nil && *got == want)
	}
	out := make([]models.Request, 0)
	for _, r := range m.requests {
		if filter.Variant != "" && r.Variant != filter.Variant {
			continue
		}
		if len(filter.Status) > 0 && !containsString(filter.Status, r.Status) {
			continue
		}
		if !match(filter.EscolaID, r.EscolaID) || !match(filter.DREID, r.DREID) ||
			!match(filter.LoteID, r.LoteID) || !match(filter.TerceirizadaID, r.TerceirizadaID) {
			continue
		}
		if filter.From != nil && r.DataInicial.Before(*filter.From) {
			continue
		}
		if filter.To != nil && r.DataInicial.After(*filter.To) {
			continue
		}
		if filter.FinalBefore != nil && !r.LastDate().Before(*filter.FinalBefore) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DataInicial.Equal(out[j].DataInicial) {
			return out[i].DataInicial.Before(out[j].DataInicial)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *memRequests) List(ctx context.Context, filter models.RequestFilter) ([]models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists = append(m.lists, filter)
	if m.listErr != nil {
		return nil, m.listErr
	}
	all := m.matching(filter)
	if filter.Offset >= len(all) {
		return []models.Request{}, nil
	}
	all = all[filter.Offset:]
	if filter.Limit > 0 && len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	return all, nil
}

func (m *memRequests) Count(ctx context.Context, filter models.RequestFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return 0, m.listErr
	}
	return len(m.matching(filter)), nil
}

func (m *memRequests) History(ctx context.Context, requestID string) ([]models.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AuditEntry(nil), m.audit[requestID]...), nil
}

func (m *memRequests) get(id string) models.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[id]
}

type memRequestTx struct {
	owner    *memRequests
	requests map[string]models.Request
	audit    map[string][]models.AuditEntry
}

func (t *memRequestTx) InsertRequest(ctx context.Context, req *models.Request) error {
	if _, exists := t.requests[req.ID]; exists {
		return errors.New("duplicate request id")
	}
	t.requests[req.ID] = *req
	return nil
}

func (t *memRequestTx) CompareAndSetStatus(ctx context.Context, id string, version int, from, to workflow.State) error {
	if t.owner.staleOnce[id] {
		delete(t.owner.staleOnce, id)
		return workflow.ErrStaleVersion
	}
	r, ok := t.requests[id]
	if !ok {
		return workflow.ErrRequestNotFound
	}
	if r.Version != version || r.Status != string(from) {
		return workflow.ErrStaleVersion
	}
	r.Status = string(to)
	r.Version++
	t.requests[id] = r
	return nil
}

func (t *memRequestTx) LastEntry(ctx context.Context, requestID string) (*models.AuditEntry, error) {
	entries := t.audit[requestID]
	if len(entries) == 0 {
		return nil, nil
	}
	last := entries[len(entries)-1]
	return &last, nil
}

func (t *memRequestTx) LockScope(ctx context.Context, key string) error { return nil }

func (t *memRequestTx) ListActiveOverlapping(ctx context.Context, req models.Request) ([]models.Request, error) {
	return overlapping(t.requests, req), nil
}

func (t *memRequestTx) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	t.audit[entry.RequestID] = append(t.audit[entry.RequestID], *entry)
	return nil
}

type stubTrails struct {
	escolas map[string]models.Trail
	dres    map[string]bool
	err     error
}

func (s *stubTrails) TrailForEscola(ctx context.Context, escolaID string) (*models.Trail, error) {
	if s.err != nil {
		return nil, s.err
	}
	trail, ok := s.escolas[escolaID]
	if !ok {
		return nil, repository.ErrInstitutionNotFound
	}
	return &trail, nil
}

func (s *stubTrails) TrailForDRE(ctx context.Context, dreID string) (*models.Trail, error) {
	if s.err != nil {
		return nil, s.err
	}
	if !s.dres[dreID] {
		return nil, repository.ErrInstitutionNotFound
	}
	id := dreID
	return &models.Trail{DREID: &id}, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	notices []TransitionNotice
}

func (p *recordingPublisher) Publish(ctx context.Context, notice TransitionNotice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, notice)
}

func (p *recordingPublisher) all() []TransitionNotice {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]TransitionNotice(nil), p.notices...)
}

func containsString(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

func ptr(s string) *string { return &s }

func ymd(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newWorkflowExecutor(t *testing.T, store workflow.Store, now time.Time) *workflow.Executor {
	t.Helper()
	registry, err := workflow.DefaultRegistry(workflow.DefaultVariantParams())
	require.NoError(t, err)
	seq := 0
	return workflow.NewExecutor(registry, store,
		workflow.WithClock(func() time.Time { return now }),
		workflow.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%03d", seq)
		}),
	)
}

func escolaRequest(id, variant string, status workflow.State, event time.Time) models.Request {
	return models.Request{
		ID:          id,
		Variant:     variant,
		Status:      string(status),
		Version:     1,
		DataInicial: event,
		Category:    "motivo-1",
		CreatedBy:   "user-escola",
		CreatedAt:   event.AddDate(0, 0, -10),
		Trail:       models.Trail{EscolaID: ptr("escola-1"), DREID: ptr("dre-1"), LoteID: ptr("lote-1"), TerceirizadaID: ptr("terc-1")},
	}
}

var (
	escolaClaims = &models.JWTClaims{UserID: "user-escola", Role: models.RoleEscola, InstitutionID: "escola-1"}
	dreClaims    = &models.JWTClaims{UserID: "user-dre", Role: models.RoleDRE, InstitutionID: "dre-1"}
	codaeClaims  = &models.JWTClaims{UserID: "user-codae", Role: models.RoleCODAE}
)
