package workflow

import (
	"context"
	"errors"
	"sync"

	"github.com/noah-isme/sigpae-api/internal/models"
)

type memStore struct {
	mu         sync.Mutex
	requests   map[string]models.Request
	audit      map[string][]models.AuditEntry
	failAppend error
	listCalls  int
	locks      []string
}

func newMemStore(seed ...models.Request) *memStore {
	s := &memStore{
		requests: make(map[string]models.Request),
		audit:    make(map[string][]models.AuditEntry),
	}
	for _, r := range seed {
		s.requests[r.ID] = r
	}
	return s
}

func (s *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:    s,
		requests: make(map[string]models.Request, len(s.requests)),
		audit:    make(map[string][]models.AuditEntry, len(s.audit)),
	}
	for k, v := range s.requests {
		tx.requests[k] = v
	}
	for k, v := range s.audit {
		tx.audit[k] = append([]models.AuditEntry(nil), v...)
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.requests = tx.requests
	s.audit = tx.audit
	return nil
}

func (s *memStore) ListActiveOverlapping(ctx context.Context, req models.Request) ([]models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	return overlappingIn(s.requests, req), nil
}

func overlappingIn(requests map[string]models.Request, req models.Request) []models.Request {
	out := make([]models.Request, 0)
	for _, r := range requests {
		if r.ID != req.ID && r.Variant == req.Variant {
			out = append(out, r)
		}
	}
	return out
}

func (s *memStore) get(id string) models.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[id]
}

func (s *memStore) history(id string) []models.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AuditEntry(nil), s.audit[id]...)
}

type memTx struct {
	store    *memStore
	requests map[string]models.Request
	audit    map[string][]models.AuditEntry
}

func (t *memTx) InsertRequest(ctx context.Context, req *models.Request) error {
	if _, exists := t.requests[req.ID]; exists {
		return errors.New("duplicate request id")
	}
	t.requests[req.ID] = *req
	return nil
}

func (t *memTx) CompareAndSetStatus(ctx context.Context, id string, version int, from, to State) error {
	r, ok := t.requests[id]
	if !ok {
		return ErrRequestNotFound
	}
	if r.Version != version || r.Status != string(from) {
		return ErrStaleVersion
	}
	r.Status = string(to)
	r.Version++
	t.requests[id] = r
	return nil
}

func (t *memTx) LastEntry(ctx context.Context, requestID string) (*models.AuditEntry, error) {
	entries := t.audit[requestID]
	if len(entries) == 0 {
		return nil, nil
	}
	last := entries[len(entries)-1]
	return &last, nil
}

func (t *memTx) LockScope(ctx context.Context, key string) error {
	t.store.locks = append(t.store.locks, key)
	return nil
}

// ListActiveOverlapping reads the transaction's snapshot; InTx already holds the store lock.
func (t *memTx) ListActiveOverlapping(ctx context.Context, req models.Request) ([]models.Request, error) {
	t.store.listCalls++
	return overlappingIn(t.requests, req), nil
}

func (t *memTx) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	if t.store.failAppend != nil {
		return t.store.failAppend
	}
	for _, e := range t.audit[entry.RequestID] {
		if e.Seq == entry.Seq {
			return ErrStaleVersion
		}
	}
	t.audit[entry.RequestID] = append(t.audit[entry.RequestID], *entry)
	return nil
}
