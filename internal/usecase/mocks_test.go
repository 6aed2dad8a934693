// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"billing-lifecycle/internal/domain"
	"billing-lifecycle/internal/domain/model"
	"billing-lifecycle/internal/domain/ports/adapter"
	"billing-lifecycle/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memServiceRepo is a small in-memory implementation used by unit tests.
type memServiceRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Service
}

func newMemServiceRepo() *memServiceRepo {
	return &memServiceRepo{store: make(map[string]*model.Service)}
}

func (m *memServiceRepo) Save(ctx context.Context, tx repository.Tx, s *model.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *memServiceRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memServiceRepo) ListBillable(ctx context.Context, tx repository.Tx) ([]*model.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Service
	for _, s := range m.store {
		if s.Status != model.ServiceStatusCancelled {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memServiceRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.ServiceStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = status
	return nil
}

// memRequestRepo mirrors the store-level single-active-request guard: the
// existence check and the insert happen under one mutex, like the partial
// unique index does in Postgres.
type memRequestRepo struct {
	mu    sync.Mutex
	store map[string]*model.PaymentRequest

	createErr    error  // simulate storage failures
	beforeAttach func() // runs before AttachProof takes the lock
}

func newMemRequestRepo() *memRequestRepo {
	return &memRequestRepo{store: make(map[string]*model.PaymentRequest)}
}

func (m *memRequestRepo) CreateIfNoneActive(ctx context.Context, tx repository.Tx, r *model.PaymentRequest) (bool, error) {
	if m.createErr != nil {
		return false, m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.store {
		if ex.ServiceID == r.ServiceID && ex.Status.Active() {
			return false, nil
		}
	}
	cp := *r
	m.store[r.ID] = &cp
	return true, nil
}

func (m *memRequestRepo) Save(ctx context.Context, tx repository.Tx, r *model.PaymentRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.store[r.ID] = &cp
	return nil
}

func (m *memRequestRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRequestRepo) FindActiveByService(ctx context.Context, tx repository.Tx, serviceID string) (*model.PaymentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.store {
		if r.ServiceID == serviceID && r.Status.Active() {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memRequestRepo) ListByService(ctx context.Context, tx repository.Tx, serviceID string) ([]*model.PaymentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentRequest
	for _, r := range m.store {
		if r.ServiceID == serviceID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRequestRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, to model.PaymentRequestStatus, expectFrom []model.PaymentRequestStatus, cancelReason *string, paidAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[id]
	if !ok {
		return false, nil
	}
	matched := false
	for _, f := range expectFrom {
		if r.Status == f {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	r.Status = to
	r.UpdatedAt = time.Now()
	if cancelReason != nil {
		r.CancelReason = cancelReason
	}
	if paidAt != nil {
		r.PaidAt = paidAt
	}
	return true, nil
}

func (m *memRequestRepo) AttachProof(ctx context.Context, tx repository.Tx, id string, proofRef string, to model.PaymentRequestStatus, paidAt *time.Time) (bool, error) {
	if m.beforeAttach != nil {
		m.beforeAttach()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[id]
	if !ok || r.Status != model.RequestStatusPending {
		return false, nil
	}
	r.ProofRef = &proofRef
	r.Status = to
	if paidAt != nil {
		r.PaidAt = paidAt
	}
	r.UpdatedAt = time.Now()
	return true, nil
}

func (m *memRequestRepo) SetChannel(ctx context.Context, tx repository.Tx, id string, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[id]
	if !ok || r.Status != model.RequestStatusPending {
		return domain.ErrNotFound
	}
	r.Channel = channel
	return nil
}

// activeCount reports how many requests for the service are pending/processing.
func (m *memRequestRepo) activeCount(serviceID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.store {
		if r.ServiceID == serviceID && r.Status.Active() {
			n++
		}
	}
	return n
}

func (m *memRequestRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}

// memChannelRepo holds channel configs in memory.
type memChannelRepo struct {
	mu    sync.RWMutex
	store map[string]*model.ChannelConfig
}

func newMemChannelRepo() *memChannelRepo {
	return &memChannelRepo{store: make(map[string]*model.ChannelConfig)}
}

func (m *memChannelRepo) Save(ctx context.Context, tx repository.Tx, c *model.ChannelConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.store[c.Key] = &cp
	return nil
}

func (m *memChannelRepo) FindByKey(ctx context.Context, tx repository.Tx, key string) (*model.ChannelConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.store[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memChannelRepo) ListEnabled(ctx context.Context, tx repository.Tx) ([]*model.ChannelConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.ChannelConfig
	for _, c := range m.store {
		if c.Enabled {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// mockSink records notifications.
type mockSink struct {
	mu     sync.Mutex
	events []adapter.NotificationKind
	err    error
}

func (s *mockSink) Notify(ctx context.Context, kind adapter.NotificationKind, req *model.PaymentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, kind)
	return s.err
}

func (s *mockSink) countOf(kind adapter.NotificationKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, k := range s.events {
		if k == kind {
			n++
		}
	}
	return n
}

// mockEvidence is an EvidenceStore with an overridable Put.
type mockEvidence struct {
	PutFunc func(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

func (m *mockEvidence) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, key, body, contentType)
	}
	return "s3://test-bucket/" + key, nil
}
