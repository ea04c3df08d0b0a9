package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/notifyhub/pipeline/internal/domain"
)

// MockTemplateStore is a hand-written, in-memory TemplateStore used in unit
// tests. No mock-generation library needed, matching MockNotificationRepository's
// style.
type MockTemplateStore struct {
	mu        sync.RWMutex
	templates map[string]domain.Template
}

func NewMockTemplateStore() *MockTemplateStore {
	return &MockTemplateStore{templates: make(map[string]domain.Template)}
}

func (m *MockTemplateStore) Create(_ context.Context, t domain.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.ID] = t
	return nil
}

func (m *MockTemplateStore) Get(_ context.Context, id string) (domain.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[id]
	if !ok {
		return domain.Template{}, domain.ErrNotFound
	}
	return t, nil
}

func (m *MockTemplateStore) List(_ context.Context, filter domain.ListFilter) ([]domain.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]domain.Template, 0, len(m.templates))
	for _, t := range m.templates {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, filter), nil
}

func (m *MockTemplateStore) Update(_ context.Context, id string, sets map[string]any) (domain.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok {
		return domain.Template{}, domain.ErrNotFound
	}
	if v, ok := sets["name"].(string); ok {
		t.Name = v
	}
	if v, ok := sets["subject"].(string); ok {
		t.Subject = v
	}
	if v, ok := sets["body"].(string); ok {
		t.Body = v
	}
	t.UpdatedAt = time.Now().UTC()
	m.templates[id] = t
	return t, nil
}

func (m *MockTemplateStore) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[id]; !ok {
		return false, nil
	}
	delete(m.templates, id)
	return true, nil
}

// MockScheduledStore is a hand-written, in-memory ScheduledStore.
type MockScheduledStore struct {
	mu      sync.RWMutex
	records map[string]domain.ScheduledNotification
}

func NewMockScheduledStore() *MockScheduledStore {
	return &MockScheduledStore{records: make(map[string]domain.ScheduledNotification)}
}

func (m *MockScheduledStore) Create(_ context.Context, s domain.ScheduledNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[s.ID] = s
	return nil
}

func (m *MockScheduledStore) Get(_ context.Context, id string) (domain.ScheduledNotification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.records[id]
	if !ok {
		return domain.ScheduledNotification{}, domain.ErrNotFound
	}
	return s, nil
}

func (m *MockScheduledStore) List(_ context.Context, filter domain.ListFilter) ([]domain.ScheduledNotification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]domain.ScheduledNotification, 0, len(m.records))
	for _, s := range m.records {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, filter), nil
}

func (m *MockScheduledStore) Update(_ context.Context, id string, sets map[string]any) (domain.ScheduledNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.records[id]
	if !ok {
		return domain.ScheduledNotification{}, domain.ErrNotFound
	}
	if v, ok := sets["is_sent"].(bool); ok {
		s.IsSent = v
	}
	s.UpdatedAt = time.Now().UTC()
	m.records[id] = s
	return s, nil
}

func (m *MockScheduledStore) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return false, nil
	}
	delete(m.records, id)
	return true, nil
}

func (m *MockScheduledStore) MarkSent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.records[id]; ok {
		s.IsSent = true
		s.UpdatedAt = time.Now().UTC()
		m.records[id] = s
	}
	return nil
}

func (m *MockScheduledStore) GetPending(_ context.Context, now time.Time, limit int) ([]domain.ScheduledNotification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var due []domain.ScheduledNotification
	for _, s := range m.records {
		if !s.IsSent && !s.ScheduledTime.After(now) {
			due = append(due, s)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].ScheduledTime.Equal(due[j].ScheduledTime) {
			return due[i].ID < due[j].ID
		}
		return due[i].ScheduledTime.Before(due[j].ScheduledTime)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *MockScheduledStore) GetByIDs(_ context.Context, ids []string, activeOnly bool) ([]domain.ScheduledNotification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.ScheduledNotification
	for _, id := range ids {
		s, ok := m.records[id]
		if !ok {
			continue
		}
		if activeOnly && s.IsSent {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// MockPeriodicStore is a hand-written, in-memory PeriodicStore.
type MockPeriodicStore struct {
	mu      sync.RWMutex
	records map[string]domain.PeriodicNotification
}

func NewMockPeriodicStore() *MockPeriodicStore {
	return &MockPeriodicStore{records: make(map[string]domain.PeriodicNotification)}
}

func (m *MockPeriodicStore) Create(_ context.Context, p domain.PeriodicNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[p.ID] = p
	return nil
}

func (m *MockPeriodicStore) Get(_ context.Context, id string) (domain.PeriodicNotification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.records[id]
	if !ok {
		return domain.PeriodicNotification{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *MockPeriodicStore) List(_ context.Context, filter domain.ListFilter) ([]domain.PeriodicNotification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]domain.PeriodicNotification, 0, len(m.records))
	for _, p := range m.records {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, filter), nil
}

func (m *MockPeriodicStore) Update(_ context.Context, id string, sets map[string]any) (domain.PeriodicNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.records[id]
	if !ok {
		return domain.PeriodicNotification{}, domain.ErrNotFound
	}
	if v, ok := sets["is_active"].(bool); ok {
		p.IsActive = v
	}
	p.UpdatedAt = time.Now().UTC()
	m.records[id] = p
	return p, nil
}

func (m *MockPeriodicStore) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return false, nil
	}
	delete(m.records, id)
	return true, nil
}

func (m *MockPeriodicStore) deactivateExpiredLocked(now time.Time) {
	for id, p := range m.records {
		if p.IsActive && p.StopDate != nil && !p.StopDate.After(now) {
			p.IsActive = false
			m.records[id] = p
		}
	}
}

func (m *MockPeriodicStore) GetPending(_ context.Context, now time.Time, limit int) ([]domain.PeriodicNotification, error) {
	m.mu.Lock()
	m.deactivateExpiredLocked(now)
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()
	var due []domain.PeriodicNotification
	for _, p := range m.records {
		if p.IsActive && !p.NextRunTime.After(now) {
			due = append(due, p)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].NextRunTime.Equal(due[j].NextRunTime) {
			return due[i].ID < due[j].ID
		}
		return due[i].NextRunTime.Before(due[j].NextRunTime)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *MockPeriodicStore) GetByIDs(_ context.Context, ids []string, activeOnly bool) ([]domain.PeriodicNotification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.PeriodicNotification
	for _, id := range ids {
		p, ok := m.records[id]
		if !ok {
			continue
		}
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *MockPeriodicStore) GetActive(_ context.Context) ([]domain.PeriodicNotification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.PeriodicNotification
	for _, p := range m.records {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockPeriodicStore) IsActive(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.records[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	return p.IsActive, nil
}

func (m *MockPeriodicStore) AdvanceRun(_ context.Context, id string, now, nextRun time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.LastRunTime = &now
	p.NextRunTime = nextRun
	p.UpdatedAt = now
	m.records[id] = p
	return nil
}

func paginate[T any](all []T, filter domain.ListFilter) []T {
	offset := filter.Offset()
	if offset >= len(all) {
		return nil
	}
	end := offset + filter.PageSize
	if filter.PageSize <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

var (
	_ TemplateStore  = (*MockTemplateStore)(nil)
	_ ScheduledStore = (*MockScheduledStore)(nil)
	_ PeriodicStore  = (*MockPeriodicStore)(nil)
)
