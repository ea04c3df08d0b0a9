package repository

import (
	"context"
	"time"

	"github.com/notifyhub/pipeline/internal/domain"
)

// TemplateStore is the persisted-template CRUD contract.
type TemplateStore interface {
	Create(ctx context.Context, t domain.Template) error
	Get(ctx context.Context, id string) (domain.Template, error)
	List(ctx context.Context, filter domain.ListFilter) ([]domain.Template, error)
	Update(ctx context.Context, id string, sets map[string]any) (domain.Template, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// ScheduledStore is the Record-store contract for one-shot records.
type ScheduledStore interface {
	Create(ctx context.Context, s domain.ScheduledNotification) error
	Get(ctx context.Context, id string) (domain.ScheduledNotification, error)
	List(ctx context.Context, filter domain.ListFilter) ([]domain.ScheduledNotification, error)
	Update(ctx context.Context, id string, sets map[string]any) (domain.ScheduledNotification, error)
	Delete(ctx context.Context, id string) (bool, error)
	MarkSent(ctx context.Context, id string) error
	GetPending(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledNotification, error)
	GetByIDs(ctx context.Context, ids []string, activeOnly bool) ([]domain.ScheduledNotification, error)
}

// PeriodicStore is the Record-store contract for repeating records.
type PeriodicStore interface {
	Create(ctx context.Context, p domain.PeriodicNotification) error
	Get(ctx context.Context, id string) (domain.PeriodicNotification, error)
	List(ctx context.Context, filter domain.ListFilter) ([]domain.PeriodicNotification, error)
	Update(ctx context.Context, id string, sets map[string]any) (domain.PeriodicNotification, error)
	Delete(ctx context.Context, id string) (bool, error)
	GetPending(ctx context.Context, now time.Time, limit int) ([]domain.PeriodicNotification, error)
	GetByIDs(ctx context.Context, ids []string, activeOnly bool) ([]domain.PeriodicNotification, error)
	GetActive(ctx context.Context) ([]domain.PeriodicNotification, error)
	IsActive(ctx context.Context, id string) (bool, error)
	AdvanceRun(ctx context.Context, id string, now, nextRun time.Time) error
}

var (
	_ TemplateStore  = (*TemplateRepository)(nil)
	_ ScheduledStore = (*ScheduledRepository)(nil)
	_ PeriodicStore  = (*PeriodicRepository)(nil)
)
