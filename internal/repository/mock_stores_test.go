package repository

import (
	"context"
	"testing"
	"time"

	"github.com/notifyhub/pipeline/internal/domain"
)

func TestMockTemplateStore_CreateGetUpdateDelete(t *testing.T) {
	store := NewMockTemplateStore()
	ctx := context.Background()

	tmpl := domain.Template{ID: "t1", Name: "welcome", Subject: "Hi", Body: "Hi {{.Name}}", StaffID: "staff1", CreatedAt: time.Now()}
	if err := store.Create(ctx, tmpl); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "welcome" {
		t.Fatalf("got name %q", got.Name)
	}

	updated, err := store.Update(ctx, "t1", map[string]any{"name": "renamed"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "renamed" {
		t.Fatalf("update did not apply, got %q", updated.Name)
	}

	ok, err := store.Delete(ctx, "t1")
	if err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}

	if _, err := store.Get(ctx, "t1"); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMockTemplateStore_ListPaginates(t *testing.T) {
	store := NewMockTemplateStore()
	ctx := context.Background()
	base := time.Now()
	for i := 0; i < 5; i++ {
		store.Create(ctx, domain.Template{ID: string(rune('a' + i)), CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	page, err := store.List(ctx, domain.ListFilter{PageNumber: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 results, got %d", len(page))
	}
}

func TestMockScheduledStore_GetPendingOrdersByScheduledTime(t *testing.T) {
	store := NewMockScheduledStore()
	ctx := context.Background()
	now := time.Now()

	store.Create(ctx, domain.ScheduledNotification{ID: "late", ScheduledTime: now.Add(-1 * time.Minute), IsSent: false})
	store.Create(ctx, domain.ScheduledNotification{ID: "early", ScheduledTime: now.Add(-10 * time.Minute), IsSent: false})
	store.Create(ctx, domain.ScheduledNotification{ID: "future", ScheduledTime: now.Add(time.Hour), IsSent: false})
	store.Create(ctx, domain.ScheduledNotification{ID: "already-sent", ScheduledTime: now.Add(-time.Minute), IsSent: true})

	due, err := store.GetPending(ctx, now, 10)
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due records, got %d", len(due))
	}
	if due[0].ID != "early" || due[1].ID != "late" {
		t.Fatalf("unexpected order: %v", due)
	}
}

func TestMockScheduledStore_MarkSentRemovesFromPending(t *testing.T) {
	store := NewMockScheduledStore()
	ctx := context.Background()
	now := time.Now()
	store.Create(ctx, domain.ScheduledNotification{ID: "s1", ScheduledTime: now.Add(-time.Minute)})

	if err := store.MarkSent(ctx, "s1"); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	due, _ := store.GetPending(ctx, now, 10)
	if len(due) != 0 {
		t.Fatalf("expected no pending after MarkSent, got %d", len(due))
	}
}

func TestMockScheduledStore_GetByIDsActiveOnlyExcludesSent(t *testing.T) {
	store := NewMockScheduledStore()
	ctx := context.Background()
	store.Create(ctx, domain.ScheduledNotification{ID: "sent", IsSent: true})
	store.Create(ctx, domain.ScheduledNotification{ID: "unsent", IsSent: false})

	out, err := store.GetByIDs(ctx, []string{"sent", "unsent"}, true)
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(out) != 1 || out[0].ID != "unsent" {
		t.Fatalf("expected only unsent record, got %v", out)
	}
}

func TestMockPeriodicStore_GetPendingDeactivatesExpiredFirst(t *testing.T) {
	store := NewMockPeriodicStore()
	ctx := context.Background()
	now := time.Now()
	pastStop := now.Add(-time.Hour)

	store.Create(ctx, domain.PeriodicNotification{
		ID: "expired", IsActive: true, StopDate: &pastStop, NextRunTime: now.Add(-time.Minute),
	})
	store.Create(ctx, domain.PeriodicNotification{
		ID: "live", IsActive: true, NextRunTime: now.Add(-time.Minute),
	})

	due, err := store.GetPending(ctx, now, 10)
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if len(due) != 1 || due[0].ID != "live" {
		t.Fatalf("expected only live record due, got %v", due)
	}

	active, err := store.IsActive(ctx, "expired")
	if err != nil {
		t.Fatalf("IsActive: %v", err)
	}
	if active {
		t.Fatal("expired record should have been deactivated")
	}
}

func TestMockPeriodicStore_AdvanceRunUpdatesTimestamps(t *testing.T) {
	store := NewMockPeriodicStore()
	ctx := context.Background()
	now := time.Now()
	store.Create(ctx, domain.PeriodicNotification{ID: "p1", IsActive: true, NextRunTime: now})

	next := now.Add(24 * time.Hour)
	if err := store.AdvanceRun(ctx, "p1", now, next); err != nil {
		t.Fatalf("AdvanceRun: %v", err)
	}

	got, err := store.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.LastRunTime == nil || !got.LastRunTime.Equal(now) {
		t.Fatalf("LastRunTime not set to now: %v", got.LastRunTime)
	}
	if !got.NextRunTime.Equal(next) {
		t.Fatalf("NextRunTime not advanced: %v", got.NextRunTime)
	}
}

func TestMockPeriodicStore_GetActiveOnlyReturnsActive(t *testing.T) {
	store := NewMockPeriodicStore()
	ctx := context.Background()
	store.Create(ctx, domain.PeriodicNotification{ID: "on", IsActive: true})
	store.Create(ctx, domain.PeriodicNotification{ID: "off", IsActive: false})

	active, err := store.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if len(active) != 1 || active[0].ID != "on" {
		t.Fatalf("expected only 'on', got %v", active)
	}
}

func TestMockPeriodicStore_IsActiveUnknownIDReturnsNotFound(t *testing.T) {
	store := NewMockPeriodicStore()
	if _, err := store.IsActive(context.Background(), "missing"); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
