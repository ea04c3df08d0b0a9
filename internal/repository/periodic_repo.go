package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/pipeline/internal/domain"
)

const periodicColumns = "id, staff_id, template_id, channel_type, event_type, context, subscriber_query_type, " +
	"subscriber_query_params, cron_schedule, last_run_time, next_run_time, is_active, stop_date, created_at, updated_at"

func scanPeriodic(row pgx.Row) (domain.PeriodicNotification, error) {
	var p domain.PeriodicNotification
	var ctxRaw, paramsRaw []byte
	err := row.Scan(&p.ID, &p.StaffID, &p.TemplateID, &p.ChannelType, &p.EventType, &ctxRaw,
		&p.SubscriberQueryType, &paramsRaw, &p.CronSchedule, &p.LastRunTime, &p.NextRunTime,
		&p.IsActive, &p.StopDate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.Context, err = unmarshalContext(ctxRaw)
	if err != nil {
		return p, err
	}
	if len(paramsRaw) > 0 {
		p.SubscriberQueryParams, err = unmarshalContext(paramsRaw)
		if err != nil {
			return p, err
		}
	}
	return p, nil
}

// PeriodicRepository adds the deactivation-then-select and run-time-advance
// queries the Scheduler needs on top of the generic CRUD base. Grounded on
// repositories/sql/periodic_notification.py's update_active_status/
// get_pending/get_by_ids/get_active.
type PeriodicRepository struct {
	pool  *pgxpool.Pool
	store *CRUDStore[domain.PeriodicNotification]
}

func NewPeriodicRepository(pool *pgxpool.Pool) *PeriodicRepository {
	return &PeriodicRepository{
		pool: pool,
		store: NewCRUDStore(pool, Descriptor[domain.PeriodicNotification]{
			Table:         "periodic_notifications",
			SelectColumns: periodicColumns,
			InsertColumns: []string{"id", "staff_id", "template_id", "channel_type", "event_type", "context",
				"subscriber_query_type", "subscriber_query_params", "cron_schedule", "last_run_time",
				"next_run_time", "is_active", "stop_date", "created_at", "updated_at"},
			InsertValues: func(p domain.PeriodicNotification) []any {
				ctxJSON, _ := marshalContext(p.Context)
				paramsJSON, _ := marshalContext(p.SubscriberQueryParams)
				return []any{p.ID, p.StaffID, p.TemplateID, p.ChannelType, p.EventType, ctxJSON,
					p.SubscriberQueryType, paramsJSON, p.CronSchedule, p.LastRunTime, p.NextRunTime,
					p.IsActive, p.StopDate, p.CreatedAt, p.UpdatedAt}
			},
			Scan:       scanPeriodic,
			IDOf:       func(p domain.PeriodicNotification) string { return p.ID },
			OnConflict: mapPGConflict,
		}),
	}
}

func (r *PeriodicRepository) Create(ctx context.Context, p domain.PeriodicNotification) error {
	return r.store.Create(ctx, p)
}

func (r *PeriodicRepository) Get(ctx context.Context, id string) (domain.PeriodicNotification, error) {
	return r.store.Get(ctx, id)
}

func (r *PeriodicRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.PeriodicNotification, error) {
	return r.store.List(ctx, filter)
}

func (r *PeriodicRepository) Update(ctx context.Context, id string, sets map[string]any) (domain.PeriodicNotification, error) {
	return r.store.Update(ctx, id, sets)
}

func (r *PeriodicRepository) Delete(ctx context.Context, id string) (bool, error) {
	return r.store.Delete(ctx, id)
}

// deactivateExpired atomically flips is_active=false for any record whose
// stop_date has passed, before selection — the "on-pending" hook of the
// entity descriptor.
func (r *PeriodicRepository) deactivateExpired(ctx context.Context, now time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE periodic_notifications SET is_active = false
		WHERE is_active = true AND stop_date IS NOT NULL AND stop_date <= $1`, now)
	if err != nil {
		return fmt.Errorf("deactivate expired periodic: %w", err)
	}
	return nil
}

// GetPending deactivates expired records, then returns active records due
// to run, ordered by next_run_time ascending.
func (r *PeriodicRepository) GetPending(ctx context.Context, now time.Time, limit int) ([]domain.PeriodicNotification, error) {
	if err := r.deactivateExpired(ctx, now); err != nil {
		return nil, err
	}

	// NULLIF($2, 0) turns a non-positive limit into an unbounded LIMIT NULL
	// rather than Postgres's literal (and here wrong) "LIMIT 0 -> 0 rows".
	if limit < 0 {
		limit = 0
	}
	query := fmt.Sprintf(`SELECT %s FROM periodic_notifications
		WHERE is_active = true AND next_run_time <= $1
		ORDER BY next_run_time ASC, id ASC
		LIMIT NULLIF($2, 0)`, periodicColumns)

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending periodic: %w", err)
	}
	defer rows.Close()

	var out []domain.PeriodicNotification
	for rows.Next() {
		p, err := scanPeriodic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan periodic row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PeriodicRepository) GetByIDs(ctx context.Context, ids []string, activeOnly bool) ([]domain.PeriodicNotification, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf("SELECT %s FROM periodic_notifications WHERE id IN (%s)", periodicColumns, strings.Join(placeholders, ", "))
	if activeOnly {
		query += " AND is_active = true"
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get periodic by ids: %w", err)
	}
	defer rows.Close()

	var out []domain.PeriodicNotification
	for rows.Next() {
		p, err := scanPeriodic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan periodic row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PeriodicRepository) GetActive(ctx context.Context) ([]domain.PeriodicNotification, error) {
	query := fmt.Sprintf("SELECT %s FROM periodic_notifications WHERE is_active = true", periodicColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get active periodic: %w", err)
	}
	defer rows.Close()

	var out []domain.PeriodicNotification
	for rows.Next() {
		p, err := scanPeriodic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan periodic row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// IsActive reports a single record's current activation state, used by the
// Former's preflight check for message_type=periodic.
func (r *PeriodicRepository) IsActive(ctx context.Context, id string) (bool, error) {
	p, err := r.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return p.IsActive, nil
}

// AdvanceRun sets last_run_time=now and next_run_time=nextRun after a tick
// dispatches this record's work. Mirrors update_periodic_run_time, keeping
// current_time as both last_run_time and the base passed to cron.next
// (see DESIGN.md open question c).
func (r *PeriodicRepository) AdvanceRun(ctx context.Context, id string, now, nextRun time.Time) error {
	_, err := r.store.Update(ctx, id, map[string]any{
		"last_run_time": now,
		"next_run_time": nextRun,
		"updated_at":    now,
	})
	return err
}
