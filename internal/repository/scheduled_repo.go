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

const scheduledColumns = "id, staff_id, template_id, channel_type, event_type, scheduled_time, is_sent, " +
	"context, subscriber_query_type, subscriber_query_params, created_at, updated_at"

func scanScheduled(row pgx.Row) (domain.ScheduledNotification, error) {
	var s domain.ScheduledNotification
	var ctxRaw, paramsRaw []byte
	err := row.Scan(&s.ID, &s.StaffID, &s.TemplateID, &s.ChannelType, &s.EventType, &s.ScheduledTime, &s.IsSent,
		&ctxRaw, &s.SubscriberQueryType, &paramsRaw, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return s, err
	}
	s.Context, err = unmarshalContext(ctxRaw)
	if err != nil {
		return s, err
	}
	if len(paramsRaw) > 0 {
		s.SubscriberQueryParams, err = unmarshalContext(paramsRaw)
		if err != nil {
			return s, err
		}
	}
	return s, nil
}

// ScheduledRepository is a thin shell over CRUDStore plus the two queries
// the Scheduler needs: "due now" selection and id-batch lookup. Grounded
// on repositories/sql/scheduled_notification.py's get_pending/get_by_ids.
type ScheduledRepository struct {
	pool  *pgxpool.Pool
	store *CRUDStore[domain.ScheduledNotification]
}

func NewScheduledRepository(pool *pgxpool.Pool) *ScheduledRepository {
	return &ScheduledRepository{
		pool: pool,
		store: NewCRUDStore(pool, Descriptor[domain.ScheduledNotification]{
			Table:         "scheduled_notifications",
			SelectColumns: scheduledColumns,
			InsertColumns: []string{"id", "staff_id", "template_id", "channel_type", "event_type", "scheduled_time",
				"is_sent", "context", "subscriber_query_type", "subscriber_query_params", "created_at", "updated_at"},
			InsertValues: func(s domain.ScheduledNotification) []any {
				ctxJSON, _ := marshalContext(s.Context)
				paramsJSON, _ := marshalContext(s.SubscriberQueryParams)
				return []any{s.ID, s.StaffID, s.TemplateID, s.ChannelType, s.EventType, s.ScheduledTime,
					s.IsSent, ctxJSON, s.SubscriberQueryType, paramsJSON, s.CreatedAt, s.UpdatedAt}
			},
			Scan:       scanScheduled,
			IDOf:       func(s domain.ScheduledNotification) string { return s.ID },
			OnConflict: mapPGConflict,
		}),
	}
}

func (r *ScheduledRepository) Create(ctx context.Context, s domain.ScheduledNotification) error {
	return r.store.Create(ctx, s)
}

func (r *ScheduledRepository) Get(ctx context.Context, id string) (domain.ScheduledNotification, error) {
	return r.store.Get(ctx, id)
}

func (r *ScheduledRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.ScheduledNotification, error) {
	return r.store.List(ctx, filter)
}

func (r *ScheduledRepository) Update(ctx context.Context, id string, sets map[string]any) (domain.ScheduledNotification, error) {
	return r.store.Update(ctx, id, sets)
}

func (r *ScheduledRepository) Delete(ctx context.Context, id string) (bool, error) {
	return r.store.Delete(ctx, id)
}

// MarkSent flips is_sent monotonically false->true, per the record's invariant.
func (r *ScheduledRepository) MarkSent(ctx context.Context, id string) error {
	_, err := r.store.Update(ctx, id, map[string]any{"is_sent": true, "updated_at": time.Now().UTC()})
	return err
}

// GetPending returns unsent records whose scheduled_time<=now, ordered by
// scheduled_time ascending with id ascending as a deterministic tiebreak.
func (r *ScheduledRepository) GetPending(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledNotification, error) {
	// NULLIF($2, 0) turns a non-positive limit into an unbounded LIMIT NULL
	// rather than Postgres's literal (and here wrong) "LIMIT 0 -> 0 rows".
	if limit < 0 {
		limit = 0
	}
	query := fmt.Sprintf(`SELECT %s FROM scheduled_notifications
		WHERE is_sent = false AND scheduled_time <= $1
		ORDER BY scheduled_time ASC, id ASC
		LIMIT NULLIF($2, 0)`, scheduledColumns)

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending scheduled: %w", err)
	}
	defer rows.Close()

	var out []domain.ScheduledNotification
	for rows.Next() {
		s, err := scanScheduled(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetByIDs filters out deactivated/sent records unless activeOnly is false.
func (r *ScheduledRepository) GetByIDs(ctx context.Context, ids []string, activeOnly bool) ([]domain.ScheduledNotification, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf("SELECT %s FROM scheduled_notifications WHERE id IN (%s)", scheduledColumns, strings.Join(placeholders, ", "))
	if activeOnly {
		query += " AND is_sent = false"
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get scheduled by ids: %w", err)
	}
	defer rows.Close()

	var out []domain.ScheduledNotification
	for rows.Next() {
		s, err := scanScheduled(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
