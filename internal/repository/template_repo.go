package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/pipeline/internal/domain"
)

const templateColumns = "id, name, subject, body, staff_id, created_at, updated_at"

func scanTemplate(row pgx.Row) (domain.Template, error) {
	var t domain.Template
	err := row.Scan(&t.ID, &t.Name, &t.Subject, &t.Body, &t.StaffID, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// TemplateRepository is a thin shell over CRUDStore for Template, per the
// design notes' entity-descriptor pattern. Grounded on
// repositories/sql/template.py, which is itself a bare BaseCRUDRepository
// specialization — template.py adds no entity-specific queries.
type TemplateRepository struct {
	store *CRUDStore[domain.Template]
}

func NewTemplateRepository(pool *pgxpool.Pool) *TemplateRepository {
	return &TemplateRepository{
		store: NewCRUDStore(pool, Descriptor[domain.Template]{
			Table:         "templates",
			SelectColumns: templateColumns,
			InsertColumns: []string{"id", "name", "subject", "body", "staff_id", "created_at", "updated_at"},
			InsertValues: func(t domain.Template) []any {
				return []any{t.ID, t.Name, t.Subject, t.Body, t.StaffID, t.CreatedAt, t.UpdatedAt}
			},
			Scan:       scanTemplate,
			IDOf:       func(t domain.Template) string { return t.ID },
			OnConflict: mapPGConflict,
		}),
	}
}

func (r *TemplateRepository) Create(ctx context.Context, t domain.Template) error {
	return r.store.Create(ctx, t)
}

func (r *TemplateRepository) Get(ctx context.Context, id string) (domain.Template, error) {
	return r.store.Get(ctx, id)
}

func (r *TemplateRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Template, error) {
	return r.store.List(ctx, filter)
}

func (r *TemplateRepository) Update(ctx context.Context, id string, sets map[string]any) (domain.Template, error) {
	return r.store.Update(ctx, id, sets)
}

func (r *TemplateRepository) Delete(ctx context.Context, id string) (bool, error) {
	return r.store.Delete(ctx, id)
}

// marshalContext is a small helper shared by the scheduled/periodic repos
// for the json context column.
func marshalContext(ctx map[string]any) ([]byte, error) {
	if ctx == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(ctx)
	if err != nil {
		return nil, fmt.Errorf("marshal context: %w", err)
	}
	return b, nil
}

func unmarshalContext(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal context: %w", err)
	}
	return out, nil
}
