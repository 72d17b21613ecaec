package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgEventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) EventRepository {
	return &pgEventRepository{pool: pool}
}

const eventColumns = `id, title, description, start_at, end_at, all_day, group_id, created_by, created_at, updated_at`

func scanEvent(row pgx.Row) (*Event, error) {
	event := &Event{}
	err := row.Scan(
		&event.ID, &event.Title, &event.Description, &event.Start, &event.End, &event.AllDay,
		&event.GroupID, &event.CreatedBy, &event.CreatedAt, &event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (r *pgEventRepository) Create(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO events (id, title, description, start_at, end_at, all_day, group_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	return r.pool.QueryRow(ctx, query,
		event.ID, event.Title, event.Description, event.Start, event.End, event.AllDay,
		event.GroupID, event.CreatedBy,
	).Scan(&event.CreatedAt, &event.UpdatedAt)
}

func (r *pgEventRepository) FindByID(ctx context.Context, id string) (*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	event, err := scanEvent(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return event, err
}

func (r *pgEventRepository) FindByGroupIDs(ctx context.Context, groupIDs []string) ([]*Event, error) {
	events := []*Event{}
	if len(groupIDs) == 0 {
		return events, nil
	}
	query := `SELECT ` + eventColumns + ` FROM events WHERE group_id = ANY($1) ORDER BY start_at, id`
	rows, err := r.pool.Query(ctx, query, groupIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *pgEventRepository) Update(ctx context.Context, event *Event) error {
	query := `
		UPDATE events
		SET title = $2, description = $3, start_at = $4, end_at = $5, all_day = $6, updated_at = $7
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query,
		event.ID, event.Title, event.Description, event.Start, event.End, event.AllDay, event.UpdatedAt,
	)
	return err
}

func (r *pgEventRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM events WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func (r *pgEventRepository) DeleteByGroup(ctx context.Context, groupID string) (int64, error) {
	query := `DELETE FROM events WHERE group_id = $1`
	tag, err := r.pool.Exec(ctx, query, groupID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
