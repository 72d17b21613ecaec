package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Marga-Ghale/group-calendar-backend/internal/membership"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgGroupRepository keeps each group's members and invites as JSONB
// documents on the group row, so a roster change is a single-row write.
type pgGroupRepository struct {
	pool *pgxpool.Pool
}

func NewGroupRepository(pool *pgxpool.Pool) GroupRepository {
	return &pgGroupRepository{pool: pool}
}

const groupColumns = `id, name, color, leader_id, members, invites, created_at, updated_at`

func scanGroup(row pgx.Row) (*Group, error) {
	group := &Group{}
	var members, invites []byte
	if err := row.Scan(
		&group.ID, &group.Name, &group.Color, &group.LeaderID,
		&members, &invites, &group.CreatedAt, &group.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(members, &group.Members); err != nil {
		return nil, fmt.Errorf("decode members of group %s: %w", group.ID, err)
	}
	if err := json.Unmarshal(invites, &group.Invites); err != nil {
		return nil, fmt.Errorf("decode invites of group %s: %w", group.ID, err)
	}
	normalizeGroup(group)
	return group, nil
}

func normalizeGroup(g *Group) {
	if g.Members == nil {
		g.Members = []membership.Member{}
	}
	if g.Invites == nil {
		g.Invites = []membership.Invite{}
	}
}

func encodeRoster(g *Group) ([]byte, []byte, error) {
	normalizeGroup(g)
	members, err := json.Marshal(g.Members)
	if err != nil {
		return nil, nil, err
	}
	invites, err := json.Marshal(g.Invites)
	if err != nil {
		return nil, nil, err
	}
	return members, invites, nil
}

func (r *pgGroupRepository) Create(ctx context.Context, group *Group) error {
	query := `
		INSERT INTO groups (id, name, color, leader_id, members, invites)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	members, invites, err := encodeRoster(group)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, query,
		group.ID, group.Name, group.Color, group.LeaderID, members, invites,
	).Scan(&group.CreatedAt, &group.UpdatedAt)
}

func (r *pgGroupRepository) FindByID(ctx context.Context, id string) (*Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE id = $1`
	group, err := scanGroup(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return group, err
}

func (r *pgGroupRepository) FindByIDs(ctx context.Context, ids []string) ([]*Group, error) {
	groups := []*Group{}
	if len(ids) == 0 {
		return groups, nil
	}
	query := `SELECT ` + groupColumns + ` FROM groups WHERE id = ANY($1) ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

func (r *pgGroupRepository) Update(ctx context.Context, group *Group) error {
	query := `
		UPDATE groups SET name = $2, color = $3, members = $4, invites = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	members, invites, err := encodeRoster(group)
	if err != nil {
		return err
	}
	err = r.pool.QueryRow(ctx, query, group.ID, group.Name, group.Color, members, invites).
		Scan(&group.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil
	}
	return err
}

func (r *pgGroupRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM groups WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}
