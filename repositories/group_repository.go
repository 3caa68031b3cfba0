package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/chess-clubs/models"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrGroupInvalid  = errors.New("group violates stage or capacity constraints")
)

type GroupRepository interface {
	Create(ctx context.Context, exec SQLExecutor, g *models.Group) error
	ListActive(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Group, error)
	Deactivate(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresGroupRepository struct {
	db *sql.DB
}

func NewPostgresGroupRepository(db *sql.DB) GroupRepository {
	return &postgresGroupRepository{db: db}
}

func (r *postgresGroupRepository) Create(ctx context.Context, exec SQLExecutor, g *models.Group) error {
	query := `
		INSERT INTO groups (tournament_id, stage, number, capacity, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, is_active, created_at`

	err := getExecutor(exec, r.db).QueryRowContext(ctx, query, g.TournamentID, g.Stage, g.Number, g.Capacity).
		Scan(&g.ID, &g.IsActive, &g.CreatedAt)
	if err != nil {
		if code, _, ok := constraintViolation(err); ok && code == pqCheckViolation {
			return ErrGroupInvalid
		}
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

func (r *postgresGroupRepository) ListActive(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Group, error) {
	query := `
		SELECT id, tournament_id, stage, number, capacity, is_active, created_at
		FROM groups
		WHERE tournament_id = $1 AND is_active
		ORDER BY id`

	rows, err := getExecutor(exec, r.db).QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active groups: %w", err)
	}
	defer rows.Close()

	groups := make([]*models.Group, 0)
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.TournamentID, &g.Stage, &g.Number, &g.Capacity, &g.IsActive, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, &g)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during group rows iteration: %w", err)
	}
	return groups, nil
}

func (r *postgresGroupRepository) Deactivate(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := getExecutor(exec, r.db).ExecContext(ctx, `UPDATE groups SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate group %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrGroupNotFound)
}
