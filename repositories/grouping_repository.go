package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/chess-clubs/models"
)

var (
	ErrGroupingNotFound = errors.New("grouping not found")
	ErrGroupingConflict = errors.New("participant is already placed in this group")
	ErrGroupFull        = errors.New("group is already at capacity")
)

type GroupingRepository interface {
	// Create inserts the grouping unless the group is already full.
	Create(ctx context.Context, exec SQLExecutor, g *models.Grouping) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Grouping, error)
	// ListByGroup returns groupings in insertion order.
	ListByGroup(ctx context.Context, exec SQLExecutor, groupID int) ([]*models.Grouping, error)
	AddPoints(ctx context.Context, exec SQLExecutor, id int, delta float64) error
}

type postgresGroupingRepository struct {
	db *sql.DB
}

func NewPostgresGroupingRepository(db *sql.DB) GroupingRepository {
	return &postgresGroupingRepository{db: db}
}

func (r *postgresGroupingRepository) Create(ctx context.Context, exec SQLExecutor, g *models.Grouping) error {
	query := `
		INSERT INTO groupings (group_id, participant_id, points_in_group)
		SELECT $1, $2, 0
		WHERE (SELECT COUNT(*) FROM groupings WHERE group_id = $1) < (SELECT capacity FROM groups WHERE id = $1)
		RETURNING id, points_in_group`

	err := getExecutor(exec, r.db).QueryRowContext(ctx, query, g.GroupID, g.ParticipantID).Scan(&g.ID, &g.Points)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrGroupFull
		}
		if code, constraint, ok := constraintViolation(err); ok &&
			code == pqUniqueViolation && constraint == "groupings_group_id_participant_id_key" {
			return ErrGroupingConflict
		}
		return fmt.Errorf("failed to create grouping: %w", err)
	}
	return nil
}

func (r *postgresGroupingRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Grouping, error) {
	var g models.Grouping
	err := getExecutor(exec, r.db).QueryRowContext(ctx,
		`SELECT id, group_id, participant_id, points_in_group FROM groupings WHERE id = $1`, id,
	).Scan(&g.ID, &g.GroupID, &g.ParticipantID, &g.Points)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupingNotFound
		}
		return nil, fmt.Errorf("failed to get grouping %d: %w", id, err)
	}
	return &g, nil
}

func (r *postgresGroupingRepository) ListByGroup(ctx context.Context, exec SQLExecutor, groupID int) ([]*models.Grouping, error) {
	rows, err := getExecutor(exec, r.db).QueryContext(ctx,
		`SELECT id, group_id, participant_id, points_in_group FROM groupings WHERE group_id = $1 ORDER BY id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groupings of group %d: %w", groupID, err)
	}
	defer rows.Close()

	groupings := make([]*models.Grouping, 0)
	for rows.Next() {
		var g models.Grouping
		if err := rows.Scan(&g.ID, &g.GroupID, &g.ParticipantID, &g.Points); err != nil {
			return nil, fmt.Errorf("failed to scan grouping: %w", err)
		}
		groupings = append(groupings, &g)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during grouping rows iteration: %w", err)
	}
	return groupings, nil
}

func (r *postgresGroupingRepository) AddPoints(ctx context.Context, exec SQLExecutor, id int, delta float64) error {
	result, err := getExecutor(exec, r.db).ExecContext(ctx,
		`UPDATE groupings SET points_in_group = points_in_group + $1 WHERE id = $2`, delta, id)
	if err != nil {
		return fmt.Errorf("failed to add points to grouping %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrGroupingNotFound)
}
