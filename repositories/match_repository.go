package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/chess-clubs/models"
)

var (
	ErrMatchNotFound         = errors.New("match not found")
	ErrMatchPairConflict     = errors.New("these players already face each other in this group")
	ErrMatchAlreadyConcluded = errors.New("match already has a conclusion")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, m *models.Match) error
	// LockByID loads the match and holds a row lock on it until exec's transaction ends.
	LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListByGroup(ctx context.Context, exec SQLExecutor, groupID int) ([]*models.Match, error)
	// CountUnconcluded counts open matches in the tournament's active groups.
	CountUnconcluded(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
	// ConcludedBetween counts concluded matches the two participants played
	// against each other in the tournament, in any group.
	ConcludedBetween(ctx context.Context, exec SQLExecutor, tournamentID, participantA, participantB int) (int, error)
	// SetConclusion attaches a conclusion to an open match.
	SetConclusion(ctx context.Context, exec SQLExecutor, id int, conclusion models.Conclusion) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	query := `
		INSERT INTO matches (tournament_id, group_id, player1_id, player2_id, conclusion)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	var conclusion interface{}
	if m.Conclusion != nil {
		conclusion = int(*m.Conclusion)
	}
	err := getExecutor(exec, r.db).QueryRowContext(ctx, query,
		m.TournamentID, m.GroupID, m.Player1ID, m.Player2ID, conclusion,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		if code, constraint, ok := constraintViolation(err); ok &&
			code == pqUniqueViolation && constraint == "matches_group_pair_idx" {
			return ErrMatchPairConflict
		}
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

const matchColumns = `id, tournament_id, group_id, player1_id, player2_id, conclusion, created_at`

func scanMatch(scanner interface{ Scan(...interface{}) error }) (*models.Match, error) {
	var m models.Match
	var conclusion sql.NullInt16
	if err := scanner.Scan(&m.ID, &m.TournamentID, &m.GroupID, &m.Player1ID, &m.Player2ID, &conclusion, &m.CreatedAt); err != nil {
		return nil, err
	}
	if conclusion.Valid {
		c := models.Conclusion(conclusion.Int16)
		m.Conclusion = &c
	}
	return &m, nil
}

func (r *postgresMatchRepository) LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	m, err := scanMatch(getExecutor(exec, r.db).QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByGroup(ctx context.Context, exec SQLExecutor, groupID int) ([]*models.Match, error) {
	rows, err := getExecutor(exec, r.db).QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE group_id = $1 ORDER BY id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches of group %d: %w", groupID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) CountUnconcluded(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM matches m
		JOIN groups g ON g.id = m.group_id
		WHERE m.tournament_id = $1 AND g.is_active AND m.conclusion IS NULL`

	var n int
	if err := getExecutor(exec, r.db).QueryRowContext(ctx, query, tournamentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count open matches of tournament %d: %w", tournamentID, err)
	}
	return n, nil
}

func (r *postgresMatchRepository) ConcludedBetween(ctx context.Context, exec SQLExecutor, tournamentID, participantA, participantB int) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM matches m
		JOIN groupings g1 ON g1.id = m.player1_id
		JOIN groupings g2 ON g2.id = m.player2_id
		WHERE m.tournament_id = $1 AND m.conclusion IS NOT NULL
			AND ((g1.participant_id = $2 AND g2.participant_id = $3)
				OR (g1.participant_id = $3 AND g2.participant_id = $2))`

	var n int
	if err := getExecutor(exec, r.db).QueryRowContext(ctx, query, tournamentID, participantA, participantB).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count matches between participants %d and %d: %w", participantA, participantB, err)
	}
	return n, nil
}

func (r *postgresMatchRepository) SetConclusion(ctx context.Context, exec SQLExecutor, id int, conclusion models.Conclusion) error {
	result, err := getExecutor(exec, r.db).ExecContext(ctx,
		`UPDATE matches SET conclusion = $1 WHERE id = $2 AND conclusion IS NULL`, int(conclusion), id)
	if err != nil {
		return fmt.Errorf("failed to conclude match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchAlreadyConcluded)
}
