package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/chess-clubs/models"
)

var (
	ErrClubNotFound     = errors.New("club not found")
	ErrClubNameConflict = errors.New("club name already taken")
)

type ClubRepository interface {
	Create(ctx context.Context, exec SQLExecutor, club *models.Club) error
	GetByID(ctx context.Context, id int) (*models.Club, error)
	List(ctx context.Context) ([]*models.Club, error)
	UpdateLogoKey(ctx context.Context, clubID int, logoKey *string) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresClubRepository struct {
	db *sql.DB
}

func NewPostgresClubRepository(db *sql.DB) ClubRepository {
	return &postgresClubRepository{db: db}
}

func (r *postgresClubRepository) Create(ctx context.Context, exec SQLExecutor, c *models.Club) error {
	query := `
		INSERT INTO clubs (name, location, description, logo_key)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := getExecutor(exec, r.db).QueryRowContext(ctx, query,
		c.Name, c.Location, c.Description, c.LogoKey,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if code, constraint, ok := constraintViolation(err); ok &&
			code == pqUniqueViolation && constraint == "clubs_name_key" {
			return ErrClubNameConflict
		}
		return fmt.Errorf("failed to create club: %w", err)
	}
	return nil
}

// Applicants are not counted as members.
const clubSelect = `
	SELECT c.id, c.name, c.location, c.description, c.logo_key, c.created_at,
		(SELECT COUNT(*) FROM memberships m WHERE m.club_id = c.id AND m.member_type > 0)
	FROM clubs c`

func scanClub(scanner interface{ Scan(...interface{}) error }) (*models.Club, error) {
	var c models.Club
	if err := scanner.Scan(&c.ID, &c.Name, &c.Location, &c.Description, &c.LogoKey, &c.CreatedAt, &c.TotalMembers); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *postgresClubRepository) GetByID(ctx context.Context, id int) (*models.Club, error) {
	c, err := scanClub(r.db.QueryRowContext(ctx, clubSelect+` WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClubNotFound
		}
		return nil, fmt.Errorf("failed to get club %d: %w", id, err)
	}
	return c, nil
}

func (r *postgresClubRepository) List(ctx context.Context) ([]*models.Club, error) {
	rows, err := r.db.QueryContext(ctx, clubSelect+` ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clubs: %w", err)
	}
	defer rows.Close()

	clubs := make([]*models.Club, 0)
	for rows.Next() {
		c, err := scanClub(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan club: %w", err)
		}
		clubs = append(clubs, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during club rows iteration: %w", err)
	}
	return clubs, nil
}

func (r *postgresClubRepository) UpdateLogoKey(ctx context.Context, clubID int, logoKey *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE clubs SET logo_key = $1 WHERE id = $2`, logoKey, clubID)
	if err != nil {
		return fmt.Errorf("failed to update club logo key: %w", err)
	}
	return checkAffectedRows(result, ErrClubNotFound)
}

func (r *postgresClubRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := getExecutor(exec, r.db).ExecContext(ctx, `DELETE FROM clubs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete club %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrClubNotFound)
}
