package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/chess-clubs/models"
)

var (
	ErrMembershipNotFound = errors.New("membership not found")
	ErrMembershipConflict = errors.New("user already has a membership in this club")
	ErrMembershipInvalid  = errors.New("membership references an unknown club or user")
)

type MembershipRepository interface {
	Create(ctx context.Context, exec SQLExecutor, m *models.Membership) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Membership, error)
	GetByClubAndUser(ctx context.Context, clubID, userID int) (*models.Membership, error)
	ListByClub(ctx context.Context, clubID int, includeApplicants bool) ([]*models.Membership, error)
	ListByUser(ctx context.Context, userID int) ([]*models.Membership, error)
	UpdateMemberType(ctx context.Context, exec SQLExecutor, id int, memberType models.MemberType) error
	Delete(ctx context.Context, id int) error
	DeleteByClub(ctx context.Context, exec SQLExecutor, clubID int) error
}

type postgresMembershipRepository struct {
	db *sql.DB
}

func NewPostgresMembershipRepository(db *sql.DB) MembershipRepository {
	return &postgresMembershipRepository{db: db}
}

func (r *postgresMembershipRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Membership) error {
	query := `
		INSERT INTO memberships (
			club_id, user_id, first_name, last_name, contact_details,
			personal_statement, bio, experience_level, member_type
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := getExecutor(exec, r.db).QueryRowContext(ctx, query,
		m.ClubID, m.UserID, m.FirstName, m.LastName, m.ContactDetails,
		m.PersonalStatement, m.Bio, m.ExperienceLevel, m.MemberType,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		if code, constraint, ok := constraintViolation(err); ok {
			switch {
			case code == pqUniqueViolation && constraint == "memberships_club_id_user_id_key":
				return ErrMembershipConflict
			case code == pqForeignKeyViolation:
				return ErrMembershipInvalid
			}
		}
		return fmt.Errorf("failed to create membership: %w", err)
	}
	return nil
}

const membershipColumns = `
	id, club_id, user_id, first_name, last_name, contact_details,
	personal_statement, bio, experience_level, member_type, created_at`

func scanMembership(scanner interface{ Scan(...interface{}) error }) (*models.Membership, error) {
	var m models.Membership
	err := scanner.Scan(
		&m.ID, &m.ClubID, &m.UserID, &m.FirstName, &m.LastName, &m.ContactDetails,
		&m.PersonalStatement, &m.Bio, &m.ExperienceLevel, &m.MemberType, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *postgresMembershipRepository) getOne(ctx context.Context, exec SQLExecutor, where string, args ...interface{}) (*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE ` + where
	m, err := scanMembership(getExecutor(exec, r.db).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

func (r *postgresMembershipRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Membership, error) {
	return r.getOne(ctx, exec, `id = $1`, id)
}

func (r *postgresMembershipRepository) GetByClubAndUser(ctx context.Context, clubID, userID int) (*models.Membership, error) {
	return r.getOne(ctx, nil, `club_id = $1 AND user_id = $2`, clubID, userID)
}

func (r *postgresMembershipRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Membership, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	memberships := make([]*models.Membership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during membership rows iteration: %w", err)
	}
	return memberships, nil
}

// ListByClub returns memberships ordered by role, highest first.
func (r *postgresMembershipRepository) ListByClub(ctx context.Context, clubID int, includeApplicants bool) ([]*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE club_id = $1`
	if !includeApplicants {
		query += ` AND member_type > 0`
	}
	query += ` ORDER BY member_type DESC, last_name, first_name, id`
	return r.list(ctx, query, clubID)
}

func (r *postgresMembershipRepository) ListByUser(ctx context.Context, userID int) ([]*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE user_id = $1 ORDER BY club_id`
	return r.list(ctx, query, userID)
}

func (r *postgresMembershipRepository) UpdateMemberType(ctx context.Context, exec SQLExecutor, id int, memberType models.MemberType) error {
	result, err := getExecutor(exec, r.db).ExecContext(ctx,
		`UPDATE memberships SET member_type = $1 WHERE id = $2`, memberType, id)
	if err != nil {
		return fmt.Errorf("failed to update member type of membership %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMembershipNotFound)
}

func (r *postgresMembershipRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM memberships WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete membership %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMembershipNotFound)
}

func (r *postgresMembershipRepository) DeleteByClub(ctx context.Context, exec SQLExecutor, clubID int) error {
	if _, err := getExecutor(exec, r.db).ExecContext(ctx, `DELETE FROM memberships WHERE club_id = $1`, clubID); err != nil {
		return fmt.Errorf("failed to delete memberships of club %d: %w", clubID, err)
	}
	return nil
}
