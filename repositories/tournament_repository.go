package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/chess-clubs/models"
	"github.com/lib/pq"
)

var (
	ErrTournamentNotFound   = errors.New("tournament not found")
	ErrTournamentInvalidRef = errors.New("tournament references an unknown club or organiser")
	ErrCoOrganiserConflict  = errors.New("membership is already a co-organiser of this tournament")
	ErrCoOrganiserNotFound  = errors.New("membership is not a co-organiser of this tournament")
	ErrTournamentInvalid    = errors.New("tournament violates a table constraint")
)

type TournamentRepository interface {
	Create(ctx context.Context, t *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	// LockByID loads the tournament and holds a row lock on it until exec's
	// transaction ends. exec must be a transaction.
	LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	ListByClub(ctx context.Context, clubID int) ([]*models.Tournament, error)
	ListInvolving(ctx context.Context, clubID, membershipID int) ([]*models.Tournament, error)
	ListJoinable(ctx context.Context, clubID, membershipID int, now time.Time) ([]*models.Tournament, error)
	Close(ctx context.Context, exec SQLExecutor, id int) error

	AddCoOrganiser(ctx context.Context, exec SQLExecutor, tournamentID, membershipID int) error
	RemoveCoOrganiser(ctx context.Context, exec SQLExecutor, tournamentID, membershipID int) error
	ListCoOrganisers(ctx context.Context, tournamentID int) ([]*models.Membership, error)

	// DeleteByClub removes every tournament of the club together with its
	// bracket rows, children first.
	DeleteByClub(ctx context.Context, exec SQLExecutor, clubID int) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (
			club_id, organiser_id, name, description, deadline, participants_limit, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		t.ClubID, t.OrganiserID, t.Name, t.Description, t.Deadline, t.ParticipantsLimit, t.IsActive,
	).Scan(&t.ID, &t.CreatedAt)
	return r.handleTournamentError(err)
}

const tournamentSelect = `
	SELECT t.id, t.club_id, t.organiser_id, t.name, t.description, t.deadline,
		t.participants_limit, t.is_active, t.created_at,
		ARRAY(SELECT co.membership_id FROM tournament_co_organisers co
			WHERE co.tournament_id = t.id ORDER BY co.membership_id),
		(SELECT COUNT(*) FROM participants p WHERE p.tournament_id = t.id)
	FROM tournaments t`

func scanTournament(scanner interface{ Scan(...interface{}) error }) (*models.Tournament, error) {
	var t models.Tournament
	var coOrganisers []int64
	err := scanner.Scan(
		&t.ID, &t.ClubID, &t.OrganiserID, &t.Name, &t.Description, &t.Deadline,
		&t.ParticipantsLimit, &t.IsActive, &t.CreatedAt,
		pq.Array(&coOrganisers), &t.TotalParticipants,
	)
	if err != nil {
		return nil, err
	}
	t.CoOrganiserIDs = toInts(coOrganisers)
	return &t, nil
}

func (r *postgresTournamentRepository) getOne(ctx context.Context, exec SQLExecutor, query string, id int) (*models.Tournament, error) {
	t, err := scanTournament(getExecutor(exec, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	return r.getOne(ctx, exec, tournamentSelect+` WHERE t.id = $1`, id)
}

func (r *postgresTournamentRepository) LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	return r.getOne(ctx, exec, tournamentSelect+` WHERE t.id = $1 FOR UPDATE OF t`, id)
}

func (r *postgresTournamentRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Tournament, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]*models.Tournament, 0)
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tournament: %w", err)
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament rows iteration: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) ListByClub(ctx context.Context, clubID int) ([]*models.Tournament, error) {
	return r.list(ctx, tournamentSelect+` WHERE t.club_id = $1 ORDER BY t.is_active DESC, t.deadline DESC, t.id`, clubID)
}

// ListInvolving returns tournaments the membership organises, co-organises or plays in.
func (r *postgresTournamentRepository) ListInvolving(ctx context.Context, clubID, membershipID int) ([]*models.Tournament, error) {
	query := tournamentSelect + `
		WHERE t.club_id = $1 AND (
			t.organiser_id = $2
			OR EXISTS (SELECT 1 FROM tournament_co_organisers co WHERE co.tournament_id = t.id AND co.membership_id = $2)
			OR EXISTS (SELECT 1 FROM participants p WHERE p.tournament_id = t.id AND p.membership_id = $2)
		)
		ORDER BY t.is_active DESC, t.deadline DESC, t.id`
	return r.list(ctx, query, clubID, membershipID)
}

// ListJoinable returns active tournaments with free places whose deadline has
// not passed and which the membership is not involved in yet.
func (r *postgresTournamentRepository) ListJoinable(ctx context.Context, clubID, membershipID int, now time.Time) ([]*models.Tournament, error) {
	query := tournamentSelect + `
		WHERE t.club_id = $1 AND t.is_active AND t.deadline > $3
			AND t.organiser_id <> $2
			AND NOT EXISTS (SELECT 1 FROM tournament_co_organisers co WHERE co.tournament_id = t.id AND co.membership_id = $2)
			AND NOT EXISTS (SELECT 1 FROM participants p WHERE p.tournament_id = t.id AND p.membership_id = $2)
			AND (SELECT COUNT(*) FROM participants p WHERE p.tournament_id = t.id) < t.participants_limit
		ORDER BY t.deadline, t.id`
	return r.list(ctx, query, clubID, membershipID, now)
}

func (r *postgresTournamentRepository) Close(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := getExecutor(exec, r.db).ExecContext(ctx, `UPDATE tournaments SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to close tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) AddCoOrganiser(ctx context.Context, exec SQLExecutor, tournamentID, membershipID int) error {
	_, err := getExecutor(exec, r.db).ExecContext(ctx,
		`INSERT INTO tournament_co_organisers (tournament_id, membership_id) VALUES ($1, $2)`,
		tournamentID, membershipID)
	if err != nil {
		if code, constraint, ok := constraintViolation(err); ok {
			switch {
			case code == pqUniqueViolation && constraint == "tournament_co_organisers_pkey":
				return ErrCoOrganiserConflict
			case code == pqForeignKeyViolation:
				return ErrTournamentInvalidRef
			}
		}
		return fmt.Errorf("failed to add co-organiser: %w", err)
	}
	return nil
}

func (r *postgresTournamentRepository) RemoveCoOrganiser(ctx context.Context, exec SQLExecutor, tournamentID, membershipID int) error {
	result, err := getExecutor(exec, r.db).ExecContext(ctx,
		`DELETE FROM tournament_co_organisers WHERE tournament_id = $1 AND membership_id = $2`,
		tournamentID, membershipID)
	if err != nil {
		return fmt.Errorf("failed to remove co-organiser: %w", err)
	}
	return checkAffectedRows(result, ErrCoOrganiserNotFound)
}

func (r *postgresTournamentRepository) ListCoOrganisers(ctx context.Context, tournamentID int) ([]*models.Membership, error) {
	query := `
		SELECT m.id, m.club_id, m.user_id, m.first_name, m.last_name, m.contact_details,
			m.personal_statement, m.bio, m.experience_level, m.member_type, m.created_at
		FROM tournament_co_organisers co
		JOIN memberships m ON m.id = co.membership_id
		WHERE co.tournament_id = $1
		ORDER BY m.last_name, m.first_name, m.id`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list co-organisers: %w", err)
	}
	defer rows.Close()

	memberships := make([]*models.Membership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan co-organiser: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during co-organiser rows iteration: %w", err)
	}
	return memberships, nil
}

func (r *postgresTournamentRepository) DeleteByClub(ctx context.Context, exec SQLExecutor, clubID int) error {
	executor := getExecutor(exec, r.db)
	// Порядок важен: сначала зависимые таблицы.
	statements := []string{
		`DELETE FROM matches WHERE tournament_id IN (SELECT id FROM tournaments WHERE club_id = $1)`,
		`DELETE FROM groupings WHERE group_id IN (
			SELECT g.id FROM groups g JOIN tournaments t ON t.id = g.tournament_id WHERE t.club_id = $1)`,
		`DELETE FROM groups WHERE tournament_id IN (SELECT id FROM tournaments WHERE club_id = $1)`,
		`DELETE FROM participants WHERE tournament_id IN (SELECT id FROM tournaments WHERE club_id = $1)`,
		`DELETE FROM tournament_co_organisers WHERE tournament_id IN (SELECT id FROM tournaments WHERE club_id = $1)`,
		`DELETE FROM tournaments WHERE club_id = $1`,
	}
	for _, stmt := range statements {
		if _, err := executor.ExecContext(ctx, stmt, clubID); err != nil {
			return fmt.Errorf("failed to delete tournaments of club %d: %w", clubID, err)
		}
	}
	return nil
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if code, _, ok := constraintViolation(err); ok {
		switch code {
		case pqForeignKeyViolation:
			return ErrTournamentInvalidRef
		case pqCheckViolation:
			return ErrTournamentInvalid
		}
	}
	return fmt.Errorf("failed to create tournament: %w", err)
}
