package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/chess-clubs/models"
	"github.com/lib/pq"
)

var (
	ErrParticipantNotFound = errors.New("participant not found")
	ErrParticipantConflict = errors.New("membership already takes part in this tournament")
	ErrParticipantInvalid  = errors.New("participant references an unknown tournament or membership")
	ErrWinnerConflict      = errors.New("tournament already has a winner")
)

type ParticipantRepository interface {
	Create(ctx context.Context, exec SQLExecutor, p *models.Participant) error
	GetByTournamentAndMembership(ctx context.Context, exec SQLExecutor, tournamentID, membershipID int) (*models.Participant, error)
	// ListByTournament returns all participants in insertion order with their memberships.
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Participant, error)
	// ListSurvivors returns the non-eliminated participants in insertion order.
	ListSurvivors(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Participant, error)
	Count(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	MarkEliminated(ctx context.Context, exec SQLExecutor, ids []int) error
	MarkWon(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) Create(ctx context.Context, exec SQLExecutor, p *models.Participant) error {
	query := `
		INSERT INTO participants (tournament_id, membership_id)
		VALUES ($1, $2)
		RETURNING id, eliminated, won, created_at`

	err := getExecutor(exec, r.db).QueryRowContext(ctx, query, p.TournamentID, p.MembershipID).
		Scan(&p.ID, &p.Eliminated, &p.Won, &p.CreatedAt)
	if err != nil {
		if code, constraint, ok := constraintViolation(err); ok {
			switch {
			case code == pqUniqueViolation && constraint == "participants_tournament_id_membership_id_key":
				return ErrParticipantConflict
			case code == pqForeignKeyViolation:
				return ErrParticipantInvalid
			}
		}
		return fmt.Errorf("failed to create participant: %w", err)
	}
	return nil
}

// participantSelect joins the membership so views can show player names.
const participantSelect = `
	SELECT p.id, p.tournament_id, p.membership_id, p.eliminated, p.won, p.created_at,
		m.id, m.club_id, m.user_id, m.first_name, m.last_name, m.contact_details,
		m.personal_statement, m.bio, m.experience_level, m.member_type, m.created_at
	FROM participants p
	JOIN memberships m ON m.id = p.membership_id`

func scanParticipant(scanner interface{ Scan(...interface{}) error }) (*models.Participant, error) {
	var p models.Participant
	var m models.Membership
	err := scanner.Scan(
		&p.ID, &p.TournamentID, &p.MembershipID, &p.Eliminated, &p.Won, &p.CreatedAt,
		&m.ID, &m.ClubID, &m.UserID, &m.FirstName, &m.LastName, &m.ContactDetails,
		&m.PersonalStatement, &m.Bio, &m.ExperienceLevel, &m.MemberType, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Membership = &m
	return &p, nil
}

func (r *postgresParticipantRepository) getOne(ctx context.Context, exec SQLExecutor, where string, args ...interface{}) (*models.Participant, error) {
	p, err := scanParticipant(getExecutor(exec, r.db).QueryRowContext(ctx, participantSelect+` WHERE `+where, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

func (r *postgresParticipantRepository) GetByTournamentAndMembership(ctx context.Context, exec SQLExecutor, tournamentID, membershipID int) (*models.Participant, error) {
	return r.getOne(ctx, exec, `p.tournament_id = $1 AND p.membership_id = $2`, tournamentID, membershipID)
}

func (r *postgresParticipantRepository) list(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]*models.Participant, error) {
	rows, err := getExecutor(exec, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	participants := make([]*models.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during participant rows iteration: %w", err)
	}
	return participants, nil
}

func (r *postgresParticipantRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Participant, error) {
	return r.list(ctx, exec, participantSelect+` WHERE p.tournament_id = $1 ORDER BY p.id`, tournamentID)
}

func (r *postgresParticipantRepository) ListSurvivors(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Participant, error) {
	return r.list(ctx, exec, participantSelect+` WHERE p.tournament_id = $1 AND NOT p.eliminated ORDER BY p.id`, tournamentID)
}

func (r *postgresParticipantRepository) Count(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	var n int
	err := getExecutor(exec, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participants WHERE tournament_id = $1`, tournamentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants of tournament %d: %w", tournamentID, err)
	}
	return n, nil
}

func (r *postgresParticipantRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := getExecutor(exec, r.db).ExecContext(ctx, `DELETE FROM participants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete participant %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) MarkEliminated(ctx context.Context, exec SQLExecutor, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := getExecutor(exec, r.db).ExecContext(ctx,
		`UPDATE participants SET eliminated = TRUE WHERE id = ANY($1)`, pq.Array(toInt64s(ids)))
	if err != nil {
		return fmt.Errorf("failed to eliminate participants: %w", err)
	}
	return nil
}

func (r *postgresParticipantRepository) MarkWon(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := getExecutor(exec, r.db).ExecContext(ctx,
		`UPDATE participants SET won = TRUE WHERE id = $1 AND NOT eliminated`, id)
	if err != nil {
		if code, constraint, ok := constraintViolation(err); ok &&
			code == pqUniqueViolation && constraint == "participants_one_winner_idx" {
			return ErrWinnerConflict
		}
		return fmt.Errorf("failed to mark participant %d as winner: %w", id, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}
