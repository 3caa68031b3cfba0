package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/chess-clubs/models"
	"github.com/Dosada05/chess-clubs/repositories"
	"go.uber.org/zap"
)

type TournamentService interface {
	CreateTournament(ctx context.Context, userID, clubID int, input CreateTournamentInput) (*models.Tournament, error)
	GetBracket(ctx context.Context, userID, tournamentID int) (*BracketView, error)
	ListClubTournaments(ctx context.Context, userID, clubID int) ([]*models.Tournament, error)
	ListJoinable(ctx context.Context, userID, clubID int) ([]*models.Tournament, error)
	ListMine(ctx context.Context, userID, clubID int) ([]*models.Tournament, error)

	Join(ctx context.Context, userID, tournamentID int) (*models.Participant, error)
	Leave(ctx context.Context, userID, tournamentID int) error

	AddCoOrganiser(ctx context.Context, userID, tournamentID, membershipID int) error
	RemoveCoOrganiser(ctx context.Context, userID, tournamentID, membershipID int) error
	ListCoOrganisers(ctx context.Context, userID, tournamentID int) ([]*models.Membership, error)

	// ActorFor resolves the caller's membership in the tournament's club.
	ActorFor(ctx context.Context, userID, tournamentID int) (*models.Membership, error)
}

type CreateTournamentInput struct {
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Deadline          time.Time `json:"deadline"`
	ParticipantsLimit int       `json:"participants_limit"`
}

// BracketViewCache stores serialized bracket views per tournament.
// Invalidate bumps an epoch; SetIfEpoch drops writes loaded under an older one.
type BracketViewCache interface {
	Get(ctx context.Context, tournamentID int) ([]byte, bool, error)
	Epoch(ctx context.Context, tournamentID int) (int64, error)
	SetIfEpoch(ctx context.Context, tournamentID int, epoch int64, data []byte) (bool, error)
	Invalidate(ctx context.Context, tournamentID int) error
}

type tournamentService struct {
	tx              repositories.Transactor
	tournamentRepo  repositories.TournamentRepository
	membershipRepo  repositories.MembershipRepository
	participantRepo repositories.ParticipantRepository
	groupRepo       repositories.GroupRepository
	groupingRepo    repositories.GroupingRepository
	matchRepo       repositories.MatchRepository
	cache           BracketViewCache
	logger          *zap.Logger
	now             func() time.Time
}

type TournamentServiceDeps struct {
	Tx              repositories.Transactor
	TournamentRepo  repositories.TournamentRepository
	MembershipRepo  repositories.MembershipRepository
	ParticipantRepo repositories.ParticipantRepository
	GroupRepo       repositories.GroupRepository
	GroupingRepo    repositories.GroupingRepository
	MatchRepo       repositories.MatchRepository
	// Cache is optional.
	Cache  BracketViewCache
	Logger *zap.Logger
	Now    func() time.Time
}

func NewTournamentService(deps TournamentServiceDeps) TournamentService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &tournamentService{
		tx:              deps.Tx,
		tournamentRepo:  deps.TournamentRepo,
		membershipRepo:  deps.MembershipRepo,
		participantRepo: deps.ParticipantRepo,
		groupRepo:       deps.GroupRepo,
		groupingRepo:    deps.GroupingRepo,
		matchRepo:       deps.MatchRepo,
		cache:           deps.Cache,
		logger:          deps.Logger,
		now:             now,
	}
}

func (s *tournamentService) CreateTournament(ctx context.Context, userID, clubID int, input CreateTournamentInput) (*models.Tournament, error) {
	organiser, err := membershipIn(ctx, s.membershipRepo, clubID, userID)
	if err != nil {
		return nil, err
	}
	if !organiser.MemberType.CanOrganise() {
		return nil, ErrForbiddenOperation
	}

	t := &models.Tournament{
		ClubID:            clubID,
		OrganiserID:       organiser.ID,
		Name:              input.Name,
		Description:       input.Description,
		Deadline:          input.Deadline,
		ParticipantsLimit: input.ParticipantsLimit,
		IsActive:          true,
	}
	if err := t.Validate(organiser, s.now()); err != nil {
		return nil, validationError(err)
	}
	if err := s.tournamentRepo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	s.logger.Info("tournament created",
		zap.Int("tournament_id", t.ID), zap.Int("club_id", clubID), zap.Int("organiser_id", organiser.ID))
	return t, nil
}

func (s *tournamentService) getTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
	if err != nil {
		return nil, notFound(err, repositories.ErrTournamentNotFound, ErrTournamentNotFound, "failed to get tournament")
	}
	return t, nil
}

func (s *tournamentService) ActorFor(ctx context.Context, userID, tournamentID int) (*models.Membership, error) {
	t, err := s.getTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	return membershipIn(ctx, s.membershipRepo, t.ClubID, userID)
}

func (s *tournamentService) ListClubTournaments(ctx context.Context, userID, clubID int) ([]*models.Tournament, error) {
	if _, err := activeMembershipIn(ctx, s.membershipRepo, clubID, userID); err != nil {
		return nil, err
	}
	tournaments, err := s.tournamentRepo.ListByClub(ctx, clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments of club %d: %w", clubID, err)
	}
	return tournaments, nil
}

func (s *tournamentService) ListJoinable(ctx context.Context, userID, clubID int) ([]*models.Tournament, error) {
	m, err := activeMembershipIn(ctx, s.membershipRepo, clubID, userID)
	if err != nil {
		return nil, err
	}
	tournaments, err := s.tournamentRepo.ListJoinable(ctx, clubID, m.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list joinable tournaments: %w", err)
	}
	return tournaments, nil
}

func (s *tournamentService) ListMine(ctx context.Context, userID, clubID int) ([]*models.Tournament, error) {
	m, err := activeMembershipIn(ctx, s.membershipRepo, clubID, userID)
	if err != nil {
		return nil, err
	}
	tournaments, err := s.tournamentRepo.ListInvolving(ctx, clubID, m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments of membership %d: %w", m.ID, err)
	}
	return tournaments, nil
}

// Join enters the caller into the tournament. The tournament row is locked so
// concurrent joins cannot overfill it.
func (s *tournamentService) Join(ctx context.Context, userID, tournamentID int) (*models.Participant, error) {
	actor, err := s.ActorFor(ctx, userID, tournamentID)
	if err != nil {
		return nil, err
	}

	var participant *models.Participant
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.lockTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if err := models.ValidateParticipant(t, actor); err != nil {
			if errors.Is(err, models.ErrApplicantNotAllowed) {
				return ErrForbiddenOperation
			}
			return validationError(err)
		}
		if !t.IsActive {
			return ErrTournamentClosed
		}
		if t.IsOrganisedBy(actor.ID) {
			return ErrAlreadyInTournament
		}
		if t.PassedDeadline(s.now()) {
			return ErrDeadlinePassed
		}

		count, err := s.participantRepo.Count(ctx, exec, t.ID)
		if err != nil {
			return err
		}
		if count >= t.ParticipantsLimit {
			return ErrTournamentFull
		}

		participant = &models.Participant{TournamentID: t.ID, MembershipID: actor.ID}
		if err := s.participantRepo.Create(ctx, exec, participant); err != nil {
			if errors.Is(err, repositories.ErrParticipantConflict) {
				return ErrAlreadyInTournament
			}
			return err
		}
		participant.Membership = actor
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, tournamentID)
	return participant, nil
}

// Leave withdraws the caller. A co-organiser can step down at any time, a
// participant only until the join deadline.
func (s *tournamentService) Leave(ctx context.Context, userID, tournamentID int) error {
	left := false
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.lockTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		actor, err := membershipIn(ctx, s.membershipRepo, t.ClubID, userID)
		if err != nil {
			return err
		}

		if t.OrganiserID != actor.ID && t.IsOrganisedBy(actor.ID) {
			if err := s.tournamentRepo.RemoveCoOrganiser(ctx, exec, t.ID, actor.ID); err != nil {
				return notFound(err, repositories.ErrCoOrganiserNotFound, ErrNotFound, "failed to leave tournament")
			}
			return nil
		}

		p, err := s.participantRepo.GetByTournamentAndMembership(ctx, exec, t.ID, actor.ID)
		if err != nil {
			return notFound(err, repositories.ErrParticipantNotFound, ErrParticipantNotFound, "failed to leave tournament")
		}
		if t.PassedDeadline(s.now()) {
			return ErrDeadlinePassed
		}
		if err := s.participantRepo.Delete(ctx, exec, p.ID); err != nil {
			return notFound(err, repositories.ErrParticipantNotFound, ErrParticipantNotFound, "failed to leave tournament")
		}
		left = true
		return nil
	})
	if err != nil {
		return err
	}

	if left {
		s.invalidate(ctx, tournamentID)
	}
	return nil
}

// lockTournament takes the tournament row lock for the rest of the transaction.
func (s *tournamentService) lockTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.LockByID(ctx, exec, tournamentID)
	if err != nil {
		return nil, notFound(err, repositories.ErrTournamentNotFound, ErrTournamentNotFound, "failed to lock tournament")
	}
	return t, nil
}

// organiserOf loads an active tournament that the caller organises.
func (s *tournamentService) organiserOf(ctx context.Context, userID, tournamentID int) (*models.Tournament, *models.Membership, error) {
	t, err := s.getTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, nil, err
	}
	actor, err := s.requireOrganiser(ctx, t, userID)
	if err != nil {
		return nil, nil, err
	}
	return t, actor, nil
}

func (s *tournamentService) requireOrganiser(ctx context.Context, t *models.Tournament, userID int) (*models.Membership, error) {
	actor, err := membershipIn(ctx, s.membershipRepo, t.ClubID, userID)
	if err != nil {
		return nil, err
	}
	if t.OrganiserID != actor.ID {
		return nil, ErrForbiddenOperation
	}
	if !t.IsActive {
		return nil, ErrTournamentClosed
	}
	return actor, nil
}

// AddCoOrganiser lets the organiser share the tournament with an officer who
// is not already involved in it. Runs under the tournament lock so it cannot
// interleave with the officer joining.
func (s *tournamentService) AddCoOrganiser(ctx context.Context, userID, tournamentID, membershipID int) error {
	return s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.lockTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if _, err := s.requireOrganiser(ctx, t, userID); err != nil {
			return err
		}

		m, err := s.membershipRepo.GetByID(ctx, exec, membershipID)
		if err != nil {
			return notFound(err, repositories.ErrMembershipNotFound, ErrMembershipNotFound, "failed to get membership")
		}
		if err := models.ValidateCoOrganiser(t, m); err != nil {
			return validationError(err)
		}
		if m.MemberType != models.MemberTypeOfficer {
			return validationError(&models.FieldError{Field: "membership_id", Message: "co-organisers must be officers"})
		}
		if _, err := s.participantRepo.GetByTournamentAndMembership(ctx, exec, t.ID, m.ID); err == nil {
			return ErrAlreadyInTournament
		} else if !errors.Is(err, repositories.ErrParticipantNotFound) {
			return fmt.Errorf("failed to check participation: %w", err)
		}

		if err := s.tournamentRepo.AddCoOrganiser(ctx, exec, t.ID, m.ID); err != nil {
			if errors.Is(err, repositories.ErrCoOrganiserConflict) {
				return ErrCoOrganiserConflict
			}
			return fmt.Errorf("failed to add co-organiser: %w", err)
		}
		return nil
	})
}

func (s *tournamentService) RemoveCoOrganiser(ctx context.Context, userID, tournamentID, membershipID int) error {
	t, err := s.getTournament(ctx, nil, tournamentID)
	if err != nil {
		return err
	}
	actor, err := membershipIn(ctx, s.membershipRepo, t.ClubID, userID)
	if err != nil {
		return err
	}
	if t.OrganiserID != actor.ID {
		return ErrForbiddenOperation
	}
	if err := s.tournamentRepo.RemoveCoOrganiser(ctx, nil, t.ID, membershipID); err != nil {
		return notFound(err, repositories.ErrCoOrganiserNotFound, ErrMembershipNotFound, "failed to remove co-organiser")
	}
	return nil
}

func (s *tournamentService) ListCoOrganisers(ctx context.Context, userID, tournamentID int) ([]*models.Membership, error) {
	t, _, err := s.organiserOf(ctx, userID, tournamentID)
	if err != nil {
		return nil, err
	}
	members, err := s.tournamentRepo.ListCoOrganisers(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list co-organisers: %w", err)
	}
	return members, nil
}

func (s *tournamentService) invalidate(ctx context.Context, tournamentID int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tournamentID); err != nil {
		s.logger.Warn("failed to invalidate cached bracket", zap.Int("tournament_id", tournamentID), zap.Error(err))
	}
}
