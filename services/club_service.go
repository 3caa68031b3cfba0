package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Dosada05/chess-clubs/models"
	"github.com/Dosada05/chess-clubs/repositories"
	"github.com/Dosada05/chess-clubs/storage"
	"go.uber.org/zap"
)

type ClubService interface {
	CreateClub(ctx context.Context, userID int, input CreateClubInput) (*models.Club, *models.Membership, error)
	GetClub(ctx context.Context, clubID int) (*models.Club, error)
	ListClubs(ctx context.Context) ([]*models.Club, error)
	DeleteClub(ctx context.Context, userID, clubID int) error
	UploadLogo(ctx context.Context, userID, clubID int, contentType string, file io.Reader) (*models.Club, error)

	Apply(ctx context.Context, userID, clubID int, profile MembershipProfile) (*models.Membership, error)
	ListMembers(ctx context.Context, userID, clubID int) ([]*models.Membership, error)
	ApproveApplication(ctx context.Context, userID, clubID, membershipID int) (*models.Membership, error)
	DeclineApplication(ctx context.Context, userID, clubID, membershipID int) error
	PromoteToOfficer(ctx context.Context, userID, clubID, membershipID int) (*models.Membership, error)
	TransferOwnership(ctx context.Context, userID, clubID, membershipID int) error
}

// MembershipProfile is what a user tells a club about themselves.
type MembershipProfile struct {
	FirstName         string                 `json:"first_name"`
	LastName          string                 `json:"last_name"`
	ContactDetails    string                 `json:"contact_details"`
	ExperienceLevel   models.ExperienceLevel `json:"experience_level"`
	PersonalStatement string                 `json:"personal_statement"`
	Bio               string                 `json:"bio"`
}

type CreateClubInput struct {
	Name        string            `json:"name"`
	Location    string            `json:"location"`
	Description string            `json:"description"`
	Owner       MembershipProfile `json:"owner"`
}

// ClubCleaner drops cached data of tournaments removed with their club.
type ClubCleaner interface {
	Invalidate(ctx context.Context, tournamentID int) error
}

type clubService struct {
	tx             repositories.Transactor
	clubRepo       repositories.ClubRepository
	membershipRepo repositories.MembershipRepository
	tournamentRepo repositories.TournamentRepository
	uploader       storage.FileUploader
	cache          ClubCleaner
	logger         *zap.Logger
}

func NewClubService(
	tx repositories.Transactor,
	clubRepo repositories.ClubRepository,
	membershipRepo repositories.MembershipRepository,
	tournamentRepo repositories.TournamentRepository,
	uploader storage.FileUploader,
	cache ClubCleaner,
	logger *zap.Logger,
) ClubService {
	return &clubService{
		tx:             tx,
		clubRepo:       clubRepo,
		membershipRepo: membershipRepo,
		tournamentRepo: tournamentRepo,
		uploader:       uploader,
		cache:          cache,
		logger:         logger,
	}
}

func (p MembershipProfile) membership(clubID, userID int, memberType models.MemberType) *models.Membership {
	return &models.Membership{
		ClubID:            clubID,
		UserID:            userID,
		FirstName:         p.FirstName,
		LastName:          p.LastName,
		ContactDetails:    p.ContactDetails,
		PersonalStatement: p.PersonalStatement,
		Bio:               p.Bio,
		ExperienceLevel:   p.ExperienceLevel,
		MemberType:        memberType,
	}
}

func (s *clubService) CreateClub(ctx context.Context, userID int, input CreateClubInput) (*models.Club, *models.Membership, error) {
	club := &models.Club{
		Name:        input.Name,
		Location:    input.Location,
		Description: input.Description,
	}
	if err := club.Validate(); err != nil {
		return nil, nil, validationError(err)
	}
	owner := input.Owner.membership(0, userID, models.MemberTypeClubOwner)
	if err := owner.Validate(); err != nil {
		return nil, nil, validationError(err)
	}

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.clubRepo.Create(ctx, exec, club); err != nil {
			return err
		}
		owner.ClubID = club.ID
		return s.membershipRepo.Create(ctx, exec, owner)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrClubNameConflict) {
			return nil, nil, ErrClubNameConflict
		}
		return nil, nil, fmt.Errorf("failed to create club: %w", err)
	}

	club.TotalMembers = 1
	s.logger.Info("club created", zap.Int("club_id", club.ID), zap.Int("owner_membership_id", owner.ID))
	return club, owner, nil
}

func (s *clubService) GetClub(ctx context.Context, clubID int) (*models.Club, error) {
	club, err := s.clubRepo.GetByID(ctx, clubID)
	if err != nil {
		return nil, notFound(err, repositories.ErrClubNotFound, ErrClubNotFound, "failed to get club")
	}
	populateClubLogoURL(club, s.uploader)
	return club, nil
}

func (s *clubService) ListClubs(ctx context.Context) ([]*models.Club, error) {
	clubs, err := s.clubRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clubs: %w", err)
	}
	for _, c := range clubs {
		populateClubLogoURL(c, s.uploader)
	}
	return clubs, nil
}

// requireRole loads the caller's membership and checks it holds one of the roles.
func (s *clubService) requireRole(ctx context.Context, clubID, userID int, roles ...models.MemberType) (*models.Membership, error) {
	if _, err := s.clubRepo.GetByID(ctx, clubID); err != nil {
		return nil, notFound(err, repositories.ErrClubNotFound, ErrClubNotFound, "failed to get club")
	}
	m, err := membershipIn(ctx, s.membershipRepo, clubID, userID)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		if m.MemberType == role {
			return m, nil
		}
	}
	return nil, ErrForbiddenOperation
}

// target loads a membership of the club that a role workflow acts on.
func (s *clubService) target(ctx context.Context, clubID, membershipID int) (*models.Membership, error) {
	m, err := s.membershipRepo.GetByID(ctx, nil, membershipID)
	if err != nil {
		return nil, notFound(err, repositories.ErrMembershipNotFound, ErrMembershipNotFound, "failed to get membership")
	}
	if m.ClubID != clubID {
		return nil, ErrMembershipNotFound
	}
	return m, nil
}

func (s *clubService) DeleteClub(ctx context.Context, userID, clubID int) error {
	if _, err := s.requireRole(ctx, clubID, userID, models.MemberTypeClubOwner); err != nil {
		return err
	}

	tournaments, err := s.tournamentRepo.ListByClub(ctx, clubID)
	if err != nil {
		return fmt.Errorf("failed to list tournaments of club %d: %w", clubID, err)
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.tournamentRepo.DeleteByClub(ctx, exec, clubID); err != nil {
			return err
		}
		if err := s.membershipRepo.DeleteByClub(ctx, exec, clubID); err != nil {
			return err
		}
		return s.clubRepo.Delete(ctx, exec, clubID)
	})
	if err != nil {
		return notFound(err, repositories.ErrClubNotFound, ErrClubNotFound, "failed to delete club")
	}

	if s.cache != nil {
		for _, t := range tournaments {
			if err := s.cache.Invalidate(ctx, t.ID); err != nil {
				s.logger.Warn("failed to drop cached bracket", zap.Int("tournament_id", t.ID), zap.Error(err))
			}
		}
	}
	s.logger.Info("club deleted", zap.Int("club_id", clubID), zap.Int("tournaments", len(tournaments)))
	return nil
}

func (s *clubService) UploadLogo(ctx context.Context, userID, clubID int, contentType string, file io.Reader) (*models.Club, error) {
	if s.uploader == nil {
		return nil, ErrStorageUnavailable
	}
	if _, err := s.requireRole(ctx, clubID, userID, models.MemberTypeClubOwner); err != nil {
		return nil, err
	}

	key, err := storage.LogoKey(clubID, contentType)
	if err != nil {
		return nil, validationError(err)
	}
	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload logo of club %d: %w", clubID, err)
	}

	club, err := s.clubRepo.GetByID(ctx, clubID)
	if err != nil {
		return nil, notFound(err, repositories.ErrClubNotFound, ErrClubNotFound, "failed to get club")
	}
	previous := club.LogoKey

	if err := s.clubRepo.UpdateLogoKey(ctx, clubID, &key); err != nil {
		if delErr := s.uploader.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned logo", zap.String("key", key), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to save logo of club %d: %w", clubID, err)
	}
	if previous != nil && *previous != "" {
		if err := s.uploader.Delete(ctx, *previous); err != nil {
			s.logger.Warn("failed to remove previous logo", zap.String("key", *previous), zap.Error(err))
		}
	}

	club.LogoKey = &key
	populateClubLogoURL(club, s.uploader)
	return club, nil
}

func (s *clubService) Apply(ctx context.Context, userID, clubID int, profile MembershipProfile) (*models.Membership, error) {
	if _, err := s.clubRepo.GetByID(ctx, clubID); err != nil {
		return nil, notFound(err, repositories.ErrClubNotFound, ErrClubNotFound, "failed to get club")
	}

	m := profile.membership(clubID, userID, models.MemberTypeApplicant)
	if err := m.Validate(); err != nil {
		return nil, validationError(err)
	}
	if err := s.membershipRepo.Create(ctx, nil, m); err != nil {
		if errors.Is(err, repositories.ErrMembershipConflict) {
			return nil, ErrMembershipConflict
		}
		return nil, fmt.Errorf("failed to apply to club %d: %w", clubID, err)
	}
	return m, nil
}

// ListMembers hides applicants from callers who cannot approve them.
func (s *clubService) ListMembers(ctx context.Context, userID, clubID int) ([]*models.Membership, error) {
	caller, err := s.requireRole(ctx, clubID, userID,
		models.MemberTypeMember, models.MemberTypeOfficer, models.MemberTypeClubOwner)
	if err != nil {
		return nil, err
	}
	members, err := s.membershipRepo.ListByClub(ctx, clubID, caller.MemberType.CanOrganise())
	if err != nil {
		return nil, fmt.Errorf("failed to list members of club %d: %w", clubID, err)
	}
	return members, nil
}

func (s *clubService) ApproveApplication(ctx context.Context, userID, clubID, membershipID int) (*models.Membership, error) {
	if _, err := s.requireRole(ctx, clubID, userID, models.MemberTypeOfficer, models.MemberTypeClubOwner); err != nil {
		return nil, err
	}
	m, err := s.target(ctx, clubID, membershipID)
	if err != nil {
		return nil, err
	}
	if !m.IsApplicant() {
		return nil, ErrMemberTypeTransition
	}
	if err := s.membershipRepo.UpdateMemberType(ctx, nil, m.ID, models.MemberTypeMember); err != nil {
		return nil, notFound(err, repositories.ErrMembershipNotFound, ErrMembershipNotFound, "failed to approve application")
	}
	m.MemberType = models.MemberTypeMember
	return m, nil
}

func (s *clubService) DeclineApplication(ctx context.Context, userID, clubID, membershipID int) error {
	if _, err := s.requireRole(ctx, clubID, userID, models.MemberTypeOfficer, models.MemberTypeClubOwner); err != nil {
		return err
	}
	m, err := s.target(ctx, clubID, membershipID)
	if err != nil {
		return err
	}
	if !m.IsApplicant() {
		return ErrMemberTypeTransition
	}
	if err := s.membershipRepo.Delete(ctx, m.ID); err != nil {
		return notFound(err, repositories.ErrMembershipNotFound, ErrMembershipNotFound, "failed to decline application")
	}
	return nil
}

func (s *clubService) PromoteToOfficer(ctx context.Context, userID, clubID, membershipID int) (*models.Membership, error) {
	if _, err := s.requireRole(ctx, clubID, userID, models.MemberTypeClubOwner); err != nil {
		return nil, err
	}
	m, err := s.target(ctx, clubID, membershipID)
	if err != nil {
		return nil, err
	}
	if m.MemberType != models.MemberTypeMember {
		return nil, ErrMemberTypeTransition
	}
	if err := s.membershipRepo.UpdateMemberType(ctx, nil, m.ID, models.MemberTypeOfficer); err != nil {
		return nil, notFound(err, repositories.ErrMembershipNotFound, ErrMembershipNotFound, "failed to promote member")
	}
	m.MemberType = models.MemberTypeOfficer
	return m, nil
}

// TransferOwnership makes an officer the owner; the previous owner becomes an officer.
func (s *clubService) TransferOwnership(ctx context.Context, userID, clubID, membershipID int) error {
	owner, err := s.requireRole(ctx, clubID, userID, models.MemberTypeClubOwner)
	if err != nil {
		return err
	}
	m, err := s.target(ctx, clubID, membershipID)
	if err != nil {
		return err
	}
	if m.MemberType != models.MemberTypeOfficer {
		return ErrMemberTypeTransition
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.membershipRepo.UpdateMemberType(ctx, exec, m.ID, models.MemberTypeClubOwner); err != nil {
			return err
		}
		return s.membershipRepo.UpdateMemberType(ctx, exec, owner.ID, models.MemberTypeOfficer)
	})
	if err != nil {
		return notFound(err, repositories.ErrMembershipNotFound, ErrMembershipNotFound, "failed to transfer ownership")
	}

	s.logger.Info("club ownership transferred",
		zap.Int("club_id", clubID), zap.Int("from_membership_id", owner.ID), zap.Int("to_membership_id", m.ID))
	return nil
}
