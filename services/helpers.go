package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/chess-clubs/models"
	"github.com/Dosada05/chess-clubs/repositories"
	"github.com/Dosada05/chess-clubs/storage"
)

// validationError wraps a write-time invariant violation so callers can match
// both ErrValidationFailed and the specific model error.
func validationError(err error) error {
	return fmt.Errorf("%w: %w", ErrValidationFailed, err)
}

// notFound переводит "не найдено" репозитория в ошибку сервиса, остальное оборачивает.
func notFound(err, repoErr, serviceErr error, op string) error {
	if errors.Is(err, repoErr) {
		return serviceErr
	}
	return fmt.Errorf("%s: %w", op, err)
}

func populateClubLogoURL(club *models.Club, uploader storage.FileUploader) {
	if club != nil && club.LogoKey != nil && *club.LogoKey != "" && uploader != nil {
		if url := uploader.GetPublicURL(*club.LogoKey); url != "" {
			club.LogoURL = &url
		}
	}
}

// membershipIn returns the caller's membership in the club; a user without
// one is forbidden from acting in the club.
func membershipIn(ctx context.Context, repo repositories.MembershipRepository, clubID, userID int) (*models.Membership, error) {
	m, err := repo.GetByClubAndUser(ctx, clubID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			return nil, ErrForbiddenOperation
		}
		return nil, fmt.Errorf("failed to load membership: %w", err)
	}
	return m, nil
}

// activeMembershipIn is membershipIn that also rejects applicants.
func activeMembershipIn(ctx context.Context, repo repositories.MembershipRepository, clubID, userID int) (*models.Membership, error) {
	m, err := membershipIn(ctx, repo, clubID, userID)
	if err != nil {
		return nil, err
	}
	if m.IsApplicant() {
		return nil, ErrForbiddenOperation
	}
	return m, nil
}
