package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/Dosada05/chess-clubs/models"
	"github.com/Dosada05/chess-clubs/repositories"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	// Login returns the user together with a signed access token.
	Login(ctx context.Context, input LoginInput) (*models.User, string, error)
}

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenConfig describes how access tokens are signed.
type TokenConfig struct {
	Secret     []byte
	Expiration time.Duration
}

type authService struct {
	userRepo repositories.UserRepository
	tokens   TokenConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewAuthService(userRepo repositories.UserRepository, tokens TokenConfig, logger *zap.Logger) AuthService {
	return &authService{
		userRepo: userRepo,
		tokens:   tokens,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	email := strings.TrimSpace(input.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, &models.FieldError{Field: "email", Message: "must be a valid email address"})
	}
	if len(input.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: at least %d characters required", ErrPasswordTooShort, minPasswordLength)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("ошибка хеширования пароля: %w", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hashedPassword),
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrUserEmailConflict) {
			return nil, ErrUserEmailConflict
		}
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	s.logger.Info("user registered", zap.Int("user_id", user.ID))
	user.PasswordHash = ""
	return user, nil
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*models.User, string, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(input.Email))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to find user by email: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to compare password hash: %w", err)
	}
	if !user.IsActive {
		return nil, "", ErrAuthenticationFailed
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}

	user.PasswordHash = ""
	return user, token, nil
}

func (s *authService) issueToken(user *models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"exp":     now.Add(s.tokens.Expiration).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.tokens.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
