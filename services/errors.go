package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Валидация и бизнес-правила
	ErrValidationFailed      = errors.New("validation failed")
	ErrPasswordTooShort      = errors.New("password is too short")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrTournamentFull        = errors.New("tournament has no free places left")
	ErrDeadlinePassed        = errors.New("tournament join deadline has passed")
	ErrTournamentClosed      = errors.New("tournament is closed")
	ErrMatchAlreadyConcluded = errors.New("match already has a conclusion")
	ErrMemberTypeTransition  = errors.New("membership cannot take this role from its current one")
	ErrStorageUnavailable    = errors.New("file storage is not configured")

	// Конфликты
	ErrUserEmailConflict   = errors.New("email address is already in use")
	ErrClubNameConflict    = errors.New("club name is already in use")
	ErrMembershipConflict  = errors.New("user already belongs to or applied to this club")
	ErrAlreadyInTournament = errors.New("membership already takes part in or organises this tournament")
	ErrCoOrganiserConflict = errors.New("membership is already a co-organiser of this tournament")

	// Аутентификация и авторизация
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")

	// Сущности
	ErrUserNotFound        = errors.New("user not found")
	ErrClubNotFound        = errors.New("club not found")
	ErrMembershipNotFound  = errors.New("membership not found")
	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrMatchNotFound       = errors.New("match not found")
)
