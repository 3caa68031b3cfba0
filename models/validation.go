package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Ошибки инвариантов, проверяемые перед записью.
var (
	ErrWrongClub                = errors.New("membership belongs to a different club")
	ErrApplicantNotAllowed      = errors.New("applicant memberships cannot take part in tournaments")
	ErrOrganiserAsCoOrganiser   = errors.New("organiser of tournament must not be its co-organiser")
	ErrDeadlineNotInFuture      = errors.New("tournament deadline must be in the future")
	ErrParticipantsLimitInvalid = fmt.Errorf("participants limit must be between %d and %d", MinTournamentParticipants, MaxTournamentParticipants)
	ErrGroupNumber              = errors.New("group number must be absent for the final and at least 1 otherwise")
	ErrGroupCapacity            = errors.New("group capacity must be at least 2")
	ErrGroupingTournament       = errors.New("participant belongs to a different tournament than the group")
	ErrMatchGroup               = errors.New("both match players must belong to the match group")
	ErrMatchSamePlayer          = errors.New("a player cannot face themselves")
	ErrConclusionInvalid        = errors.New("invalid match conclusion")
)

// FieldError reports an invalid input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func requireText(field, value string, max int) error {
	if strings.TrimSpace(value) == "" {
		return &FieldError{Field: field, Message: "must not be blank"}
	}
	if utf8.RuneCountInString(value) > max {
		return &FieldError{Field: field, Message: fmt.Sprintf("must be at most %d characters", max)}
	}
	return nil
}

func optionalText(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return &FieldError{Field: field, Message: fmt.Sprintf("must be at most %d characters", max)}
	}
	return nil
}

func (c *Club) Validate() error {
	if err := requireText("name", c.Name, 50); err != nil {
		return err
	}
	if err := requireText("location", c.Location, 100); err != nil {
		return err
	}
	return requireText("description", c.Description, 500)
}

func (m *Membership) Validate() error {
	if err := requireText("first_name", m.FirstName, 50); err != nil {
		return err
	}
	if err := requireText("last_name", m.LastName, 50); err != nil {
		return err
	}
	if err := requireText("contact_details", m.ContactDetails, 100); err != nil {
		return err
	}
	if err := optionalText("personal_statement", m.PersonalStatement, 200); err != nil {
		return err
	}
	if err := optionalText("bio", m.Bio, 500); err != nil {
		return err
	}
	if !m.ExperienceLevel.Valid() {
		return &FieldError{Field: "experience_level", Message: "unknown chess experience level"}
	}
	if !m.MemberType.Valid() {
		return &FieldError{Field: "member_type", Message: "unknown member type"}
	}
	return nil
}

// Validate checks a new tournament against its organiser's membership.
func (t *Tournament) Validate(organiser *Membership, now time.Time) error {
	if err := requireText("name", t.Name, 50); err != nil {
		return err
	}
	if err := requireText("description", t.Description, 200); err != nil {
		return err
	}
	if t.ParticipantsLimit < MinTournamentParticipants || t.ParticipantsLimit > MaxTournamentParticipants {
		return ErrParticipantsLimitInvalid
	}
	if !t.Deadline.After(now) {
		return ErrDeadlineNotInFuture
	}
	if organiser.ClubID != t.ClubID {
		return ErrWrongClub
	}
	if organiser.IsApplicant() {
		return ErrApplicantNotAllowed
	}
	return nil
}

func ValidateCoOrganiser(t *Tournament, m *Membership) error {
	if m.ClubID != t.ClubID {
		return ErrWrongClub
	}
	if m.ID == t.OrganiserID {
		return ErrOrganiserAsCoOrganiser
	}
	if m.IsApplicant() {
		return ErrApplicantNotAllowed
	}
	return nil
}

func ValidateParticipant(t *Tournament, m *Membership) error {
	if m.ClubID != t.ClubID {
		return ErrWrongClub
	}
	if m.IsApplicant() {
		return ErrApplicantNotAllowed
	}
	return nil
}

func (g *Group) Validate() error {
	if g.Capacity < 2 {
		return ErrGroupCapacity
	}
	if g.Stage == StageFinal {
		if g.Number != nil {
			return ErrGroupNumber
		}
		return nil
	}
	if g.Number == nil || *g.Number < 1 {
		return ErrGroupNumber
	}
	return nil
}

func ValidateGrouping(g *Group, p *Participant) error {
	if g.TournamentID != p.TournamentID {
		return ErrGroupingTournament
	}
	return nil
}

func ValidateMatch(m *Match, player1, player2 *Grouping) error {
	if player1.ID == player2.ID {
		return ErrMatchSamePlayer
	}
	if player1.GroupID != m.GroupID || player2.GroupID != m.GroupID {
		return ErrMatchGroup
	}
	if m.Conclusion != nil && !m.Conclusion.Valid() {
		return ErrConclusionInvalid
	}
	return nil
}
