package models

import "time"

const (
	MinTournamentParticipants = 2
	MaxTournamentParticipants = 96
)

// Tournament представляет турнир клуба.
type Tournament struct {
	ID                int       `json:"id" db:"id"`
	ClubID            int       `json:"club_id" db:"club_id"`
	OrganiserID       int       `json:"organiser_id" db:"organiser_id"`
	Name              string    `json:"name" db:"name"`
	Description       string    `json:"description" db:"description"`
	Deadline          time.Time `json:"deadline" db:"deadline"`
	ParticipantsLimit int       `json:"participants_limit" db:"participants_limit"`
	IsActive          bool      `json:"is_active" db:"is_active"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`

	// Опциональные связанные сущности (не мапятся напрямую)
	CoOrganiserIDs    []int        `json:"co_organiser_ids,omitempty" db:"-"`
	TotalParticipants int          `json:"total_participants" db:"-"`
	Winner            *Participant `json:"winner,omitempty" db:"-"`
}

func (t *Tournament) PassedDeadline(now time.Time) bool {
	return t.Deadline.Before(now)
}

// IsOrganisedBy reports whether the membership is the organiser or one of the co-organisers.
func (t *Tournament) IsOrganisedBy(membershipID int) bool {
	if t.OrganiserID == membershipID {
		return true
	}
	for _, id := range t.CoOrganiserIDs {
		if id == membershipID {
			return true
		}
	}
	return false
}
