package models

import "time"

type Participant struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	MembershipID int       `json:"membership_id" db:"membership_id"`
	Eliminated   bool      `json:"eliminated" db:"eliminated"`
	Won          bool      `json:"won" db:"won"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`

	Membership *Membership `json:"membership,omitempty" db:"-"`
}
