package models

import "time"

// GroupStage is the bracket phase label of a group.
type GroupStage int

const (
	StageGroup GroupStage = iota
	StageQuarterFinal
	StageSemiFinal
	StageFinal
)

func (s GroupStage) String() string {
	switch s {
	case StageGroup:
		return "Group"
	case StageQuarterFinal:
		return "Quarter final"
	case StageSemiFinal:
		return "Semi final"
	case StageFinal:
		return "Final"
	default:
		return "Unknown"
	}
}

type Group struct {
	ID           int        `json:"id" db:"id"`
	TournamentID int        `json:"tournament_id" db:"tournament_id"`
	Stage        GroupStage `json:"stage" db:"stage"`
	Number       *int       `json:"number,omitempty" db:"number"`
	Capacity     int        `json:"capacity" db:"capacity"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`

	Groupings []Grouping `json:"groupings,omitempty" db:"-"`
	Matches   []Match    `json:"matches,omitempty" db:"-"`
}

// Grouping places one participant in one group and carries the running score.
type Grouping struct {
	ID            int     `json:"id" db:"id"`
	GroupID       int     `json:"group_id" db:"group_id"`
	ParticipantID int     `json:"participant_id" db:"participant_id"`
	Points        float64 `json:"points_in_group" db:"points_in_group"`
}
