package models

import (
	"fmt"
	"time"
)

type Conclusion int

const (
	ConclusionDraw Conclusion = iota
	ConclusionPlayer1Wins
	ConclusionPlayer2Wins
)

var conclusionNames = map[Conclusion]string{
	ConclusionDraw:        "draw",
	ConclusionPlayer1Wins: "player1_wins",
	ConclusionPlayer2Wins: "player2_wins",
}

func (c Conclusion) String() string {
	if name, ok := conclusionNames[c]; ok {
		return name
	}
	return "unknown"
}

func (c Conclusion) Valid() bool {
	_, ok := conclusionNames[c]
	return ok
}

// ParseConclusion accepts the names used by the HTTP API.
func ParseConclusion(s string) (Conclusion, error) {
	for c, name := range conclusionNames {
		if name == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown match conclusion %q", s)
}

// Match is one game between two groupings of the same group.
type Match struct {
	ID           int         `json:"id" db:"id"`
	TournamentID int         `json:"tournament_id" db:"tournament_id"`
	GroupID      int         `json:"group_id" db:"group_id"`
	Player1ID    int         `json:"player1_grouping_id" db:"player1_id"`
	Player2ID    int         `json:"player2_grouping_id" db:"player2_id"`
	Conclusion   *Conclusion `json:"conclusion,omitempty" db:"conclusion"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
}

func (m *Match) Concluded() bool {
	return m.Conclusion != nil
}

func (c Conclusion) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid match conclusion %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Conclusion) UnmarshalText(text []byte) error {
	parsed, err := ParseConclusion(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
