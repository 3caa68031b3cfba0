package brackets

import (
	"fmt"
	"sort"

	"github.com/Dosada05/chess-clubs/models"
)

// ScoreDelta returns the points each side gains from a match conclusion.
func ScoreDelta(c models.Conclusion) (player1, player2 float64, err error) {
	switch c {
	case models.ConclusionDraw:
		return 0.5, 0.5, nil
	case models.ConclusionPlayer1Wins:
		return 1, 0, nil
	case models.ConclusionPlayer2Wins:
		return 0, 1, nil
	default:
		return 0, 0, fmt.Errorf("%w: %d", models.ErrConclusionInvalid, int(c))
	}
}

// Standings orders groupings by points, highest first. Equal scores keep the
// order in which the groupings were given (insertion order).
func Standings(groupings []*models.Grouping) []*models.Grouping {
	ranked := make([]*models.Grouping, len(groupings))
	copy(ranked, groupings)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Points > ranked[j].Points
	})
	return ranked
}

// SplitGroup separates the groupings that survive a finished group from the
// ones that are eliminated.
func SplitGroup(capacity int, groupings []*models.Grouping) (advancing, eliminated []*models.Grouping) {
	ranked := Standings(groupings)
	keep := Advancing(capacity)
	if keep > len(ranked) {
		keep = len(ranked)
	}
	return ranked[:keep], ranked[keep:]
}
