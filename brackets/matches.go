package brackets

import "github.com/Dosada05/chess-clubs/models"

// Pairing is one round-robin game inside a group, by grouping.
type Pairing struct {
	Player1 *models.Grouping
	Player2 *models.Grouping
}

// GenerateMatches pairs every grouping with every later one, in the order
// given, producing k*(k-1)/2 pairings for a group of k.
func GenerateMatches(groupings []*models.Grouping) []Pairing {
	n := len(groupings)
	if n < 2 {
		return nil
	}

	pairings := make([]Pairing, 0, n*(n-1)/2)
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			pairings = append(pairings, Pairing{Player1: groupings[i], Player2: groupings[j]})
		}
	}
	return pairings
}
