package brackets

import (
	"context"

	"github.com/Dosada05/chess-clubs/models"
)

func makeParticipants(n int) []*models.Participant {
	out := make([]*models.Participant, n)
	for i := range out {
		out[i] = &models.Participant{ID: i + 1, TournamentID: 1, MembershipID: 100 + i}
	}
	return out
}

func ids(ps []*models.Participant) []int {
	out := make([]int, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

type pairKey struct{ a, b int }

func key(a, b int) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// history is a MatchCounter backed by a map of concluded games.
type history struct {
	played map[pairKey]int
	calls  [][2]int
}

func newHistory() *history {
	return &history{played: make(map[pairKey]int)}
}

func (h *history) play(a, b int) *history {
	h.played[key(a, b)]++
	return h
}

func (h *history) ConcludedMatchCount(_ context.Context, a, b int) (int, error) {
	h.calls = append(h.calls, [2]int{a, b})
	return h.played[key(a, b)], nil
}
