package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/chess-clubs/models"
)

// GroupDraft is a group to be persisted together with its members.
type GroupDraft struct {
	Stage    models.GroupStage
	Number   *int
	Capacity int
	Members  []*models.Participant
}

// Round is the outcome of drawing one round from the survivor pool.
type Round struct {
	Policy    StagePolicy
	Groups    []GroupDraft
	Ungrouped []*models.Participant
}

type BuildRoundParams struct {
	TournamentID int
	Survivors    []*models.Participant
	Counter      MatchCounter
}

// BuildRound picks the stage policy from the survivor count and keeps drawing
// groups from the shrinking pool until fewer than a group's capacity remain.
// Survivors left over are carried to the next round ungrouped.
func BuildRound(ctx context.Context, params BuildRoundParams) (*Round, error) {
	policy, ok := PolicyFor(len(params.Survivors))
	if !ok {
		return nil, fmt.Errorf("tournament %d: cannot form a round from %d survivors", params.TournamentID, len(params.Survivors))
	}

	round := &Round{Policy: policy}
	pool := params.Survivors
	number := 1

	for len(pool) >= policy.Capacity {
		members, rest, err := Allocate(ctx, pool, policy.Capacity, params.Counter)
		if err != nil {
			return nil, fmt.Errorf("tournament %d: failed to allocate group %d: %w", params.TournamentID, number, err)
		}

		draft := GroupDraft{
			Stage:    policy.Stage,
			Capacity: policy.Capacity,
			Members:  members,
		}
		if policy.Stage != models.StageFinal {
			n := number
			draft.Number = &n
		}
		round.Groups = append(round.Groups, draft)
		pool = rest
		number++

		if policy.Stage == models.StageFinal {
			break
		}
	}

	round.Ungrouped = pool
	return round, nil
}
