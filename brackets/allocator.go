package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/chess-clubs/models"
)

// MatchCounter returns how many concluded matches two participants of the
// same tournament have already played against each other.
type MatchCounter interface {
	ConcludedMatchCount(ctx context.Context, participantA, participantB int) (int, error)
}

// MatchCounterFunc adapts a function to MatchCounter.
type MatchCounterFunc func(ctx context.Context, participantA, participantB int) (int, error)

func (f MatchCounterFunc) ConcludedMatchCount(ctx context.Context, a, b int) (int, error) {
	return f(ctx, a, b)
}

// Allocate draws one group of groupSize participants from the front of pool.
//
// The first participant is the anchor. Companions are picked in pool order,
// preferring those who have played the anchor the fewest concluded matches:
// a candidate qualifies when its count against the anchor is at most limit,
// and limit grows by one after every full scan without a hit. limit is not
// reset between companions. Only anchor-vs-candidate history is checked,
// companions are not compared with each other.
//
// The returned group starts with the anchor followed by companions in the
// order they were picked. rest keeps the original order of the unpicked pool.
// The caller guarantees len(pool) >= groupSize.
func Allocate(ctx context.Context, pool []*models.Participant, groupSize int, counter MatchCounter) (group, rest []*models.Participant, err error) {
	if groupSize < 1 || len(pool) < groupSize {
		return nil, nil, fmt.Errorf("cannot draw a group of %d from %d participants", groupSize, len(pool))
	}

	anchor := pool[0]
	candidates := make([]*models.Participant, len(pool)-1)
	copy(candidates, pool[1:])

	counts := make(map[int]int, len(candidates))
	for _, c := range candidates {
		n, err := counter.ConcludedMatchCount(ctx, anchor.ID, c.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to count matches between participants %d and %d: %w", anchor.ID, c.ID, err)
		}
		counts[c.ID] = n
	}

	group = make([]*models.Participant, 0, groupSize)
	group = append(group, anchor)
	limit := 0

	for len(group) < groupSize {
		picked := -1
		for picked < 0 {
			for i, c := range candidates {
				if counts[c.ID] <= limit {
					picked = i
					break
				}
			}
			if picked < 0 {
				limit++
			}
		}
		group = append(group, candidates[picked])
		candidates = append(candidates[:picked], candidates[picked+1:]...)
	}

	return group, candidates, nil
}
