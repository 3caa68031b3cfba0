package brackets

import "github.com/Dosada05/chess-clubs/models"

// StagePolicy is the bracket phase and group capacity used for one round.
type StagePolicy struct {
	Stage    models.GroupStage
	Capacity int
}

// PolicyFor maps the number of surviving participants at the start of a round
// to the stage label and group capacity of that round. ok is false when fewer
// than two participants survive and no round can be formed.
func PolicyFor(survivors int) (policy StagePolicy, ok bool) {
	switch {
	case survivors >= 32:
		return StagePolicy{Stage: models.StageGroup, Capacity: 6}, true
	case survivors >= 16:
		return StagePolicy{Stage: models.StageGroup, Capacity: 4}, true
	case survivors >= 8:
		return StagePolicy{Stage: models.StageQuarterFinal, Capacity: 2}, true
	case survivors >= 4:
		return StagePolicy{Stage: models.StageSemiFinal, Capacity: 2}, true
	case survivors >= 2:
		return StagePolicy{Stage: models.StageFinal, Capacity: 2}, true
	default:
		return StagePolicy{}, false
	}
}

// Advancing is how many top scorers of a group survive the round.
func Advancing(capacity int) int {
	if capacity < 4 {
		return 1
	}
	return 2
}
