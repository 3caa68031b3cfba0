package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/chess-clubs/brackets"
	"github.com/Dosada05/chess-clubs/models"
	"github.com/Dosada05/chess-clubs/repositories"
	"go.uber.org/zap"
)

type RoundOutcome string

const (
	// OutcomeNoop means a precondition did not hold and nothing changed.
	OutcomeNoop     RoundOutcome = "noop"
	OutcomeAdvanced RoundOutcome = "advanced"
	OutcomeClosed   RoundOutcome = "closed"
)

// RoundResult describes what a round advancement did.
type RoundResult struct {
	Outcome RoundOutcome    `json:"outcome"`
	Reason  string          `json:"reason,omitempty"`
	Stage   string          `json:"stage,omitempty"`
	Groups  []*models.Group `json:"groups,omitempty"`

	// Ungrouped survivors wait for the next round.
	Ungrouped []int            `json:"ungrouped_participant_ids,omitempty"`
	Winner    *ParticipantView `json:"winner,omitempty"`
}

type MatchResolution struct {
	Match *models.Match `json:"match"`
	Round *RoundResult  `json:"round,omitempty"`
}

const (
	reasonTournamentClosed = "tournament is closed"
	reasonDeadlinePending  = "join deadline has not passed yet"
	reasonMatchesOpen      = "matches of the current round are still open"
)

type BracketService interface {
	// AdvanceRound closes the finished round and either draws the next one or
	// closes the tournament.
	AdvanceRound(ctx context.Context, tournamentID int, actor *models.Membership) (*RoundResult, error)
	// ResolveMatch records a match conclusion and then tries to advance the round.
	ResolveMatch(ctx context.Context, tournamentID, matchID int, conclusion models.Conclusion, actor *models.Membership) (*MatchResolution, error)
}

// BracketNotifier pushes live updates to subscribers of a tournament.
type BracketNotifier interface {
	BroadcastToRoom(room string, event brackets.Event)
}

type bracketService struct {
	tx              repositories.Transactor
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	groupRepo       repositories.GroupRepository
	groupingRepo    repositories.GroupingRepository
	matchRepo       repositories.MatchRepository
	notifier        BracketNotifier
	cache           BracketViewCache
	logger          *zap.Logger
	now             func() time.Time
}

type BracketServiceDeps struct {
	Tx              repositories.Transactor
	TournamentRepo  repositories.TournamentRepository
	ParticipantRepo repositories.ParticipantRepository
	GroupRepo       repositories.GroupRepository
	GroupingRepo    repositories.GroupingRepository
	MatchRepo       repositories.MatchRepository
	// Notifier and Cache are optional.
	Notifier BracketNotifier
	Cache    BracketViewCache
	Logger   *zap.Logger
	Now      func() time.Time
}

func NewBracketService(deps BracketServiceDeps) BracketService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &bracketService{
		tx:              deps.Tx,
		tournamentRepo:  deps.TournamentRepo,
		participantRepo: deps.ParticipantRepo,
		groupRepo:       deps.GroupRepo,
		groupingRepo:    deps.GroupingRepo,
		matchRepo:       deps.MatchRepo,
		notifier:        deps.Notifier,
		cache:           deps.Cache,
		logger:          deps.Logger,
		now:             now,
	}
}

// lockTournament takes the tournament row lock and checks that the actor
// organises or co-organises it.
func (s *bracketService) lockTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, actor *models.Membership) (*models.Tournament, error) {
	t, err := s.tournamentRepo.LockByID(ctx, exec, tournamentID)
	if err != nil {
		return nil, notFound(err, repositories.ErrTournamentNotFound, ErrTournamentNotFound, "failed to lock tournament")
	}
	if actor == nil || actor.ClubID != t.ClubID || !t.IsOrganisedBy(actor.ID) {
		return nil, ErrForbiddenOperation
	}
	return t, nil
}

func (s *bracketService) AdvanceRound(ctx context.Context, tournamentID int, actor *models.Membership) (*RoundResult, error) {
	var result *RoundResult
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.lockTournament(ctx, exec, tournamentID, actor)
		if err != nil {
			return err
		}

		if reason, err := s.roundBlocker(ctx, exec, t); err != nil {
			return err
		} else if reason != "" {
			result = &RoundResult{Outcome: OutcomeNoop, Reason: reason}
			return nil
		}

		if err := s.finishActiveGroups(ctx, exec, t.ID); err != nil {
			return err
		}

		survivors, err := s.participantRepo.ListSurvivors(ctx, exec, t.ID)
		if err != nil {
			return err
		}

		if len(survivors) < 2 {
			result, err = s.closeTournament(ctx, exec, t, survivors)
			return err
		}
		result, err = s.openRound(ctx, exec, t, survivors)
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.Outcome != OutcomeNoop {
		s.publish(ctx, tournamentID, result)
	}
	return result, nil
}

// roundBlocker returns why the round cannot advance yet, or "" when it can.
func (s *bracketService) roundBlocker(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) (string, error) {
	if !t.IsActive {
		return reasonTournamentClosed, nil
	}
	if !t.PassedDeadline(s.now()) {
		return reasonDeadlinePending, nil
	}
	open, err := s.matchRepo.CountUnconcluded(ctx, exec, t.ID)
	if err != nil {
		return "", err
	}
	if open > 0 {
		return reasonMatchesOpen, nil
	}
	return "", nil
}

// finishActiveGroups eliminates everyone but the top scorer(s) of each active
// group and deactivates the groups.
func (s *bracketService) finishActiveGroups(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error {
	groups, err := s.groupRepo.ListActive(ctx, exec, tournamentID)
	if err != nil {
		return err
	}

	var eliminated []int
	for _, g := range groups {
		groupings, err := s.groupingRepo.ListByGroup(ctx, exec, g.ID)
		if err != nil {
			return err
		}
		_, out := brackets.SplitGroup(g.Capacity, groupings)
		for _, gr := range out {
			eliminated = append(eliminated, gr.ParticipantID)
		}
		if err := s.groupRepo.Deactivate(ctx, exec, g.ID); err != nil {
			return err
		}
	}
	return s.participantRepo.MarkEliminated(ctx, exec, eliminated)
}

func (s *bracketService) closeTournament(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, survivors []*models.Participant) (*RoundResult, error) {
	result := &RoundResult{Outcome: OutcomeClosed}
	if len(survivors) == 1 {
		winner := survivors[0]
		if err := s.participantRepo.MarkWon(ctx, exec, winner.ID); err != nil {
			return nil, err
		}
		winner.Won = true
		pv := participantView(winner)
		result.Winner = &pv
	}
	if err := s.tournamentRepo.Close(ctx, exec, t.ID); err != nil {
		return nil, err
	}
	return result, nil
}

// openRound draws the next round from the survivors and persists its groups,
// groupings and round-robin matches.
func (s *bracketService) openRound(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, survivors []*models.Participant) (*RoundResult, error) {
	counter := brackets.MatchCounterFunc(func(ctx context.Context, a, b int) (int, error) {
		return s.matchRepo.ConcludedBetween(ctx, exec, t.ID, a, b)
	})
	round, err := brackets.BuildRound(ctx, brackets.BuildRoundParams{
		TournamentID: t.ID,
		Survivors:    survivors,
		Counter:      counter,
	})
	if err != nil {
		return nil, err
	}

	result := &RoundResult{
		Outcome: OutcomeAdvanced,
		Stage:   round.Policy.Stage.String(),
		Groups:  make([]*models.Group, 0, len(round.Groups)),
	}
	for _, draft := range round.Groups {
		group, err := s.persistGroup(ctx, exec, t.ID, draft)
		if err != nil {
			return nil, err
		}
		result.Groups = append(result.Groups, group)
	}
	for _, p := range round.Ungrouped {
		result.Ungrouped = append(result.Ungrouped, p.ID)
	}
	return result, nil
}

func (s *bracketService) persistGroup(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, draft brackets.GroupDraft) (*models.Group, error) {
	group := &models.Group{
		TournamentID: tournamentID,
		Stage:        draft.Stage,
		Number:       draft.Number,
		Capacity:     draft.Capacity,
	}
	if err := group.Validate(); err != nil {
		return nil, validationError(err)
	}
	if err := s.groupRepo.Create(ctx, exec, group); err != nil {
		return nil, err
	}

	groupings := make([]*models.Grouping, 0, len(draft.Members))
	for _, p := range draft.Members {
		if err := models.ValidateGrouping(group, p); err != nil {
			return nil, validationError(err)
		}
		gr := &models.Grouping{GroupID: group.ID, ParticipantID: p.ID}
		if err := s.groupingRepo.Create(ctx, exec, gr); err != nil {
			return nil, err
		}
		groupings = append(groupings, gr)
		group.Groupings = append(group.Groupings, *gr)
	}

	for _, pairing := range brackets.GenerateMatches(groupings) {
		m := &models.Match{
			TournamentID: tournamentID,
			GroupID:      group.ID,
			Player1ID:    pairing.Player1.ID,
			Player2ID:    pairing.Player2.ID,
		}
		if err := models.ValidateMatch(m, pairing.Player1, pairing.Player2); err != nil {
			return nil, validationError(err)
		}
		if err := s.matchRepo.Create(ctx, exec, m); err != nil {
			return nil, err
		}
		group.Matches = append(group.Matches, *m)
	}
	return group, nil
}

func (s *bracketService) ResolveMatch(ctx context.Context, tournamentID, matchID int, conclusion models.Conclusion, actor *models.Membership) (*MatchResolution, error) {
	var match *models.Match
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.lockTournament(ctx, exec, tournamentID, actor)
		if err != nil {
			return err
		}
		p1Delta, p2Delta, err := brackets.ScoreDelta(conclusion)
		if err != nil {
			return validationError(err)
		}
		if !t.IsActive {
			return ErrTournamentClosed
		}

		m, err := s.matchRepo.LockByID(ctx, exec, matchID)
		if err != nil {
			return notFound(err, repositories.ErrMatchNotFound, ErrMatchNotFound, "failed to lock match")
		}
		if m.TournamentID != t.ID {
			return ErrMatchNotFound
		}
		if m.Concluded() {
			return ErrMatchAlreadyConcluded
		}

		if err := s.groupingRepo.AddPoints(ctx, exec, m.Player1ID, p1Delta); err != nil {
			return err
		}
		if err := s.groupingRepo.AddPoints(ctx, exec, m.Player2ID, p2Delta); err != nil {
			return err
		}
		if err := s.matchRepo.SetConclusion(ctx, exec, m.ID, conclusion); err != nil {
			if errors.Is(err, repositories.ErrMatchAlreadyConcluded) {
				return ErrMatchAlreadyConcluded
			}
			return err
		}

		c := conclusion
		m.Conclusion = &c
		match = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("match resolved",
		zap.Int("tournament_id", tournamentID), zap.Int("match_id", matchID), zap.Stringer("conclusion", conclusion))
	s.invalidate(ctx, tournamentID)
	s.broadcast(tournamentID, brackets.EventMatchResolved, match)

	resolution := &MatchResolution{Match: match}
	round, err := s.AdvanceRound(ctx, tournamentID, actor)
	if err != nil {
		return resolution, fmt.Errorf("match %d resolved but round advancement failed: %w", matchID, err)
	}
	resolution.Round = round
	return resolution, nil
}

func (s *bracketService) publish(ctx context.Context, tournamentID int, result *RoundResult) {
	fields := []zap.Field{zap.Int("tournament_id", tournamentID), zap.String("outcome", string(result.Outcome))}
	event := brackets.EventRoundAdvanced
	if result.Outcome == OutcomeClosed {
		event = brackets.EventTournamentClosed
		if result.Winner != nil {
			fields = append(fields, zap.Int("winner_participant_id", result.Winner.ID))
		}
		s.logger.Info("tournament closed", fields...)
	} else {
		fields = append(fields,
			zap.String("stage", result.Stage),
			zap.Int("groups", len(result.Groups)),
			zap.Int("ungrouped", len(result.Ungrouped)))
		s.logger.Info("round advanced", fields...)
	}

	s.invalidate(ctx, tournamentID)
	s.broadcast(tournamentID, event, result)
}

func (s *bracketService) broadcast(tournamentID int, eventType string, payload interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.BroadcastToRoom(brackets.RoomForTournament(tournamentID), brackets.Event{Type: eventType, Payload: payload})
}

func (s *bracketService) invalidate(ctx context.Context, tournamentID int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tournamentID); err != nil {
		s.logger.Warn("failed to invalidate cached bracket", zap.Int("tournament_id", tournamentID), zap.Error(err))
	}
}
