package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Dosada05/chess-clubs/brackets"
	"github.com/Dosada05/chess-clubs/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BracketView is the tournament page: the tournament, its roster and the
// groups of the current round with standings and matches.
type BracketView struct {
	Tournament   *models.Tournament `json:"tournament"`
	Winner       *ParticipantView   `json:"winner,omitempty"`
	Participants []ParticipantView  `json:"participants"`
	Groups       []GroupView        `json:"groups"`
}

type ParticipantView struct {
	ID           int    `json:"id"`
	MembershipID int    `json:"membership_id"`
	Name         string `json:"name"`
	Eliminated   bool   `json:"eliminated"`
	Won          bool   `json:"won"`
}

type GroupView struct {
	ID        int            `json:"id"`
	Stage     string         `json:"stage"`
	Number    *int           `json:"number,omitempty"`
	Capacity  int            `json:"capacity"`
	Standings []StandingView `json:"standings"`
	Matches   []MatchView    `json:"matches"`
}

type StandingView struct {
	GroupingID    int     `json:"grouping_id"`
	ParticipantID int     `json:"participant_id"`
	Name          string  `json:"name"`
	Points        float64 `json:"points_in_group"`
}

type MatchView struct {
	ID         int                `json:"id"`
	Player1    StandingView       `json:"player1"`
	Player2    StandingView       `json:"player2"`
	Conclusion *models.Conclusion `json:"conclusion,omitempty"`
}

// GetBracket returns the cached view when present. Only club members
// (applicants excluded) may see a tournament.
func (s *tournamentService) GetBracket(ctx context.Context, userID, tournamentID int) (*BracketView, error) {
	// Эпоха читается до загрузки: всё, что загружено после неё, может быть
	// записано в кэш только если с тех пор не было инвалидации.
	epoch, cacheable := s.bracketEpoch(ctx, tournamentID)

	t, err := s.getTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	if _, err := activeMembershipIn(ctx, s.membershipRepo, t.ClubID, userID); err != nil {
		return nil, err
	}

	if cacheable {
		data, ok, err := s.cache.Get(ctx, tournamentID)
		if err != nil {
			s.logger.Warn("bracket cache read failed", zap.Int("tournament_id", tournamentID), zap.Error(err))
		} else if ok {
			var view BracketView
			if err := json.Unmarshal(data, &view); err == nil {
				return &view, nil
			}
			s.logger.Warn("discarding unreadable cached bracket", zap.Int("tournament_id", tournamentID))
		}
	}

	view, err := s.loadBracket(ctx, t)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if data, err := json.Marshal(view); err == nil {
			stored, err := s.cache.SetIfEpoch(ctx, tournamentID, epoch, data)
			if err != nil {
				s.logger.Warn("bracket cache write failed", zap.Int("tournament_id", tournamentID), zap.Error(err))
			} else if !stored {
				s.logger.Debug("bracket changed while loading, cache write dropped", zap.Int("tournament_id", tournamentID))
			}
		}
	}
	return view, nil
}

func (s *tournamentService) bracketEpoch(ctx context.Context, tournamentID int) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	epoch, err := s.cache.Epoch(ctx, tournamentID)
	if err != nil {
		s.logger.Warn("bracket cache epoch read failed", zap.Int("tournament_id", tournamentID), zap.Error(err))
		return 0, false
	}
	return epoch, true
}

func (s *tournamentService) loadBracket(ctx context.Context, t *models.Tournament) (*BracketView, error) {
	var (
		participants []*models.Participant
		groups       []*models.Group
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		participants, err = s.participantRepo.ListByTournament(gCtx, nil, t.ID)
		return err
	})
	g.Go(func() error {
		var err error
		groups, err = s.groupRepo.ListActive(gCtx, nil, t.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load bracket of tournament %d: %w", t.ID, err)
	}

	names := make(map[int]string, len(participants))
	view := &BracketView{
		Tournament:   t,
		Participants: make([]ParticipantView, 0, len(participants)),
		Groups:       make([]GroupView, len(groups)),
	}
	for _, p := range participants {
		pv := participantView(p)
		names[p.ID] = pv.Name
		view.Participants = append(view.Participants, pv)
		if p.Won {
			winner := pv
			view.Winner = &winner
		}
	}

	// Группы загружаются параллельно, каждая пишет только в свой слот.
	g, gCtx = errgroup.WithContext(ctx)
	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			gv, err := s.loadGroup(gCtx, group, names)
			if err != nil {
				return err
			}
			view.Groups[i] = *gv
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load groups of tournament %d: %w", t.ID, err)
	}
	return view, nil
}

func (s *tournamentService) loadGroup(ctx context.Context, group *models.Group, names map[int]string) (*GroupView, error) {
	groupings, err := s.groupingRepo.ListByGroup(ctx, nil, group.ID)
	if err != nil {
		return nil, err
	}
	matches, err := s.matchRepo.ListByGroup(ctx, nil, group.ID)
	if err != nil {
		return nil, err
	}

	byID := make(map[int]StandingView, len(groupings))
	gv := &GroupView{
		ID:        group.ID,
		Stage:     group.Stage.String(),
		Number:    group.Number,
		Capacity:  group.Capacity,
		Standings: make([]StandingView, 0, len(groupings)),
		Matches:   make([]MatchView, 0, len(matches)),
	}
	for _, gr := range brackets.Standings(groupings) {
		sv := StandingView{GroupingID: gr.ID, ParticipantID: gr.ParticipantID, Name: names[gr.ParticipantID], Points: gr.Points}
		byID[gr.ID] = sv
		gv.Standings = append(gv.Standings, sv)
	}
	for _, m := range matches {
		gv.Matches = append(gv.Matches, MatchView{
			ID:         m.ID,
			Player1:    byID[m.Player1ID],
			Player2:    byID[m.Player2ID],
			Conclusion: m.Conclusion,
		})
	}
	return gv, nil
}

func participantView(p *models.Participant) ParticipantView {
	pv := ParticipantView{
		ID:           p.ID,
		MembershipID: p.MembershipID,
		Eliminated:   p.Eliminated,
		Won:          p.Won,
	}
	if p.Membership != nil {
		pv.Name = p.Membership.FullName()
	} else {
		pv.Name = fmt.Sprintf("Participant %d", p.ID)
	}
	return pv
}
