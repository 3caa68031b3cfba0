package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/chess-clubs/models"
	"github.com/Dosada05/chess-clubs/services"
	"go.uber.org/zap"
)

type BracketHandler struct {
	bracketService    services.BracketService
	tournamentService services.TournamentService
	logger            *zap.Logger
}

func NewBracketHandler(bs services.BracketService, ts services.TournamentService, logger *zap.Logger) *BracketHandler {
	return &BracketHandler{bracketService: bs, tournamentService: ts, logger: logger}
}

type resolveMatchInput struct {
	Conclusion *models.Conclusion `json:"conclusion"`
}

// actor resolves the caller's membership in the tournament's club, writing
// the error response itself when that fails.
func (h *BracketHandler) actor(w http.ResponseWriter, r *http.Request, tournamentID int) (*models.Membership, bool) {
	userID, ok := currentUser(w, r)
	if !ok {
		return nil, false
	}
	actor, err := h.tournamentService.ActorFor(r.Context(), userID, tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return nil, false
	}
	return actor, true
}

// AdvanceRound обрабатывает POST /tournaments/{tournamentID}/rounds.
// Невыполненное предусловие не ошибка: ответ 200 с outcome "noop".
func (h *BracketHandler) AdvanceRound(w http.ResponseWriter, r *http.Request) {
	ids, ok := urlIDs(w, r, "tournamentID")
	if !ok {
		return
	}
	actor, ok := h.actor(w, r, ids[0])
	if !ok {
		return
	}

	result, err := h.bracketService.AdvanceRound(r.Context(), ids[0], actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"round": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ResolveMatch обрабатывает POST /tournaments/{tournamentID}/matches/{matchID}/conclusion
func (h *BracketHandler) ResolveMatch(w http.ResponseWriter, r *http.Request) {
	ids, ok := urlIDs(w, r, "tournamentID", "matchID")
	if !ok {
		return
	}

	var input resolveMatchInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Conclusion == nil {
		badRequestResponse(w, r, errors.New("conclusion is required"))
		return
	}

	actor, ok := h.actor(w, r, ids[0])
	if !ok {
		return
	}

	resolution, err := h.bracketService.ResolveMatch(r.Context(), ids[0], ids[1], *input.Conclusion, actor)
	if err != nil {
		if resolution == nil {
			mapServiceErrorToHTTP(w, r, err)
			return
		}
		// Результат матча уже сохранён, не удалось только продвинуть раунд.
		h.logger.Error("round advancement after match resolution failed",
			zap.Int("tournament_id", ids[0]), zap.Int("match_id", ids[1]), zap.Error(err))
		resp := jsonResponse{"match": resolution.Match, "round_error": "the round could not be advanced, retry via POST /rounds"}
		if err := writeJSON(w, http.StatusOK, resp, nil); err != nil {
			serverErrorResponse(w, r, err)
		}
		return
	}

	if err := writeJSON(w, http.StatusOK, resolution, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
