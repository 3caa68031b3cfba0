package handlers

import (
	"context"
	"net/http"

	"github.com/Dosada05/chess-clubs/models"
	"github.com/Dosada05/chess-clubs/services"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
}

func NewTournamentHandler(ts services.TournamentService) *TournamentHandler {
	return &TournamentHandler{tournamentService: ts}
}

// CreateTournament обрабатывает POST /clubs/{clubID}/tournaments
func (h *TournamentHandler) CreateTournament(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	ids, ok := urlIDs(w, r, "clubID")
	if !ok {
		return
	}

	var input services.CreateTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.CreateTournament(r.Context(), userID, ids[0], input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type clubListing func(ctx context.Context, userID, clubID int) ([]*models.Tournament, error)

func (h *TournamentHandler) list(w http.ResponseWriter, r *http.Request, fetch clubListing) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	ids, ok := urlIDs(w, r, "clubID")
	if !ok {
		return
	}

	tournaments, err := fetch(r.Context(), userID, ids[0])
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) ListClubTournaments(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.tournamentService.ListClubTournaments)
}

func (h *TournamentHandler) ListJoinable(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.tournamentService.ListJoinable)
}

func (h *TournamentHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.tournamentService.ListMine)
}

// GetBracket обрабатывает GET /tournaments/{tournamentID}
func (h *TournamentHandler) GetBracket(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	ids, ok := urlIDs(w, r, "tournamentID")
	if !ok {
		return
	}

	view, err := h.tournamentService.GetBracket(r.Context(), userID, ids[0])
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, view, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	ids, ok := urlIDs(w, r, "tournamentID")
	if !ok {
		return
	}

	participant, err := h.tournamentService.Join(r.Context(), userID, ids[0])
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"participant": participant}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	ids, ok := urlIDs(w, r, "tournamentID")
	if !ok {
		return
	}

	if err := h.tournamentService.Leave(r.Context(), userID, ids[0]); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TournamentHandler) ListCoOrganisers(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	ids, ok := urlIDs(w, r, "tournamentID")
	if !ok {
		return
	}

	members, err := h.tournamentService.ListCoOrganisers(r.Context(), userID, ids[0])
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"co_organisers": members}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) AddCoOrganiser(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	ids, ok := urlIDs(w, r, "tournamentID", "membershipID")
	if !ok {
		return
	}

	if err := h.tournamentService.AddCoOrganiser(r.Context(), userID, ids[0], ids[1]); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TournamentHandler) RemoveCoOrganiser(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	ids, ok := urlIDs(w, r, "tournamentID", "membershipID")
	if !ok {
		return
	}

	if err := h.tournamentService.RemoveCoOrganiser(r.Context(), userID, ids[0], ids[1]); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
