package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Dosada05/chess-clubs/services"
	"github.com/Dosada05/chess-clubs/storage"
)

type ClubHandler struct {
	clubService services.ClubService
}

func NewClubHandler(clubService services.ClubService) *ClubHandler {
	return &ClubHandler{clubService: clubService}
}

// CreateClub обрабатывает POST /clubs
func (h *ClubHandler) CreateClub(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var input services.CreateClubInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	club, owner, err := h.clubService.CreateClub(r.Context(), userID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"club": club, "membership": owner}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ClubHandler) ListClubs(w http.ResponseWriter, r *http.Request) {
	clubs, err := h.clubService.ListClubs(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"clubs": clubs}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ClubHandler) GetClub(w http.ResponseWriter, r *http.Request) {
	clubID, err := getIDFromURL(r, "clubID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	club, err := h.clubService.GetClub(r.Context(), clubID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"club": club}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ClubHandler) DeleteClub(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	ids, ok := urlIDs(w, r, "clubID")
	if !ok {
		return
	}

	if err := h.clubService.DeleteClub(r.Context(), userID, ids[0]); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadLogo принимает изображение в теле запроса; тип берётся из Content-Type.
func (h *ClubHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	ids, ok := urlIDs(w, r, "clubID")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxLogoSize)
	club, err := h.clubService.UploadLogo(r.Context(), userID, ids[0], r.Header.Get("Content-Type"), r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorResponse(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("logo must not be larger than %d bytes", tooLarge.Limit))
			return
		}
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"club": club}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ClubHandler) Apply(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	ids, ok := urlIDs(w, r, "clubID")
	if !ok {
		return
	}

	var profile services.MembershipProfile
	if err := readJSON(w, r, &profile); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	membership, err := h.clubService.Apply(r.Context(), userID, ids[0], profile)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"membership": membership}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ClubHandler) DeclineApplication(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	ids, ok := urlIDs(w, r, "clubID", "membershipID")
	if !ok {
		return
	}

	if err := h.clubService.DeclineApplication(r.Context(), userID, ids[0], ids[1]); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ClubHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	ids, ok := urlIDs(w, r, "clubID")
	if !ok {
		return
	}

	members, err := h.clubService.ListMembers(r.Context(), userID, ids[0])
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"members": members}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ClubHandler) ApproveApplication(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	ids, ok := urlIDs(w, r, "clubID", "membershipID")
	if !ok {
		return
	}

	membership, err := h.clubService.ApproveApplication(r.Context(), userID, ids[0], ids[1])
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"membership": membership}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ClubHandler) PromoteToOfficer(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	ids, ok := urlIDs(w, r, "clubID", "membershipID")
	if !ok {
		return
	}

	membership, err := h.clubService.PromoteToOfficer(r.Context(), userID, ids[0], ids[1])
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"membership": membership}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ClubHandler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	ids, ok := urlIDs(w, r, "clubID", "membershipID")
	if !ok {
		return
	}

	if err := h.clubService.TransferOwnership(r.Context(), userID, ids[0], ids[1]); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
