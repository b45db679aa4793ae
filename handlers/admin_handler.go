package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/round-matches/models"
	"github.com/Dosada05/round-matches/services"
)

type AdminHandler struct {
	userService   services.UserService
	matchService  services.MatchService
	roundService  services.RoundService
	exportService services.ExportService
}

func NewAdminHandler(
	us services.UserService,
	ms services.MatchService,
	rs services.RoundService,
	es services.ExportService,
) *AdminHandler {
	return &AdminHandler{
		userService:   us,
		matchService:  ms,
		roundService:  rs,
		exportService: es,
	}
}

type matchPlayersInput struct {
	Round     int   `json:"round"`
	PlayerIDs []int `json:"player_ids"`
}

type bulkCreateInput struct {
	Matches []models.BulkMatchInput `json:"matches"`
}

type syncRoundInput struct {
	Matches []models.Pairing `json:"matches"`
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListAll(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"users": users}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.userService.ListPlayers(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"players": players}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var input matchPlayersInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	id, err := h.matchService.CreateMatch(r.Context(), input.Round, input.PlayerIDs)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"match_id": id}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) UpdateMatchPlayers(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input matchPlayersInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.matchService.UpdateMatchPlayers(r.Context(), matchID, input.PlayerIDs); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) DeleteMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.matchService.DeleteMatch(r.Context(), matchID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkCreateMatches отвечает 200 даже при частичном успехе: ошибки в теле.
func (h *AdminHandler) BulkCreateMatches(w http.ResponseWriter, r *http.Request) {
	var input bulkCreateInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if len(input.Matches) == 0 {
		badRequestResponse(w, r, errors.New("matches must not be empty"))
		return
	}

	res, err := h.roundService.CreateMatchesAsAdmin(r.Context(), input.Matches)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, res, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) AssignedPlayers(w http.ResponseWriter, r *http.Request) {
	round, err := getIDFromURL(r, "round")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	ids, err := h.matchService.AssignedPlayerIDs(r.Context(), round)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"round": round, "player_ids": ids}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) SyncRound(w http.ResponseWriter, r *http.Request) {
	round, err := getIDFromURL(r, "round")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input syncRoundInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	ids, err := h.roundService.SyncMatches(r.Context(), round, input.Matches)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"round": round, "match_ids": ids}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) ExportRound(w http.ResponseWriter, r *http.Request) {
	round, err := getIDFromURL(r, "round")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	res, err := h.exportService.ExportRound(r.Context(), round)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"export": res}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
