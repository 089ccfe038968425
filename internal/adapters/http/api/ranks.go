package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/MC-Prison/PrisonRanks/internal/domain/model"
	"github.com/shopspring/decimal"
)

// RanksHandler serves the rank registry.
type RanksHandler struct {
	deps Dependencies
}

// NewRanksHandler creates a new ranks handler.
func NewRanksHandler(deps Dependencies) *RanksHandler {
	return &RanksHandler{deps: deps}
}

type createRankRequest struct {
	Name   string          `json:"name"`
	Cost   decimal.Decimal `json:"cost"`
	Ladder string          `json:"ladder"`
	Tag    string          `json:"tag"`
}

type createRankResponse struct {
	Rank     *model.Rank `json:"rank"`
	Ladder   string      `json:"ladder"`
	Position int         `json:"position"`
}

type rankInfoResponse struct {
	Rank    *model.Rank `json:"rank"`
	Ladders []string    `json:"ladders"`
	Players int         `json:"players"`
}

type deleteRankResponse struct {
	Rank    string   `json:"rank"`
	Ladders []string `json:"ladders"`
	Players int      `json:"players"`
}

type rankCommandRequest struct {
	Command string `json:"command"`
}

// HandleList handles GET /ranks.
func (h *RanksHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	ranks, err := h.deps.Ranks()
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ranks)
}

// HandleCreate handles POST /ranks.
func (h *RanksHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRankRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeFailure(w, fmt.Errorf("%w: missing name", ErrBadRequest))
		return
	}
	if req.Ladder == "" {
		req.Ladder = model.DefaultLadder
	}
	rk, pos, err := h.deps.CreateRank(r.Context(), req.Name, req.Cost, req.Ladder, req.Tag)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createRankResponse{Rank: rk, Ladder: model.NormalizeLadderName(req.Ladder), Position: pos})
}

// HandleGet handles GET /ranks/{name}.
func (h *RanksHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	info, err := h.deps.DescribeRank(r.PathValue("name"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rankInfoResponse{Rank: info.Rank, Ladders: info.Ladders, Players: info.Players})
}

// HandleDelete handles DELETE /ranks/{name}.
func (h *RanksHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	removal, err := h.deps.DeleteRank(r.Context(), r.PathValue("name"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	ladders := removal.Ladders
	if ladders == nil {
		ladders = []string{}
	}
	writeJSON(w, http.StatusOK, deleteRankResponse{Rank: removal.Rank.Name, Ladders: ladders, Players: removal.Players})
}

// HandleAddCommand handles POST /ranks/{name}/commands.
func (h *RanksHandler) HandleAddCommand(w http.ResponseWriter, r *http.Request) {
	var req rankCommandRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		writeFailure(w, fmt.Errorf("%w: missing command", ErrBadRequest))
		return
	}
	added, err := h.deps.AddRankCommand(r.Context(), r.PathValue("name"), req.Command)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rankCommandRequest{Command: added})
}

// HandleRemoveCommand handles DELETE /ranks/{name}/commands.
func (h *RanksHandler) HandleRemoveCommand(w http.ResponseWriter, r *http.Request) {
	var req rankCommandRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if err := h.deps.RemoveRankCommand(r.Context(), r.PathValue("name"), req.Command); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
