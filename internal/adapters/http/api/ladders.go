package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/MC-Prison/PrisonRanks/internal/domain/model"
)

// LaddersHandler serves the ladder registry.
type LaddersHandler struct {
	deps Dependencies
}

// NewLaddersHandler creates a new ladders handler.
func NewLaddersHandler(deps Dependencies) *LaddersHandler {
	return &LaddersHandler{deps: deps}
}

type createLadderRequest struct {
	Name string `json:"name"`
}

type addLadderRankRequest struct {
	Rank     string `json:"rank"`
	Position *int   `json:"position,omitempty"`
}

type ladderStep struct {
	Position int         `json:"position"`
	Rank     *model.Rank `json:"rank"`
}

type ladderResponse struct {
	ID    int          `json:"id"`
	Name  string       `json:"name"`
	Ranks []ladderStep `json:"ranks"`
}

// HandleList handles GET /ladders.
func (h *LaddersHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	ladders, err := h.deps.Ladders()
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ladders)
}

// HandleCreate handles POST /ladders.
func (h *LaddersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createLadderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeFailure(w, fmt.Errorf("%w: missing name", ErrBadRequest))
		return
	}
	ld, err := h.deps.CreateLadder(r.Context(), req.Name)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ld)
}

// HandleGet handles GET /ladders/{name} with ranks resolved in position order.
func (h *LaddersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ld, err := h.deps.Ladder(r.PathValue("name"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	steps, err := h.deps.LadderSteps(ld.Name)
	if err != nil {
		writeFailure(w, err)
		return
	}
	resp := ladderResponse{ID: ld.ID, Name: ld.Name, Ranks: make([]ladderStep, 0, len(steps))}
	for _, s := range steps {
		resp.Ranks = append(resp.Ranks, ladderStep{Position: s.Position, Rank: s.Rank})
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleDelete handles DELETE /ladders/{name}.
func (h *LaddersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteLadder(r.Context(), r.PathValue("name")); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddRank handles POST /ladders/{name}/ranks.
func (h *LaddersHandler) HandleAddRank(w http.ResponseWriter, r *http.Request) {
	var req addLadderRankRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	pos, err := h.deps.LadderAddRank(r.Context(), r.PathValue("name"), req.Rank, req.Position)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, addLadderRankRequest{Rank: req.Rank, Position: &pos})
}

// HandleRemoveRank handles DELETE /ladders/{name}/ranks/{rank}.
func (h *LaddersHandler) HandleRemoveRank(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.LadderRemoveRank(r.Context(), r.PathValue("name"), r.PathValue("rank")); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
