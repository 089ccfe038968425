package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MC-Prison/PrisonRanks/internal/domain/rankup"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlayersHandler serves player records, balances and rank-ups.
type PlayersHandler struct {
	deps Dependencies
}

// NewPlayersHandler creates a new players handler.
func NewPlayersHandler(deps Dependencies) *PlayersHandler {
	return &PlayersHandler{deps: deps}
}

type playerResponse struct {
	UID     uuid.UUID         `json:"uid"`
	Ranks   map[string]string `json:"ranks"`
	Balance decimal.Decimal   `json:"balance"`
}

type joinResponse struct {
	UID     uuid.UUID `json:"uid"`
	Created bool      `json:"created"`
}

type depositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type balanceResponse struct {
	UID     uuid.UUID       `json:"uid"`
	Balance decimal.Decimal `json:"balance"`
}

type rankUpRequest struct {
	RequestID string `json:"request_id"`
	Ladder    string `json:"ladder"`
	Name      string `json:"name"`
}

type rankUpResponse struct {
	Status   rankup.Status   `json:"status"`
	Ladder   string          `json:"ladder"`
	Rank     string          `json:"rank,omitempty"`
	Previous string          `json:"previous,omitempty"`
	Cost     decimal.Decimal `json:"cost"`
	Balance  decimal.Decimal `json:"balance"`
	Refunded bool            `json:"refunded,omitempty"`
	Error    string          `json:"error,omitempty"`

	CommandsDropped int    `json:"commands_dropped,omitempty"`
	DispatchError   string `json:"dispatch_error,omitempty"`
}

// HandleGet handles GET /players/{uid}.
func (h *PlayersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	view, err := h.deps.Player(r.Context(), uid)
	if err != nil {
		writeFailure(w, err)
		return
	}
	resp := playerResponse{UID: view.UID, Ranks: make(map[string]string, len(view.Ranks)), Balance: view.Balance}
	for ladder, rk := range view.Ranks {
		resp.Ranks[ladder] = rk.Name
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleJoin handles POST /players/{uid}/join.
func (h *PlayersHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	_, created, err := h.deps.Join(r.Context(), uid)
	if err != nil {
		writeFailure(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, joinResponse{UID: uid, Created: created})
}

// HandleDeposit handles POST /players/{uid}/deposit.
func (h *PlayersHandler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	var req depositRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if !req.Amount.IsPositive() {
		writeFailure(w, fmt.Errorf("%w: amount must be positive", ErrBadRequest))
		return
	}
	bal, err := h.deps.Deposit(r.Context(), uid, req.Amount)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{UID: uid, Balance: bal})
}

// HandleRankUp handles POST /players/{uid}/rankup. The body is optional;
// without it the player ranks up on the default ladder.
func (h *PlayersHandler) HandleRankUp(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	var req rankUpRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeFailure(w, err)
		return
	}
	res, err := h.deps.RankUp(r.Context(), req.RequestID, rankup.Subject{UID: uid, Name: req.Name}, req.Ladder)
	if err != nil {
		writeFailure(w, err)
		return
	}
	resp := rankUpResponse{
		Status:   res.Status,
		Ladder:   res.Ladder,
		Cost:     res.Cost,
		Balance:  res.Balance,
		Refunded: res.Refunded,
	}
	if res.Rank != nil {
		resp.Rank = res.Rank.Name
	}
	if res.Previous != nil {
		resp.Previous = res.Previous.Name
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	if res.DispatchErr != nil {
		resp.CommandsDropped = res.CommandsDropped
		resp.DispatchError = res.DispatchErr.Error()
	}
	status := http.StatusOK
	if res.Status == rankup.Failure {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, resp)
}
