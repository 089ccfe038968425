// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	service "github.com/MC-Prison/PrisonRanks/internal/app"
	"github.com/MC-Prison/PrisonRanks/internal/adapters/economy"
	"github.com/MC-Prison/PrisonRanks/internal/command"
	"github.com/MC-Prison/PrisonRanks/internal/domain/model"
	"github.com/MC-Prison/PrisonRanks/internal/domain/registry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	command.Backend

	Ranks() ([]*model.Rank, error)
	Join(ctx context.Context, uid uuid.UUID) (*model.Player, bool, error)
	Deposit(ctx context.Context, uid uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	Player(ctx context.Context, uid uuid.UUID) (service.PlayerView, error)
}

// CommandRunner executes command-table lines.
type CommandRunner interface {
	Execute(ctx context.Context, sender command.Sender, line string) (command.Reply, error)
}

// Server wires HTTP routes for the ranks API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	ranksHandler   *RanksHandler
	laddersHandler *LaddersHandler
	playersHandler *PlayersHandler
	commandHandler *CommandHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, commands CommandRunner) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		ranksHandler:   NewRanksHandler(deps),
		laddersHandler: NewLaddersHandler(deps),
		playersHandler: NewPlayersHandler(deps),
		commandHandler: NewCommandHandler(commands),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	route("GET /stats", "stats", s.statsHandler.HandleStats)

	route("GET /ranks", "ranks", s.ranksHandler.HandleList)
	route("POST /ranks", "ranks", s.ranksHandler.HandleCreate)
	route("GET /ranks/{name}", "rank", s.ranksHandler.HandleGet)
	route("DELETE /ranks/{name}", "rank", s.ranksHandler.HandleDelete)
	route("POST /ranks/{name}/commands", "rank_commands", s.ranksHandler.HandleAddCommand)
	route("DELETE /ranks/{name}/commands", "rank_commands", s.ranksHandler.HandleRemoveCommand)

	route("GET /ladders", "ladders", s.laddersHandler.HandleList)
	route("POST /ladders", "ladders", s.laddersHandler.HandleCreate)
	route("GET /ladders/{name}", "ladder", s.laddersHandler.HandleGet)
	route("DELETE /ladders/{name}", "ladder", s.laddersHandler.HandleDelete)
	route("POST /ladders/{name}/ranks", "ladder_ranks", s.laddersHandler.HandleAddRank)
	route("DELETE /ladders/{name}/ranks/{rank}", "ladder_ranks", s.laddersHandler.HandleRemoveRank)

	route("GET /players/{uid}", "player", s.playersHandler.HandleGet)
	route("POST /players/{uid}/join", "join", s.playersHandler.HandleJoin)
	route("POST /players/{uid}/deposit", "deposit", s.playersHandler.HandleDeposit)
	route("POST /players/{uid}/rankup", "rankup", s.playersHandler.HandleRankUp)

	route("POST /command", "command", s.commandHandler.HandleCommand)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps domain errors onto status codes.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, registry.ErrDuplicateName),
		errors.Is(err, registry.ErrDuplicateRank),
		errors.Is(err, registry.ErrRankNotOnLadder),
		errors.Is(err, service.ErrLastDefaultRank),
		errors.Is(err, service.ErrDefaultLadder),
		errors.Is(err, service.ErrDuplicateRequest),
		errors.Is(err, service.ErrNoSuchCommand):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrInvalidUID),
		errors.Is(err, model.ErrNegativeCost),
		errors.Is(err, model.ErrEmptyName),
		errors.Is(err, model.ErrInvalidPosition),
		errors.Is(err, economy.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

func pathUID(r *http.Request) (uuid.UUID, error) {
	uid, err := uuid.Parse(r.PathValue("uid"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidUID, err)
	}
	return uid, nil
}
