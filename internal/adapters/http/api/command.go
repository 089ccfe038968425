package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MC-Prison/PrisonRanks/internal/command"
	"github.com/google/uuid"
)

// CommandHandler runs command-table lines over HTTP.
type CommandHandler struct {
	commands CommandRunner
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(commands CommandRunner) *CommandHandler {
	return &CommandHandler{commands: commands}
}

// commandRequest runs as the console unless a player uid is given. A player
// without explicit permissions gets command.DefaultPlayerPermissions.
type commandRequest struct {
	UID         string   `json:"uid"`
	Name        string   `json:"name"`
	Line        string   `json:"line"`
	Permissions []string `json:"permissions"`
}

// HandleCommand handles POST /command.
func (h *CommandHandler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if strings.TrimSpace(req.Line) == "" {
		writeFailure(w, fmt.Errorf("%w: missing line", ErrBadRequest))
		return
	}
	sender := command.Console
	if req.UID != "" {
		uid, err := uuid.Parse(req.UID)
		if err != nil {
			writeFailure(w, fmt.Errorf("%w: %w", ErrInvalidUID, err))
			return
		}
		perms := req.Permissions
		if perms == nil {
			perms = command.DefaultPlayerPermissions
		}
		sender = command.Sender{UID: uid, Name: req.Name, Permissions: perms}
	}

	reply, err := h.commands.Execute(r.Context(), sender, req.Line)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, reply)
	case errors.Is(err, command.ErrUnknownCommand):
		writeError(w, http.StatusNotFound, "unknown_command", err)
	case errors.Is(err, command.ErrUsage), errors.Is(err, command.ErrPlayerOnly):
		writeError(w, http.StatusBadRequest, "usage", err)
	case errors.Is(err, command.ErrPermission):
		writeError(w, http.StatusForbidden, "forbidden", err)
	default:
		writeFailure(w, err)
	}
}
