package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"standupbot/internal/linkage"
)

type linkRequest struct {
	TeamID      string `json:"team_id"`
	UserID      string `json:"user_id"`
	SlackUserID string `json:"slack_user_id"`
}

// HandleLinkUser links an internal user to their Slack identity and opens
// their DM channel. Precondition failures come back as typed rejections with
// a specific reason.
func (a *API) HandleLinkUser(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TeamID == "" || req.UserID == "" || req.SlackUserID == "" {
		a.writeError(w, http.StatusBadRequest, "team_id, user_id and slack_user_id are required")
		return
	}

	channel, err := a.linker.Link(r.Context(), req.TeamID, req.UserID, req.SlackUserID)
	switch {
	case errors.Is(err, linkage.ErrNotTeamMember):
		a.writeError(w, http.StatusForbidden, "You are not a member of this team")
		return
	case errors.Is(err, linkage.ErrTeamNotFound):
		a.writeError(w, http.StatusNotFound, "Team not found")
		return
	case errors.Is(err, linkage.ErrSlackNotConfigured):
		a.writeError(w, http.StatusBadRequest, "Team is not connected to Slack")
		return
	case err != nil:
		a.log.Error("link user failed",
			zap.String("team_id", req.TeamID),
			zap.String("user_id", req.UserID),
			zap.Error(err))
		a.writeError(w, http.StatusInternalServerError, "Failed to link Slack account")
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"ok":                  true,
		"slack_dm_channel_id": channel,
	})
}
