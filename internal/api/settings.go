package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"standupbot/internal/store"
	"standupbot/internal/timewindow"
)

type settingsRequest struct {
	UserID          string  `json:"user_id"`
	WindowOpenUTC   *string `json:"standup_window_open,omitempty"`
	WindowCloseUTC  *string `json:"standup_window_close,omitempty"`
	DisconnectSlack bool    `json:"disconnect_slack,omitempty"`
}

// HandleTeamSettings updates a team's standup window and, optionally,
// disconnects its Slack integration. Owner-only; the role check is against
// the store, not anything the client claims.
func (a *API) HandleTeamSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	teamID := chi.URLParam(r, "teamID")

	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		a.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	member, err := a.store.Member(ctx, teamID, req.UserID)
	if err != nil {
		a.log.Error("settings: member lookup failed", zap.Error(err))
		a.writeError(w, http.StatusInternalServerError, "failed to load membership")
		return
	}
	if member == nil {
		a.writeError(w, http.StatusForbidden, "You are not a member of this team")
		return
	}
	if member.Role != store.RoleOwner {
		a.writeError(w, http.StatusForbidden, "Only the team owner can update settings")
		return
	}

	if req.WindowOpenUTC != nil || req.WindowCloseUTC != nil {
		openStr, closeStr, err := validateWindow(req.WindowOpenUTC, req.WindowCloseUTC)
		if err != nil {
			a.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.store.UpdateTeamWindow(ctx, teamID, openStr, closeStr); err != nil {
			a.log.Error("settings: window update failed", zap.String("team_id", teamID), zap.Error(err))
			a.writeError(w, http.StatusInternalServerError, "failed to save settings")
			return
		}
	}

	if req.DisconnectSlack {
		if err := a.linker.Disconnect(ctx, teamID); err != nil {
			a.log.Error("settings: slack disconnect failed", zap.String("team_id", teamID), zap.Error(err))
			a.writeError(w, http.StatusInternalServerError, "failed to disconnect Slack")
			return
		}
	}

	a.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// validateWindow parses and validates the requested window. Both bounds must
// be supplied together; empty strings clear the window.
func validateWindow(openReq, closeReq *string) (string, string, error) {
	var openStr, closeStr string
	if openReq != nil {
		openStr = *openReq
	}
	if closeReq != nil {
		closeStr = *closeReq
	}
	if openStr == "" && closeStr == "" {
		return "", "", nil
	}

	var w timewindow.Window
	if openStr != "" {
		open, err := timewindow.ParseTimeOfDay(openStr)
		if err != nil {
			return "", "", err
		}
		w.Open = &open
	}
	if closeStr != "" {
		closeAt, err := timewindow.ParseTimeOfDay(closeStr)
		if err != nil {
			return "", "", err
		}
		w.Close = &closeAt
	}
	if err := w.Validate(); err != nil {
		return "", "", err
	}
	return w.Open.String(), w.Close.String(), nil
}
