package api

import (
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"standupbot/internal/slack"
)

// HandleSlackInstall redirects a team owner to Slack's consent page. The
// team id rides along in the OAuth state parameter so the callback knows
// which team to attach the workspace to.
func (a *API) HandleSlackInstall(w http.ResponseWriter, r *http.Request) {
	teamID := r.URL.Query().Get("team_id")
	if teamID == "" {
		a.writeError(w, http.StatusBadRequest, "team_id is required")
		return
	}

	q := url.Values{
		"client_id":    {a.cfg.SlackClientID},
		"scope":        {slackOAuthScope},
		"redirect_uri": {a.cfg.BaseURL + slackCallbackPath},
		"state":        {teamID},
	}
	http.Redirect(w, r, slackOAuthAuthorizeURL+"?"+q.Encode(), http.StatusFound)
}

// HandleSlackOAuthCallback exchanges the authorization code, seals the bot
// token and stores the workspace connection on the team.
func (a *API) HandleSlackOAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	teamID := q.Get("state")

	if errCode := q.Get("error"); errCode != "" {
		a.log.Info("slack oauth denied", zap.String("team_id", teamID), zap.String("error", errCode))
		a.writeError(w, http.StatusBadRequest, "Slack authorization was denied")
		return
	}

	code := q.Get("code")
	if code == "" || teamID == "" {
		a.writeError(w, http.StatusBadRequest, "missing authorization code or state")
		return
	}

	team, err := a.store.Team(ctx, teamID)
	if err != nil {
		a.log.Error("oauth callback: team lookup failed", zap.Error(err))
		a.writeError(w, http.StatusInternalServerError, "failed to load team")
		return
	}
	if team == nil {
		a.writeError(w, http.StatusNotFound, "team not found")
		return
	}

	oauth, err := a.gateway.ExchangeOAuthCode(ctx, a.cfg.SlackClientID, a.cfg.SlackClientSecret, code, a.cfg.BaseURL+slackCallbackPath)
	if err != nil {
		a.log.Error("slack oauth exchange failed", zap.String("team_id", teamID), zap.Error(err))
		a.writeError(w, http.StatusBadGateway, "Slack OAuth exchange failed")
		return
	}

	sealed, err := a.sealer.Seal(oauth.AccessToken)
	if err != nil {
		a.log.Error("failed to seal bot token", zap.Error(err))
		a.writeError(w, http.StatusInternalServerError, "failed to store Slack credentials")
		return
	}

	if err := a.store.ConnectSlack(ctx, teamID, oauth.Team.ID, sealed); err != nil {
		a.log.Error("failed to save slack connection", zap.String("team_id", teamID), zap.Error(err))
		a.writeError(w, http.StatusInternalServerError, "failed to store Slack credentials")
		return
	}

	// Best effort: greet the installing admin so they know it worked.
	if oauth.AuthedUser.ID != "" {
		welcome := slack.WelcomeMessage(team.Name)
		if err := a.gateway.PostMessage(ctx, oauth.AccessToken, oauth.AuthedUser.ID, welcome); err != nil {
			a.log.Warn("failed to send welcome message", zap.Error(err))
		}
	}

	a.log.Info("slack workspace connected",
		zap.String("team_id", teamID),
		zap.String("slack_team_id", oauth.Team.ID),
	)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Slack connected for %s. You can close this tab.", team.Name)
}
