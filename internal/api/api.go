// Package api holds the service's direct HTTP surface: OAuth connect,
// per-user Slack linking, owner-only team settings and the dispatch trigger.
// Unlike the webhook path, these endpoints surface typed failures to their
// caller.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"standupbot/config"
	"standupbot/internal/notify"
	"standupbot/internal/slack"
	"standupbot/internal/store"
)

const (
	slackOAuthAuthorizeURL = "https://slack.com/oauth/v2/authorize"
	slackOAuthScope        = "chat:write,im:write,users:read"
	slackCallbackPath      = "/slack/oauth/callback"
)

// Store is the slice of the store these handlers touch.
type Store interface {
	Team(ctx context.Context, teamID string) (*store.Team, error)
	Member(ctx context.Context, teamID, userID string) (*store.Membership, error)
	ConnectSlack(ctx context.Context, teamID, slackTeamID, sealedToken string) error
	UpdateTeamWindow(ctx context.Context, teamID, openUTC, closeUTC string) error
}

// Linker performs identity linking and the disconnect cascade.
type Linker interface {
	Link(ctx context.Context, teamID, userID, slackUserID string) (string, error)
	Disconnect(ctx context.Context, teamID string) error
}

// SlackGateway covers the Slack calls made directly from handlers.
type SlackGateway interface {
	ExchangeOAuthCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*slack.OAuthResponse, error)
	PostMessage(ctx context.Context, token, channel, text string) error
}

// Dispatcher runs the reminder batch on demand.
type Dispatcher interface {
	RunDaily(ctx context.Context, now time.Time) notify.RunResult
}

// TokenSealer seals bot tokens before they are stored.
type TokenSealer interface {
	Seal(plain string) (string, error)
}

// API bundles the handler dependencies.
type API struct {
	cfg        *config.Config
	store      Store
	linker     Linker
	gateway    SlackGateway
	dispatcher Dispatcher
	sealer     TokenSealer
	log        *zap.Logger
}

// New wires the handler set.
func New(cfg *config.Config, st Store, linker Linker, gateway SlackGateway, dispatcher Dispatcher, sealer TokenSealer, log *zap.Logger) *API {
	return &API{
		cfg:        cfg,
		store:      st,
		linker:     linker,
		gateway:    gateway,
		dispatcher: dispatcher,
		sealer:     sealer,
		log:        log,
	}
}

// HandleHealth reports liveness.
func (a *API) HandleHealth(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleDispatchNow runs the daily reminder batch and reports its counts.
// This is the entry point an external scheduler hits; the in-process cron
// calls the same dispatcher.
func (a *API) HandleDispatchNow(w http.ResponseWriter, r *http.Request) {
	result := a.dispatcher.RunDaily(r.Context(), time.Now().UTC())
	a.writeJSON(w, http.StatusOK, result)
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (a *API) writeError(w http.ResponseWriter, status int, message string) {
	a.writeJSON(w, status, map[string]string{"error": message})
}
