// Package events handles the inbound Slack webhook. Processing is a straight
// state machine: Received -> Verified -> Classified -> Resolved -> Parsed ->
// Persisted, and every branch after verification funnels into the same
// acknowledge exit. Slack only retries on non-2xx, so business-logic
// rejections must never surface as errors to the sender.
package events

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"standupbot/internal/slack"
	"standupbot/internal/store"
	"standupbot/internal/timewindow"
)

// TeamStore resolves the workspace an event came from.
type TeamStore interface {
	TeamBySlackTeamID(ctx context.Context, slackTeamID string) (*store.Team, error)
}

// LinkStore resolves Slack senders to internal users.
type LinkStore interface {
	LinkBySlackUserID(ctx context.Context, slackUserID string) (*store.SlackLink, error)
}

// LogStore persists parsed check-ins.
type LogStore interface {
	UpsertCheckIn(ctx context.Context, checkIn *store.DailyCheckIn) error
}

// Messenger sends the confirmation and help replies.
type Messenger interface {
	PostMessage(ctx context.Context, token, channel, text string) error
}

// TokenOpener unseals the team's stored bot token.
type TokenOpener interface {
	Open(sealed string) (string, error)
}

// Deduper reports whether an event id is seen for the first time. Slack
// redelivers events it thinks were dropped; replays must be acknowledged
// without re-running side effects.
type Deduper interface {
	FirstDelivery(ctx context.Context, eventID string) bool
}

// Handler is the webhook endpoint.
type Handler struct {
	signingSecret string
	teams         TeamStore
	links         LinkStore
	logs          LogStore
	gateway       Messenger
	tokens        TokenOpener
	dedupe        Deduper
	log           *zap.Logger
	now           func() time.Time
	verify        func(secret string, body []byte, timestamp, signature string) bool
}

// NewHandler wires a Handler from its collaborators.
func NewHandler(signingSecret string, teams TeamStore, links LinkStore, logs LogStore, gateway Messenger, tokens TokenOpener, dedupe Deduper, log *zap.Logger) *Handler {
	return &Handler{
		signingSecret: signingSecret,
		teams:         teams,
		links:         links,
		logs:          logs,
		gateway:       gateway,
		tokens:        tokens,
		dedupe:        dedupe,
		log:           log,
		now:           time.Now,
		verify:        slack.VerifySignature,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.unauthorized(w)
		return
	}

	// Received -> Verified: the signature gate runs on the raw body before
	// anything is parsed out of it, and a failure is indistinguishable from
	// the outside whether the timestamp or the digest was wrong.
	timestamp := r.Header.Get("X-Slack-Request-Timestamp")
	signature := r.Header.Get("X-Slack-Signature")
	if !h.verify(h.signingSecret, body, timestamp, signature) {
		h.unauthorized(w)
		return
	}

	env, err := slack.DecodeEnvelope(body)
	if err != nil {
		h.log.Warn("undecodable slack event", zap.Error(err))
		h.acknowledge(w)
		return
	}

	// Verified -> Classified.
	switch env.Kind() {
	case slack.KindURLVerification:
		h.writeJSON(w, map[string]string{"challenge": env.Challenge})
		return
	case slack.KindIgnored:
		h.acknowledge(w)
		return
	case slack.KindMessage:
		if env.EventID != "" && !h.dedupe.FirstDelivery(r.Context(), env.EventID) {
			h.log.Debug("duplicate event delivery", zap.String("event_id", env.EventID))
			h.acknowledge(w)
			return
		}
		h.handleMessage(r.Context(), env)
		h.acknowledge(w)
		return
	}
	h.acknowledge(w)
}

// handleMessage runs Classified -> Resolved -> Parsed -> Persisted. All
// failures terminate the event silently apart from logging; the webhook
// response is a 200 regardless.
func (h *Handler) handleMessage(ctx context.Context, env *slack.Envelope) {
	ev := env.Event

	team, err := h.teams.TeamBySlackTeamID(ctx, env.TeamID)
	if err != nil {
		h.log.Error("failed to resolve team", zap.String("slack_team_id", env.TeamID), zap.Error(err))
		return
	}
	if team == nil || team.SlackBotToken == "" {
		h.log.Warn("event from unconnected workspace", zap.String("slack_team_id", env.TeamID))
		return
	}

	token, err := h.tokens.Open(team.SlackBotToken)
	if err != nil {
		h.log.Error("failed to unseal bot token", zap.String("team_id", team.ID), zap.Error(err))
		return
	}

	// Resolved: an unknown sender gets no reply at all; the system has no
	// trustworthy way to talk to someone it cannot identify.
	link, err := h.links.LinkBySlackUserID(ctx, ev.User)
	if err != nil {
		h.log.Error("failed to resolve slack user", zap.String("slack_user_id", ev.User), zap.Error(err))
		return
	}
	if link == nil {
		h.log.Debug("message from unlinked slack user", zap.String("slack_user_id", ev.User))
		return
	}

	// Parsed: a malformed reply gets the format help, never silence, and
	// never a partial persist.
	parsed := slack.ParseCheckIn(ev.Text)
	if parsed == nil {
		if err := h.gateway.PostMessage(ctx, token, ev.Channel, slack.HelpMessage()); err != nil {
			h.log.Warn("failed to send help message", zap.String("user_id", link.UserID), zap.Error(err))
		}
		return
	}

	now := h.now()
	checkIn := &store.DailyCheckIn{
		UserID:       link.UserID,
		LogDate:      timewindow.TodayUTC(now),
		WorkedOn:     parsed.WorkedOn,
		WorkingNext:  parsed.WorkingNext,
		Blockers:     parsed.Blockers,
		Score:        parsed.Score,
		SubmittedVia: store.ViaSlack,
		SubmittedAt:  now.UTC(),
	}
	if err := h.logs.UpsertCheckIn(ctx, checkIn); err != nil {
		h.log.Error("failed to persist check-in", zap.String("user_id", link.UserID), zap.Error(err))
		return
	}

	h.log.Info("check-in recorded via slack",
		zap.String("user_id", link.UserID),
		zap.String("log_date", checkIn.LogDate),
		zap.Int("score", parsed.Score),
	)

	if err := h.gateway.PostMessage(ctx, token, ev.Channel, slack.ConfirmationMessage(parsed.Score)); err != nil {
		h.log.Warn("failed to send confirmation", zap.String("user_id", link.UserID), zap.Error(err))
	}
}

func (h *Handler) unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}

func (h *Handler) acknowledge(w http.ResponseWriter) {
	h.writeJSON(w, map[string]bool{"ok": true})
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
