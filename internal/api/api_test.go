package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"standupbot/config"
	"standupbot/internal/linkage"
	"standupbot/internal/notify"
	"standupbot/internal/slack"
	"standupbot/internal/store"
)

type fakeStore struct {
	team        *store.Team
	members     map[string]*store.Membership
	windowOpen  string
	windowClose string
	connected   bool
}

func (f *fakeStore) Team(ctx context.Context, teamID string) (*store.Team, error) {
	if f.team != nil && f.team.ID == teamID {
		return f.team, nil
	}
	return nil, nil
}

func (f *fakeStore) Member(ctx context.Context, teamID, userID string) (*store.Membership, error) {
	return f.members[userID], nil
}

func (f *fakeStore) ConnectSlack(ctx context.Context, teamID, slackTeamID, sealedToken string) error {
	f.connected = true
	return nil
}

func (f *fakeStore) UpdateTeamWindow(ctx context.Context, teamID, openUTC, closeUTC string) error {
	f.windowOpen, f.windowClose = openUTC, closeUTC
	return nil
}

type fakeLinker struct {
	channel      string
	err          error
	disconnected bool
}

func (f *fakeLinker) Link(ctx context.Context, teamID, userID, slackUserID string) (string, error) {
	return f.channel, f.err
}

func (f *fakeLinker) Disconnect(ctx context.Context, teamID string) error {
	f.disconnected = true
	return nil
}

type fakeGateway struct {
	oauth    *slack.OAuthResponse
	messages []string
}

func (f *fakeGateway) ExchangeOAuthCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*slack.OAuthResponse, error) {
	return f.oauth, nil
}

func (f *fakeGateway) PostMessage(ctx context.Context, token, channel, text string) error {
	f.messages = append(f.messages, text)
	return nil
}

type fakeDispatcher struct {
	result notify.RunResult
}

func (f *fakeDispatcher) RunDaily(ctx context.Context, now time.Time) notify.RunResult {
	return f.result
}

type plainSealer struct{}

func (plainSealer) Seal(plain string) (string, error) { return "sealed:" + plain, nil }

type fixture struct {
	api     *API
	store   *fakeStore
	linker  *fakeLinker
	gateway *fakeGateway
}

func newFixture() *fixture {
	st := &fakeStore{
		team: &store.Team{ID: "team-1", Name: "Platform"},
		members: map[string]*store.Membership{
			"owner-1":  {TeamID: "team-1", UserID: "owner-1", Role: store.RoleOwner},
			"member-1": {TeamID: "team-1", UserID: "member-1", Role: store.RoleMember},
		},
	}
	linker := &fakeLinker{channel: "D1"}
	gateway := &fakeGateway{oauth: &slack.OAuthResponse{OK: true, AccessToken: "xoxb-1"}}
	gateway.oauth.Team.ID = "T1"
	gateway.oauth.AuthedUser.ID = "U-admin"

	cfg := &config.Config{BaseURL: "https://app.example.test", SlackClientID: "cid", SlackClientSecret: "cs"}
	return &fixture{
		api:     New(cfg, st, linker, gateway, &fakeDispatcher{result: notify.RunResult{TeamsNotified: 2, Sent: 3}}, plainSealer{}, zap.NewNop()),
		store:   st,
		linker:  linker,
		gateway: gateway,
	}
}

func settingsRequestFor(teamID, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPatch, "/team/"+teamID+"/settings", strings.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("teamID", teamID)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestHandleTeamSettingsUpdatesWindow(t *testing.T) {
	f := newFixture()
	body := `{"user_id":"owner-1","standup_window_open":"09:00","standup_window_close":"17:00"}`

	w := httptest.NewRecorder()
	f.api.HandleTeamSettings(w, settingsRequestFor("team-1", body))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "09:00:00", f.store.windowOpen)
	assert.Equal(t, "17:00:00", f.store.windowClose)
}

func TestHandleTeamSettingsRejectsNonOwner(t *testing.T) {
	f := newFixture()
	body := `{"user_id":"member-1","standup_window_open":"09:00","standup_window_close":"17:00"}`

	w := httptest.NewRecorder()
	f.api.HandleTeamSettings(w, settingsRequestFor("team-1", body))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Only the team owner")
	assert.Empty(t, f.store.windowOpen)
}

func TestHandleTeamSettingsRejectsInvalidWindow(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name string
		body string
	}{
		{"spans midnight", `{"user_id":"owner-1","standup_window_open":"23:30","standup_window_close":"00:30"}`},
		{"half configured", `{"user_id":"owner-1","standup_window_open":"09:00","standup_window_close":""}`},
		{"unparseable", `{"user_id":"owner-1","standup_window_open":"25:99","standup_window_close":"17:00"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			f.api.HandleTeamSettings(w, settingsRequestFor("team-1", tt.body))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandleTeamSettingsDisconnect(t *testing.T) {
	f := newFixture()
	body := `{"user_id":"owner-1","disconnect_slack":true}`

	w := httptest.NewRecorder()
	f.api.HandleTeamSettings(w, settingsRequestFor("team-1", body))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, f.linker.disconnected)
}

func TestHandleLinkUser(t *testing.T) {
	f := newFixture()
	body := `{"team_id":"team-1","user_id":"member-1","slack_user_id":"U1"}`

	w := httptest.NewRecorder()
	f.api.HandleLinkUser(w, httptest.NewRequest(http.MethodPost, "/slack/link-user", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "D1", resp["slack_dm_channel_id"])
}

func TestHandleLinkUserTypedRejections(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{linkage.ErrNotTeamMember, http.StatusForbidden},
		{linkage.ErrTeamNotFound, http.StatusNotFound},
		{linkage.ErrSlackNotConfigured, http.StatusBadRequest},
	}

	for _, tt := range tests {
		f := newFixture()
		f.linker.err = tt.err

		w := httptest.NewRecorder()
		body := `{"team_id":"team-1","user_id":"member-1","slack_user_id":"U1"}`
		f.api.HandleLinkUser(w, httptest.NewRequest(http.MethodPost, "/slack/link-user", strings.NewReader(body)))
		assert.Equal(t, tt.wantStatus, w.Code, "for %v", tt.err)
	}
}

func TestHandleSlackOAuthCallback(t *testing.T) {
	f := newFixture()

	r := httptest.NewRequest(http.MethodGet, "/slack/oauth/callback?code=abc&state=team-1", nil)
	w := httptest.NewRecorder()
	f.api.HandleSlackOAuthCallback(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, f.store.connected)
	require.Len(t, f.gateway.messages, 1, "installing admin gets a welcome DM")
	assert.Contains(t, f.gateway.messages[0], "Platform")
}

func TestHandleSlackOAuthCallbackMissingParams(t *testing.T) {
	f := newFixture()

	r := httptest.NewRequest(http.MethodGet, "/slack/oauth/callback?state=team-1", nil)
	w := httptest.NewRecorder()
	f.api.HandleSlackOAuthCallback(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, f.store.connected)
}

func TestHandleSlackInstallRedirect(t *testing.T) {
	f := newFixture()

	r := httptest.NewRequest(http.MethodGet, "/slack/install?team_id=team-1", nil)
	w := httptest.NewRecorder()
	f.api.HandleSlackInstall(w, r)

	assert.Equal(t, http.StatusFound, w.Code)
	loc := w.Header().Get("Location")
	assert.Contains(t, loc, "slack.com/oauth/v2/authorize")
	assert.Contains(t, loc, "state=team-1")
}

func TestHandleDispatchNow(t *testing.T) {
	f := newFixture()

	w := httptest.NewRecorder()
	f.api.HandleDispatchNow(w, httptest.NewRequest(http.MethodPost, "/cron/send-standups", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var result notify.RunResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 2, result.TeamsNotified)
	assert.Equal(t, 3, result.Sent)
}
