// Package linkage associates internal users with their Slack identities and
// cached DM channels.
package linkage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"standupbot/internal/store"
)

// Typed failures surfaced to the caller for user-facing display.
var (
	ErrTeamNotFound       = errors.New("team not found")
	ErrNotTeamMember      = errors.New("user is not a member of this team")
	ErrSlackNotConfigured = errors.New("team is not connected to Slack")
)

// TeamStore is the slice of the store the manager checks preconditions
// against.
type TeamStore interface {
	Team(ctx context.Context, teamID string) (*store.Team, error)
	Member(ctx context.Context, teamID, userID string) (*store.Membership, error)
	Members(ctx context.Context, teamID string) ([]store.Membership, error)
	DisconnectSlack(ctx context.Context, teamID string) error
}

// LinkStore persists the identity links.
type LinkStore interface {
	UpsertLink(ctx context.Context, link *store.SlackLink) error
	DeleteLinksForUsers(ctx context.Context, userIDs []string) error
}

// Messenger opens DM channels.
type Messenger interface {
	OpenDM(ctx context.Context, token, slackUserID string) (string, error)
}

// TokenOpener unseals the team's stored bot token.
type TokenOpener interface {
	Open(sealed string) (string, error)
}

// Manager links and unlinks Slack identities.
type Manager struct {
	teams   TeamStore
	links   LinkStore
	gateway Messenger
	tokens  TokenOpener
	log     *zap.Logger
}

// NewManager wires a Manager from its collaborators.
func NewManager(teams TeamStore, links LinkStore, gateway Messenger, tokens TokenOpener, log *zap.Logger) *Manager {
	return &Manager{teams: teams, links: links, gateway: gateway, tokens: tokens, log: log}
}

// Link associates userID with slackUserID, opens (or retrieves) their DM
// channel and stores the tuple. Re-linking the same pair is idempotent and
// refreshes the cached channel handle.
func (m *Manager) Link(ctx context.Context, teamID, userID, slackUserID string) (string, error) {
	member, err := m.teams.Member(ctx, teamID, userID)
	if err != nil {
		return "", fmt.Errorf("link: %w", err)
	}
	if member == nil {
		return "", ErrNotTeamMember
	}

	team, err := m.teams.Team(ctx, teamID)
	if err != nil {
		return "", fmt.Errorf("link: %w", err)
	}
	if team == nil {
		return "", ErrTeamNotFound
	}
	if team.SlackBotToken == "" {
		return "", ErrSlackNotConfigured
	}

	token, err := m.tokens.Open(team.SlackBotToken)
	if err != nil {
		return "", fmt.Errorf("link: unseal bot token: %w", err)
	}

	channel, err := m.gateway.OpenDM(ctx, token, slackUserID)
	if err != nil {
		return "", fmt.Errorf("link: open dm channel: %w", err)
	}

	link := &store.SlackLink{UserID: userID, SlackUserID: slackUserID, DMChannelID: channel}
	if err := m.links.UpsertLink(ctx, link); err != nil {
		return "", fmt.Errorf("link: %w", err)
	}

	m.log.Info("slack identity linked",
		zap.String("team_id", teamID),
		zap.String("user_id", userID),
		zap.String("slack_user_id", slackUserID),
	)
	return channel, nil
}

// Unlink removes all links for a set of users.
func (m *Manager) Unlink(ctx context.Context, userIDs []string) error {
	if err := m.links.DeleteLinksForUsers(ctx, userIDs); err != nil {
		return fmt.Errorf("unlink: %w", err)
	}
	return nil
}

// Disconnect removes a team's Slack credentials and cascades deletion of
// every member's link.
func (m *Manager) Disconnect(ctx context.Context, teamID string) error {
	members, err := m.teams.Members(ctx, teamID)
	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}

	if err := m.teams.DisconnectSlack(ctx, teamID); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}

	userIDs := make([]string, 0, len(members))
	for _, member := range members {
		userIDs = append(userIDs, member.UserID)
	}
	if err := m.Unlink(ctx, userIDs); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}

	m.log.Info("slack disconnected", zap.String("team_id", teamID), zap.Int("links_removed", len(userIDs)))
	return nil
}
