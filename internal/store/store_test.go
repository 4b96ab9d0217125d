package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	s := New(db)
	require.NoError(t, s.Migrate())

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return s
}

func newTeam(name string) *Team {
	return &Team{ID: uuid.NewString(), Name: name}
}

func TestUpsertCheckInIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	userID := uuid.NewString()

	first := &DailyCheckIn{
		UserID: userID, LogDate: "2025-06-02",
		WorkedOn: "auth flow", WorkingNext: "sessions", Blockers: "None",
		Score: 3, SubmittedVia: ViaWeb, SubmittedAt: time.Now().UTC(),
	}
	require.NoError(t, s.UpsertCheckIn(ctx, first))

	second := &DailyCheckIn{
		UserID: userID, LogDate: "2025-06-02",
		WorkedOn: "auth flow, sessions", WorkingNext: "rate limits", Blockers: "flaky CI",
		Score: 4, SubmittedVia: ViaSlack, SubmittedAt: time.Now().UTC(),
	}
	require.NoError(t, s.UpsertCheckIn(ctx, second))

	var count int64
	require.NoError(t, s.db.Model(&DailyCheckIn{}).Where("user_id = ?", userID).Count(&count).Error)
	assert.EqualValues(t, 1, count, "no duplicate rows for the same (user, day)")

	got, err := s.CheckIn(ctx, userID, "2025-06-02")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "rate limits", got.WorkingNext)
	assert.Equal(t, 4, got.Score)
	assert.Equal(t, ViaSlack, got.SubmittedVia)
}

func TestCheckInMissReturnsNil(t *testing.T) {
	s := setupTestStore(t)

	got, err := s.CheckIn(context.Background(), uuid.NewString(), "2025-06-02")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertLinkIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	userID := uuid.NewString()

	require.NoError(t, s.UpsertLink(ctx, &SlackLink{UserID: userID, SlackUserID: "U1", DMChannelID: "D1"}))
	require.NoError(t, s.UpsertLink(ctx, &SlackLink{UserID: userID, SlackUserID: "U1", DMChannelID: "D2"}))

	var count int64
	require.NoError(t, s.db.Model(&SlackLink{}).Where("user_id = ?", userID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	got, err := s.Link(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "D2", got.DMChannelID, "re-link refreshes the channel handle")
}

func TestLinkBySlackUserID(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	userID := uuid.NewString()

	require.NoError(t, s.UpsertLink(ctx, &SlackLink{UserID: userID, SlackUserID: "U77", DMChannelID: "D77"}))

	got, err := s.LinkBySlackUserID(ctx, "U77")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, userID, got.UserID)

	miss, err := s.LinkBySlackUserID(ctx, "U-nobody")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestDeleteLinksForUsers(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	a, b, c := uuid.NewString(), uuid.NewString(), uuid.NewString()

	for i, userID := range []string{a, b, c} {
		require.NoError(t, s.UpsertLink(ctx, &SlackLink{
			UserID: userID, SlackUserID: "U" + string(rune('A'+i)), DMChannelID: "D",
		}))
	}

	require.NoError(t, s.DeleteLinksForUsers(ctx, []string{a, b}))
	require.NoError(t, s.DeleteLinksForUsers(ctx, nil))

	var count int64
	require.NoError(t, s.db.Model(&SlackLink{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	got, err := s.Link(ctx, c)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestTeamsWithNotificationsEnabled(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	ready := newTeam("ready")
	ready.WindowOpenUTC = "09:00:00"
	ready.WindowCloseUTC = "17:00:00"
	ready.SlackBotToken = "sealed-token"

	noWindow := newTeam("no window")
	noWindow.SlackBotToken = "sealed-token"

	noSlack := newTeam("no slack")
	noSlack.WindowOpenUTC = "09:00:00"

	for _, team := range []*Team{ready, noWindow, noSlack} {
		require.NoError(t, s.CreateTeam(ctx, team, uuid.NewString()))
	}

	teams, err := s.TeamsWithNotificationsEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, ready.ID, teams[0].ID)
}

func TestPromoteOwnerSwapsAtomically(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	team := newTeam("platform")
	founder := uuid.NewString()
	successor := uuid.NewString()
	require.NoError(t, s.CreateTeam(ctx, team, founder))
	require.NoError(t, s.AddMember(ctx, team.ID, successor, RoleMember))

	require.NoError(t, s.PromoteOwner(ctx, team.ID, successor))

	members, err := s.Members(ctx, team.ID)
	require.NoError(t, err)

	owners := 0
	for _, m := range members {
		if m.Role == RoleOwner {
			owners++
			assert.Equal(t, successor, m.UserID)
		}
	}
	assert.Equal(t, 1, owners, "exactly one owner after promotion")

	// Promoting the current owner again is a no-op.
	require.NoError(t, s.PromoteOwner(ctx, team.ID, successor))

	// Promoting a non-member fails.
	assert.Error(t, s.PromoteOwner(ctx, team.ID, uuid.NewString()))
}

func TestAddMemberIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	team := newTeam("core")
	owner := uuid.NewString()
	require.NoError(t, s.CreateTeam(ctx, team, owner))
	require.NoError(t, s.AddMember(ctx, team.ID, owner, RoleMember))

	members, err := s.Members(ctx, team.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, RoleOwner, members[0].Role, "conflicting insert must not downgrade the role")
}

func TestUpsertReflectionIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	userID := uuid.NewString()

	require.NoError(t, s.UpsertReflection(ctx, &SprintReflection{
		UserID: userID, ReflectionDate: "2025-06-02",
		FinishedThisSprint: "exporter", SubmittedAt: time.Now().UTC(),
	}))
	require.NoError(t, s.UpsertReflection(ctx, &SprintReflection{
		UserID: userID, ReflectionDate: "2025-06-02",
		FinishedThisSprint: "exporter, importer", DocLink: "https://docs.example.test/x",
		SubmittedAt: time.Now().UTC(),
	}))

	got, err := s.Reflection(ctx, userID, "2025-06-02")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "exporter, importer", got.FinishedThisSprint)
	assert.Equal(t, "https://docs.example.test/x", got.DocLink)
}

func TestUpdateTeamWindowAndDisconnect(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	team := newTeam("infra")
	require.NoError(t, s.CreateTeam(ctx, team, uuid.NewString()))
	require.NoError(t, s.ConnectSlack(ctx, team.ID, "T1", "sealed"))
	require.NoError(t, s.UpdateTeamWindow(ctx, team.ID, "09:00:00", "17:00:00"))

	got, err := s.Team(ctx, team.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "T1", got.SlackTeamID)
	assert.Equal(t, "09:00:00", got.WindowOpenUTC)

	require.NoError(t, s.DisconnectSlack(ctx, team.ID))
	got, err = s.Team(ctx, team.ID)
	require.NoError(t, err)
	assert.Empty(t, got.SlackTeamID)
	assert.Empty(t, got.SlackBotToken)
	assert.Equal(t, "09:00:00", got.WindowOpenUTC, "window survives a disconnect")
}
