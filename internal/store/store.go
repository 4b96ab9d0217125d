// Package store persists teams, memberships, check-ins and Slack identity
// links. It is the single owner of the gorm handle; the rest of the service
// consumes it through the small per-package interfaces each component
// declares.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store wraps a gorm DB with the query surface the service needs.
type Store struct {
	db *gorm.DB
}

// New wraps an already-opened gorm DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open connects to postgres and runs migrations.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := New(db)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Migrate creates or updates the schema.
func (s *Store) Migrate() error {
	err := s.db.AutoMigrate(
		&Team{},
		&Membership{},
		&DailyCheckIn{},
		&SlackLink{},
		&SprintReflection{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// ─── teams ───

// Team returns a team by id, or nil when it does not exist.
func (s *Store) Team(ctx context.Context, teamID string) (*Team, error) {
	var team Team
	err := s.db.WithContext(ctx).Where("id = ?", teamID).First(&team).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get team %s: %w", teamID, err)
	}
	return &team, nil
}

// TeamBySlackTeamID resolves the team a webhook event belongs to.
func (s *Store) TeamBySlackTeamID(ctx context.Context, slackTeamID string) (*Team, error) {
	var team Team
	err := s.db.WithContext(ctx).Where("slack_team_id = ?", slackTeamID).First(&team).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get team by slack team %s: %w", slackTeamID, err)
	}
	return &team, nil
}

// TeamsWithNotificationsEnabled returns teams that have both a standup
// window open time and a Slack bot token, i.e. those the dispatcher should
// visit.
func (s *Store) TeamsWithNotificationsEnabled(ctx context.Context) ([]Team, error) {
	var teams []Team
	err := s.db.WithContext(ctx).
		Where("window_open_utc <> '' AND slack_bot_token <> ''").
		Find(&teams).Error
	if err != nil {
		return nil, fmt.Errorf("list notification-enabled teams: %w", err)
	}
	return teams, nil
}

// CreateTeam inserts a team and its owner membership.
func (s *Store) CreateTeam(ctx context.Context, team *Team, ownerUserID string) error {
	now := time.Now().UTC()
	team.CreatedAt = now
	team.UpdatedAt = now

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(team).Error; err != nil {
			return fmt.Errorf("create team: %w", err)
		}
		member := Membership{TeamID: team.ID, UserID: ownerUserID, Role: RoleOwner, JoinedAt: now}
		if err := tx.Create(&member).Error; err != nil {
			return fmt.Errorf("create owner membership: %w", err)
		}
		return nil
	})
}

// ConnectSlack stores a team's Slack workspace id and sealed bot token.
func (s *Store) ConnectSlack(ctx context.Context, teamID, slackTeamID, sealedToken string) error {
	err := s.db.WithContext(ctx).Model(&Team{}).
		Where("id = ?", teamID).
		Updates(map[string]any{
			"slack_team_id":   slackTeamID,
			"slack_bot_token": sealedToken,
			"updated_at":      time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("connect slack for team %s: %w", teamID, err)
	}
	return nil
}

// DisconnectSlack clears a team's Slack credentials. Link cleanup for the
// team's members is the linkage manager's job.
func (s *Store) DisconnectSlack(ctx context.Context, teamID string) error {
	err := s.db.WithContext(ctx).Model(&Team{}).
		Where("id = ?", teamID).
		Updates(map[string]any{
			"slack_team_id":   "",
			"slack_bot_token": "",
			"updated_at":      time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("disconnect slack for team %s: %w", teamID, err)
	}
	return nil
}

// UpdateTeamWindow sets the standup window; empty strings clear it.
func (s *Store) UpdateTeamWindow(ctx context.Context, teamID, openUTC, closeUTC string) error {
	err := s.db.WithContext(ctx).Model(&Team{}).
		Where("id = ?", teamID).
		Updates(map[string]any{
			"window_open_utc":  openUTC,
			"window_close_utc": closeUTC,
			"updated_at":       time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("update window for team %s: %w", teamID, err)
	}
	return nil
}

// ─── memberships ───

// Members lists a team's memberships.
func (s *Store) Members(ctx context.Context, teamID string) ([]Membership, error) {
	var members []Membership
	err := s.db.WithContext(ctx).Where("team_id = ?", teamID).Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("list members of team %s: %w", teamID, err)
	}
	return members, nil
}

// Member returns one membership, or nil when the user is not on the team.
func (s *Store) Member(ctx context.Context, teamID, userID string) (*Membership, error) {
	var member Membership
	err := s.db.WithContext(ctx).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member %s of team %s: %w", userID, teamID, err)
	}
	return &member, nil
}

// AddMember inserts a membership; re-adding an existing member is a no-op.
func (s *Store) AddMember(ctx context.Context, teamID, userID, role string) error {
	member := Membership{TeamID: teamID, UserID: userID, Role: role, JoinedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&member).Error
	if err != nil {
		return fmt.Errorf("add member %s to team %s: %w", userID, teamID, err)
	}
	return nil
}

// PromoteOwner makes userID the team's owner, demoting the previous owner to
// member in the same transaction so the one-owner invariant holds at every
// commit point.
func (s *Store) PromoteOwner(ctx context.Context, teamID, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member Membership
		err := tx.Where("team_id = ? AND user_id = ?", teamID, userID).First(&member).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("promote owner: user %s is not a member of team %s", userID, teamID)
		}
		if err != nil {
			return fmt.Errorf("promote owner: %w", err)
		}
		if member.Role == RoleOwner {
			return nil
		}

		err = tx.Model(&Membership{}).
			Where("team_id = ? AND role = ?", teamID, RoleOwner).
			Update("role", RoleMember).Error
		if err != nil {
			return fmt.Errorf("promote owner: demote previous: %w", err)
		}

		err = tx.Model(&Membership{}).
			Where("team_id = ? AND user_id = ?", teamID, userID).
			Update("role", RoleOwner).Error
		if err != nil {
			return fmt.Errorf("promote owner: %w", err)
		}
		return nil
	})
}

// ─── check-ins ───

// CheckIn returns a user's check-in for a UTC date, or nil when none exists.
func (s *Store) CheckIn(ctx context.Context, userID, logDate string) (*DailyCheckIn, error) {
	var checkIn DailyCheckIn
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND log_date = ?", userID, logDate).
		First(&checkIn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get check-in for %s on %s: %w", userID, logDate, err)
	}
	return &checkIn, nil
}

// UpsertCheckIn writes a check-in, replacing any existing row for the same
// (user, date). Last write wins; the unique index resolves the web/Slack
// race at the database.
func (s *Store) UpsertCheckIn(ctx context.Context, checkIn *DailyCheckIn) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "log_date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"worked_on", "working_next", "blockers", "score", "submitted_via", "submitted_at",
			}),
		}).
		Create(checkIn).Error
	if err != nil {
		return fmt.Errorf("upsert check-in for %s on %s: %w", checkIn.UserID, checkIn.LogDate, err)
	}
	return nil
}

// ─── sprint reflections ───

// Reflection returns a user's reflection for a date, or nil when none exists.
func (s *Store) Reflection(ctx context.Context, userID, date string) (*SprintReflection, error) {
	var reflection SprintReflection
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND reflection_date = ?", userID, date).
		First(&reflection).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reflection for %s on %s: %w", userID, date, err)
	}
	return &reflection, nil
}

// UpsertReflection follows the same last-write-wins contract as check-ins.
func (s *Store) UpsertReflection(ctx context.Context, reflection *SprintReflection) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "reflection_date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"finished_this_sprint", "doc_link", "submitted_at",
			}),
		}).
		Create(reflection).Error
	if err != nil {
		return fmt.Errorf("upsert reflection for %s on %s: %w", reflection.UserID, reflection.ReflectionDate, err)
	}
	return nil
}

// ─── slack links ───

// Link returns a user's Slack link, or nil when they never linked.
func (s *Store) Link(ctx context.Context, userID string) (*SlackLink, error) {
	var link SlackLink
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get slack link for %s: %w", userID, err)
	}
	return &link, nil
}

// LinkBySlackUserID resolves an inbound Slack user to an internal user.
func (s *Store) LinkBySlackUserID(ctx context.Context, slackUserID string) (*SlackLink, error) {
	var link SlackLink
	err := s.db.WithContext(ctx).Where("slack_user_id = ?", slackUserID).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get slack link by slack user %s: %w", slackUserID, err)
	}
	return &link, nil
}

// UpsertLink stores a link, refreshing the DM channel on conflict so
// re-linking the same pair is idempotent.
func (s *Store) UpsertLink(ctx context.Context, link *SlackLink) error {
	now := time.Now().UTC()
	link.CreatedAt = now
	link.UpdatedAt = now

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "slack_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"dm_channel_id", "updated_at"}),
		}).
		Create(link).Error
	if err != nil {
		return fmt.Errorf("upsert slack link for %s: %w", link.UserID, err)
	}
	return nil
}

// DeleteLinksForUsers removes all links for a set of users, used when a team
// disconnects its Slack integration.
func (s *Store) DeleteLinksForUsers(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Where("user_id IN ?", userIDs).Delete(&SlackLink{}).Error
	if err != nil {
		return fmt.Errorf("delete slack links: %w", err)
	}
	return nil
}
