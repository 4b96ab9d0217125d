package store

import "time"

// Membership roles. Exactly one owner exists per team at all times.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Check-in submission channels.
const (
	ViaWeb   = "web"
	ViaSlack = "slack"
)

// Team is a standup team. Window times are stored as UTC "HH:MM:SS" strings;
// empty means unset. SlackBotToken is sealed at rest.
type Team struct {
	ID                 string `gorm:"type:uuid;primaryKey"`
	Name               string `gorm:"not null"`
	SlackTeamID        string `gorm:"index"`
	SlackBotToken      string
	WindowOpenUTC      string
	WindowCloseUTC     string
	StandupDeadlineUTC string // legacy single-deadline variant
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Membership ties a user to a team with a role.
type Membership struct {
	ID       uint   `gorm:"primaryKey"`
	TeamID   string `gorm:"uniqueIndex:ux_team_user,priority:1;not null"`
	UserID   string `gorm:"uniqueIndex:ux_team_user,priority:2;not null"`
	Role     string `gorm:"not null;default:member"`
	JoinedAt time.Time
}

// DailyCheckIn is one user's structured report for one UTC calendar day.
// The unique index is what makes the upsert race-safe: the web form and the
// Slack path can both write the same (user, day) and the database resolves
// it, not the application.
type DailyCheckIn struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       string `gorm:"uniqueIndex:ux_user_log_date,priority:1;not null"`
	LogDate      string `gorm:"uniqueIndex:ux_user_log_date,priority:2;not null"` // "YYYY-MM-DD" UTC
	WorkedOn     string `gorm:"not null"`
	WorkingNext  string `gorm:"not null"`
	Blockers     string `gorm:"not null"`
	Score        int    `gorm:"not null"`
	SubmittedVia string `gorm:"not null"`
	SubmittedAt  time.Time
}

// SlackLink maps an internal user to their Slack identity and cached DM
// channel. The channel is resolved once at link time, not on every send.
type SlackLink struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      string `gorm:"uniqueIndex:ux_user_slack,priority:1;not null;index"`
	SlackUserID string `gorm:"uniqueIndex:ux_user_slack,priority:2;not null;index"`
	DMChannelID string `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SprintReflection is one user's weekly sprint reflection, keyed like
// check-ins but per reflection date.
type SprintReflection struct {
	ID                 uint   `gorm:"primaryKey"`
	UserID             string `gorm:"uniqueIndex:ux_user_reflection,priority:1;not null"`
	ReflectionDate     string `gorm:"uniqueIndex:ux_user_reflection,priority:2;not null"` // "YYYY-MM-DD" UTC
	FinishedThisSprint string `gorm:"not null"`
	DocLink            string
	SubmittedAt        time.Time
}
