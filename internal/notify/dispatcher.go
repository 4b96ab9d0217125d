// Package notify implements the daily reminder batch. One run visits every
// notification-enabled team and DMs the members who have not checked in yet.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"standupbot/internal/slack"
	"standupbot/internal/store"
	"standupbot/internal/timewindow"
)

// TeamStore is the slice of the store the dispatcher reads teams from.
type TeamStore interface {
	TeamsWithNotificationsEnabled(ctx context.Context) ([]store.Team, error)
	Members(ctx context.Context, teamID string) ([]store.Membership, error)
}

// LogStore answers whether a member already submitted today.
type LogStore interface {
	CheckIn(ctx context.Context, userID, logDate string) (*store.DailyCheckIn, error)
}

// LinkStore resolves members to their Slack DM channels.
type LinkStore interface {
	Link(ctx context.Context, userID string) (*store.SlackLink, error)
}

// Messenger sends the reminder DMs.
type Messenger interface {
	PostBlocks(ctx context.Context, token string, msg slack.Message) error
}

// TokenOpener unseals a team's stored bot token.
type TokenOpener interface {
	Open(sealed string) (string, error)
}

// RunResult aggregates one dispatcher run. It is ephemeral; nothing here is
// persisted.
type RunResult struct {
	TeamsNotified int `json:"teams_notified"`
	Sent          int `json:"messages_sent"`
	Skipped       int `json:"skipped"`
	Errors        int `json:"errors"`
}

// Options tune the fan-out. Zero values fall back to defaults.
type Options struct {
	// Workers bounds concurrent sends so a large team cannot blow through
	// Slack's rate limits.
	Workers int
	// SendTimeout bounds each individual send attempt.
	SendTimeout time.Duration
	// MaxAttempts is the per-send attempt budget, including the first try.
	MaxAttempts int
	// BackoffMin/BackoffMax bound the delay between attempts.
	BackoffMin time.Duration
	BackoffMax time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 10 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BackoffMin <= 0 {
		o.BackoffMin = 500 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 5 * time.Second
	}
	return o
}

// Dispatcher runs the daily reminder batch.
type Dispatcher struct {
	teams   TeamStore
	logs    LogStore
	links   LinkStore
	gateway Messenger
	tokens  TokenOpener
	opts    Options
	log     *zap.Logger
}

// NewDispatcher wires a Dispatcher from its collaborators.
func NewDispatcher(teams TeamStore, logs LogStore, links LinkStore, gateway Messenger, tokens TokenOpener, opts Options, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		teams:   teams,
		logs:    logs,
		links:   links,
		gateway: gateway,
		tokens:  tokens,
		opts:    opts.withDefaults(),
		log:     log,
	}
}

type job struct {
	token    string
	channel  string
	teamName string
	userID   string
}

// RunDaily executes one reminder batch for the UTC day of now. Every member
// is attempted independently; one failure never aborts the batch.
func (d *Dispatcher) RunDaily(ctx context.Context, now time.Time) RunResult {
	var result RunResult
	today := timewindow.TodayUTC(now)

	teams, err := d.teams.TeamsWithNotificationsEnabled(ctx)
	if err != nil {
		d.log.Error("failed to load notification-enabled teams", zap.Error(err))
		result.Errors++
		return result
	}
	result.TeamsNotified = len(teams)

	for _, team := range teams {
		jobs, teamResult := d.collectJobs(ctx, team, today)
		result.Skipped += teamResult.Skipped
		result.Errors += teamResult.Errors

		sent, errors := d.send(ctx, jobs)
		result.Sent += sent
		result.Errors += errors
	}

	d.log.Info("dispatcher run finished",
		zap.String("date", today),
		zap.Int("teams_notified", result.TeamsNotified),
		zap.Int("sent", result.Sent),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors),
	)
	return result
}

// collectJobs decides per member whether a reminder is due. Members who
// already submitted today or never linked Slack are skipped; store failures
// count as errors but do not stop the walk.
func (d *Dispatcher) collectJobs(ctx context.Context, team store.Team, today string) ([]job, RunResult) {
	var result RunResult

	token, err := d.tokens.Open(team.SlackBotToken)
	if err != nil {
		d.log.Error("failed to unseal bot token",
			zap.String("team_id", team.ID), zap.Error(err))
		result.Errors++
		return nil, result
	}

	members, err := d.teams.Members(ctx, team.ID)
	if err != nil {
		d.log.Error("failed to load members",
			zap.String("team_id", team.ID), zap.Error(err))
		result.Errors++
		return nil, result
	}

	var jobs []job
	for _, member := range members {
		checkIn, err := d.logs.CheckIn(ctx, member.UserID, today)
		if err != nil {
			d.log.Error("failed to look up check-in",
				zap.String("user_id", member.UserID), zap.Error(err))
			result.Errors++
			continue
		}
		if checkIn != nil {
			result.Skipped++
			continue
		}

		link, err := d.links.Link(ctx, member.UserID)
		if err != nil {
			d.log.Error("failed to look up slack link",
				zap.String("user_id", member.UserID), zap.Error(err))
			result.Errors++
			continue
		}
		if link == nil {
			// Never linked: nothing to send to, and no way to tell them.
			result.Skipped++
			continue
		}

		jobs = append(jobs, job{
			token:    token,
			channel:  link.DMChannelID,
			teamName: team.Name,
			userID:   member.UserID,
		})
	}
	return jobs, result
}

// send fans the jobs out over a bounded worker pool and returns (sent,
// errors).
func (d *Dispatcher) send(ctx context.Context, jobs []job) (int, int) {
	if len(jobs) == 0 {
		return 0, 0
	}

	queue := make(chan job)
	var wg sync.WaitGroup
	var mu sync.Mutex
	sent, errors := 0, 0

	workers := d.opts.Workers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				if err := d.sendWithRetry(ctx, j); err != nil {
					d.log.Warn("reminder send failed",
						zap.String("user_id", j.userID), zap.Error(err))
					mu.Lock()
					errors++
					mu.Unlock()
					continue
				}
				mu.Lock()
				sent++
				mu.Unlock()
			}
		}()
	}

	for _, j := range jobs {
		queue <- j
	}
	close(queue)
	wg.Wait()

	return sent, errors
}

// sendWithRetry attempts one reminder up to MaxAttempts times with jittered
// exponential backoff between attempts.
func (d *Dispatcher) sendWithRetry(ctx context.Context, j job) error {
	b := &backoff.Backoff{
		Min:    d.opts.BackoffMin,
		Max:    d.opts.BackoffMax,
		Jitter: true,
	}

	msg := slack.ReminderMessage(j.channel, j.teamName)

	var err error
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
		err = d.gateway.PostBlocks(sendCtx, j.token, msg)
		cancel()
		if err == nil {
			return nil
		}

		if attempt == d.opts.MaxAttempts {
			break
		}
		select {
		case <-time.After(b.Duration()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
