// Package scheduler hosts the cron trigger for the daily reminder batch.
// The dispatcher itself is a single-shot invocation; this is just the
// in-process stand-in for an external cron.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"standupbot/internal/notify"
)

// Runner is the dispatcher entry point the schedule fires.
type Runner interface {
	RunDaily(ctx context.Context, now time.Time) notify.RunResult
}

// Scheduler wraps a cron with a single daily dispatch entry.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
}

// runTimeout bounds one whole dispatch batch.
const runTimeout = 5 * time.Minute

// New builds a Scheduler from a cron spec like "0 9 * * *".
func New(spec string, runner Runner, log *zap.Logger) (*Scheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		runner.RunDaily(ctx, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}
	return &Scheduler{cron: c, log: log}, nil
}

// Start begins firing the schedule in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("dispatch schedule started")
}

// Stop halts the schedule and waits for a running entry to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("dispatch schedule stopped")
}
