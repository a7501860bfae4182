// Package cron runs scheduled prompts through the conversation loop.
package cron

import (
	"context"
	"fmt"
	"log/slog"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/toolbridge/toolbridge/internal/config"
	"github.com/toolbridge/toolbridge/internal/session"
)

// Service fires configured prompts on their cron schedules. Each schedule
// runs in its own session so recurring prompts keep independent histories.
type Service struct {
	schedules []config.ScheduleConfig
	sessions  *session.Manager
	cron      *robfigcron.Cron
}

// NewService creates a Service for the given schedules.
func NewService(schedules []config.ScheduleConfig, sessions *session.Manager) *Service {
	return &Service{
		schedules: schedules,
		sessions:  sessions,
		cron:      robfigcron.New(),
	}
}

// Start registers all schedules and runs until ctx is cancelled.
// A schedule with a bad cron expression is skipped with an error log.
func (s *Service) Start(ctx context.Context) error {
	registered := 0
	for _, sched := range s.schedules {
		sched := sched
		if sched.Cron == "" || sched.Prompt == "" {
			continue
		}
		key := sched.Session
		if key == "" {
			key = "cron:" + sched.Name
		}

		_, err := s.cron.AddFunc(sched.Cron, func() {
			s.fire(ctx, key, sched)
		})
		if err != nil {
			slog.Error("Invalid cron expression, skipping schedule",
				"schedule", sched.Name, "expr", sched.Cron, "err", err)
			continue
		}
		registered++
	}

	if registered == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	slog.Info("Cron service started", "schedules", registered)
	s.cron.Start()
	<-ctx.Done()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}

func (s *Service) fire(ctx context.Context, key string, sched config.ScheduleConfig) {
	slog.Info("Running scheduled prompt", "schedule", sched.Name, "session", key)

	conv := s.sessions.GetOrCreate(key)
	reply, err := conv.Ask(ctx, sched.Prompt)
	if err != nil {
		slog.Error("Scheduled prompt failed", "schedule", sched.Name, "err", err)
		return
	}
	slog.Info("Scheduled prompt finished",
		"schedule", sched.Name, "reply", fmt.Sprintf("%.80s", reply))
}
