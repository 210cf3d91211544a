// Package scheduler runs the periodic due-review reminder job.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/retention/internal/config"
	"github.com/example/retention/internal/database"
	"github.com/example/retention/internal/logger"
	"github.com/example/retention/pkg/models"
)

// Notifier delivers a reminder about count due concepts to one user.
type Notifier interface {
	SendReminders(user models.User, count int) error
}

// Options control when reminders go out.
type Options struct {
	StartHour       int // first UTC hour reminders are sent in
	EndHour         int // last UTC hour, inclusive
	IntervalMinutes int
	ModelKey        string
}

// OptionsFromConfig builds Options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		StartHour:       cfg.NotificationStartHour,
		EndHour:         cfg.NotificationEndHour,
		IntervalMinutes: cfg.ReminderIntervalMinutes,
		ModelKey:        cfg.ModelKey,
	}
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	notifier  Notifier
	users     *database.UserRepository
	mastery   *database.MasteryRepository
	opts      Options
	now       func() time.Time
	log       *logger.Logger

	mu       sync.Mutex
	lastSent map[int64]time.Time // user -> hour of the last reminder
}

// New creates a new scheduler instance
func New(
	notifier Notifier,
	users *database.UserRepository,
	mastery *database.MasteryRepository,
	opts Options,
	baseLog *logger.Logger,
) *Scheduler {
	if opts.IntervalMinutes <= 0 {
		opts.IntervalMinutes = config.DefaultReminderInterval
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		notifier:  notifier,
		users:     users,
		mastery:   mastery,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
		log:       baseLog.With("service", "Scheduler"),
		lastSent:  make(map[int64]time.Time),
	}
}

// Start begins running all scheduled tasks. ctx bounds every run.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.Every(s.opts.IntervalMinutes).Minutes().Do(func() {
		s.checkAndSendReminders(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminder job: %w", err)
	}

	s.scheduler.StartAsync()
	s.log.Info("scheduler started",
		"interval_minutes", s.opts.IntervalMinutes,
		"start_hour", s.opts.StartHour,
		"end_hour", s.opts.EndHour,
	)
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) inWindow(hour int) bool {
	return hour >= s.opts.StartHour && hour <= s.opts.EndHour
}

// checkAndSendReminders reminds every user whose notification hour is now
// and who has reviews due. Each user gets at most one reminder per hour.
func (s *Scheduler) checkAndSendReminders(ctx context.Context) {
	now := s.now()
	hour := now.Hour()

	if !s.inWindow(hour) {
		s.log.Debug("outside notification hours, skipping reminders",
			"hour", hour, "start_hour", s.opts.StartHour, "end_hour", s.opts.EndHour)
		return
	}

	users, err := s.users.GetUsersForNotification(ctx, hour)
	if err != nil {
		s.log.Error("failed to get users for notification", "error", err)
		return
	}

	slot := now.Truncate(time.Hour)
	for _, user := range users {
		if s.alreadySent(user.ID, slot) {
			continue
		}
		sent, err := s.remind(ctx, user, now)
		if err != nil {
			s.log.Warn("failed to send reminder", "user_id", user.ID, "error", err)
			continue
		}
		if sent {
			s.markSent(user.ID, slot)
		}
	}
}

// remind sends one reminder if the user has anything due.
func (s *Scheduler) remind(ctx context.Context, user models.User, now time.Time) (bool, error) {
	count, err := s.mastery.CountDueConcepts(ctx, user.ID, s.opts.ModelKey, now)
	if err != nil {
		return false, err
	}
	if count == 0 {
		return false, nil
	}
	if err := s.notifier.SendReminders(user, count); err != nil {
		return false, err
	}
	s.log.Info("reminder sent", "user_id", user.ID, "due", count)
	return true, nil
}

func (s *Scheduler) alreadySent(userID int64, slot time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSent[userID].Equal(slot)
}

func (s *Scheduler) markSent(userID int64, slot time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSent[userID] = slot
}

// RunManualCheck forces a check for a specific user, ignoring the
// notification window.
func (s *Scheduler) RunManualCheck(ctx context.Context, userID int64) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user %d not found", userID)
	}
	_, err = s.remind(ctx, *user, s.now())
	return err
}
