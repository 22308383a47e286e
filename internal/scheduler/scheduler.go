package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/forecast-summary/internal/logger"
	"github.com/i474232898/forecast-summary/internal/weather"
)

const jobTimeout = 30 * time.Second

// Refresher re-fetches the currently shown place.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler periodically refreshes the forecast.
type Scheduler struct {
	scheduler *gocron.Scheduler
	target    Refresher
	interval  time.Duration
	l         *logger.Logger
}

// New creates a new Scheduler. A non-positive interval disables it.
func New(target Refresher, interval time.Duration, l *logger.Logger) *Scheduler {
	if l == nil {
		l = logger.Nop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		target:    target,
		interval:  interval,
		l:         l,
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens one interval after start.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.l.Info("scheduler: refresh interval not set; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().SingletonMode().Do(s.run)
	if err != nil {
		return err
	}

	s.l.Info("scheduler: started", map[string]any{"interval": s.interval.String()})
	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil && s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	err := s.target.Refresh(ctx)
	switch {
	case err == nil:
		s.l.Debug("scheduler: refresh completed")
	case errors.Is(err, weather.ErrBusy):
		s.l.Debug("scheduler: refresh skipped, fetch in flight")
	default:
		s.l.Warning("scheduler: refresh failed", map[string]any{"err": err})
	}
}
