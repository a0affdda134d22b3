package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"weatherchart/internal/logger"
)

// TopOfHour fires at minute zero of every hour.
const TopOfHour = "0 * * * *"

var log = logger.Component("scheduler")

// Hourly runs a single task at every top of the hour. Starting it again
// replaces the previous task, so at most one timer is ever outstanding.
type Hourly struct {
	mu        sync.Mutex
	location  *time.Location
	scheduler *gocron.Scheduler
}

// NewHourly creates an hourly scheduler aligned to hours in loc.
func NewHourly(loc *time.Location) *Hourly {
	if loc == nil {
		loc = time.Local
	}
	return &Hourly{location: loc}
}

// Start schedules task and starts the underlying scheduler.
func (h *Hourly) Start(task func()) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopLocked()

	s := gocron.NewScheduler(h.location)
	_, err := s.Cron(TopOfHour).SingletonMode().Do(func() {
		log.Debug("Running hourly task")
		task()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule hourly task: %w", err)
	}

	s.StartAsync()
	h.scheduler = s
	log.Debug("Hourly task scheduled", map[string]interface{}{
		"next_run": NextTopOfHour(time.Now().In(h.location)).Format(time.RFC3339),
	})
	return nil
}

// Stop cancels the pending run. Safe to call when not started.
func (h *Hourly) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopLocked()
}

// Running reports whether a task is scheduled.
func (h *Hourly) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scheduler != nil && h.scheduler.IsRunning()
}

func (h *Hourly) stopLocked() {
	if h.scheduler == nil {
		return
	}
	h.scheduler.Stop()
	h.scheduler.Clear()
	h.scheduler = nil
}

// NextTopOfHour returns the first top of the hour strictly after t.
func NextTopOfHour(t time.Time) time.Time {
	return t.Truncate(time.Hour).Add(time.Hour)
}
