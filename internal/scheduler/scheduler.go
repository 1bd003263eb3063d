package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mwhitt/alphascreen/pkg/logger"
)

const historyLimit = 50

// JobFunc is one scheduled unit of work.
type JobFunc func(ctx context.Context) error

// Execution is one recorded job run.
type Execution struct {
	Job       string        `json:"job"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// Scheduler wraps cron with per-job retry and a bounded execution history.
type Scheduler struct {
	cron       *cron.Cron
	logger     *logger.Logger
	maxRetries int
	retryDelay time.Duration

	mu      sync.Mutex
	history []Execution
}

// New creates a scheduler. Jobs run sequentially per schedule slot; a slow
// job never overlaps itself.
func New(log *logger.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger:     log,
		maxRetries: 2,
		retryDelay: 30 * time.Second,
	}
}

// AddJob registers a job under a cron spec.
func (s *Scheduler) AddJob(name, spec string, fn JobFunc) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.execute(name, fn)
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"job":  name,
		"spec": spec,
	}).Info("Scheduled job registered")

	return nil
}

// Start begins dispatching jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started")
}

// Stop halts dispatch and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// History returns recent executions, newest first.
func (s *Scheduler) History() []Execution {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Execution, len(s.history))
	copy(out, s.history)
	return out
}

// execute runs one job with retries and records the outcome.
func (s *Scheduler) execute(name string, fn JobFunc) {
	start := time.Now()
	exec := Execution{Job: name, StartedAt: start}

	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		exec.Attempts = attempt + 1

		err = fn(context.Background())
		if err == nil {
			break
		}

		if attempt < s.maxRetries {
			s.logger.WithFields(map[string]interface{}{
				"job":     name,
				"attempt": attempt + 1,
				"error":   err.Error(),
			}).Warn("Job failed, retrying")
			time.Sleep(s.retryDelay)
		}
	}

	exec.Duration = time.Since(start)
	exec.Success = err == nil
	if err != nil {
		exec.Error = err.Error()
		s.logger.WithFields(map[string]interface{}{
			"job":      name,
			"attempts": exec.Attempts,
			"error":    err.Error(),
		}).Error("Job failed after retries")
	} else {
		s.logger.WithFields(map[string]interface{}{
			"job":      name,
			"duration": exec.Duration,
		}).Info("Job completed")
	}

	s.record(exec)
}

func (s *Scheduler) record(exec Execution) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append([]Execution{exec}, s.history...)
	if len(s.history) > historyLimit {
		s.history = s.history[:historyLimit]
	}
}
