// Package scheduler runs named periodic jobs that require connectivity and
// retry with linear backoff.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prudhvinik1/fieldsync/internal/connectivity"
	"github.com/prudhvinik1/fieldsync/internal/logging"
)

const (
	DefaultInterval   = 15 * time.Minute
	DefaultMinBackoff = 10 * time.Second
	MaxBackoff        = 5 * time.Hour

	// ReconcileJobName is the unique name of the background sync job.
	ReconcileJobName = "reconcile-all"
)

var ErrStopped = errors.New("scheduler stopped")

// Job is one unit of periodic work. A returned error is always treated as
// retryable.
type Job func(ctx context.Context) error

type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomeSuccess Outcome = "success"
	OutcomeRetry   Outcome = "retry"
)

// JobStatus is a snapshot of one registered job.
type JobStatus struct {
	Name        string        `json:"name"`
	Interval    time.Duration `json:"interval"`
	Runs        int           `json:"runs"`
	LastOutcome Outcome       `json:"lastOutcome,omitempty"`
	LastError   string        `json:"lastError,omitempty"`
	LastRunAt   time.Time     `json:"lastRunAt"`
	NextRunAt   time.Time     `json:"nextRunAt"`
	Attempt     int           `json:"attempt"`
	Running     bool          `json:"running"`
	WaitingNet  bool          `json:"waitingForNetwork"`
}

type Options struct {
	MinBackoff time.Duration
}

type periodicJob struct {
	name     string
	interval time.Duration
	run      Job
	trigger  chan struct{}

	mu     sync.Mutex
	status JobStatus
}

// Scheduler owns the goroutines of every registered job. Jobs start when
// registered and stop when Stop is called.
type Scheduler struct {
	oracle     connectivity.Oracle
	minBackoff time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	jobs    map[string]*periodicJob
	stopped bool
}

func New(oracle connectivity.Oracle, opts Options) *Scheduler {
	minBackoff := opts.MinBackoff
	if minBackoff <= 0 {
		minBackoff = DefaultMinBackoff
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		oracle:     oracle,
		minBackoff: minBackoff,
		ctx:        ctx,
		cancel:     cancel,
		jobs:       make(map[string]*periodicJob),
	}
}

// EnqueueUniquePeriodic registers job under name and starts it. If a job with
// that name already exists it is kept and false is returned.
func (s *Scheduler) EnqueueUniquePeriodic(name string, interval time.Duration, job Job) bool {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if _, exists := s.jobs[name]; exists {
		logging.Debug("periodic job already registered, keeping existing", logging.Fields{"job": name})
		return false
	}

	pj := &periodicJob{
		name:     name,
		interval: interval,
		run:      job,
		trigger:  make(chan struct{}, 1),
		status:   JobStatus{Name: name, Interval: interval},
	}
	s.jobs[name] = pj

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(s.ctx, pj)
	}()

	logging.Info("periodic job registered", logging.Fields{"job": name, "interval": interval.String()})
	return true
}

// Trigger asks the named job to run now instead of waiting for its next
// slot. Triggers coalesce. It reports whether the job exists.
func (s *Scheduler) Trigger(name string) bool {
	s.mu.Lock()
	pj, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case pj.trigger <- struct{}{}:
	default:
	}
	return true
}

func (s *Scheduler) Status(name string) (JobStatus, bool) {
	s.mu.Lock()
	pj, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return JobStatus{}, false
	}

	pj.mu.Lock()
	defer pj.mu.Unlock()
	return pj.status, true
}

// Stop cancels every job and waits for running bodies to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// Backoff returns the retry delay after attempt consecutive failures.
func Backoff(minBackoff time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if minBackoff <= 0 {
		minBackoff = DefaultMinBackoff
	}
	if time.Duration(attempt) > MaxBackoff/minBackoff {
		return MaxBackoff
	}
	return minBackoff * time.Duration(attempt)
}

func (s *Scheduler) loop(ctx context.Context, pj *periodicJob) {
	// First run happens right away, like a freshly enqueued work request.
	delay := time.Duration(0)
	attempt := 0

	for {
		pj.setNext(time.Now().Add(delay))
		if !s.wait(ctx, pj, delay) {
			return
		}
		if !s.waitForNetwork(ctx, pj) {
			return
		}

		err := s.runOnce(ctx, pj)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			attempt++
			delay = Backoff(s.minBackoff, attempt)
			logging.Warn("periodic job failed, backing off", logging.Fields{
				"job":     pj.name,
				"attempt": attempt,
				"retry":   delay.String(),
				"error":   err.Error(),
			})
		} else {
			attempt = 0
			delay = pj.interval
		}
		pj.setAttempt(attempt)
	}
}

// wait blocks for delay or a trigger. It returns false when ctx is done.
func (s *Scheduler) wait(ctx context.Context, pj *periodicJob, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-pj.trigger:
		return true
	}
}

// waitForNetwork blocks until the oracle reports connectivity.
func (s *Scheduler) waitForNetwork(ctx context.Context, pj *periodicJob) bool {
	if s.oracle.IsAvailable() {
		return true
	}

	pj.setWaiting(true)
	defer pj.setWaiting(false)
	logging.Debug("periodic job waiting for network", logging.Fields{"job": pj.name})

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	for online := range s.oracle.Observe(watchCtx) {
		if online {
			return true
		}
	}
	return false
}

func (s *Scheduler) runOnce(ctx context.Context, pj *periodicJob) (err error) {
	pj.mu.Lock()
	pj.status.Running = true
	pj.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			logging.Error("periodic job panicked", nil, logging.Fields{"job": pj.name, "panic": r})
			err = errors.New("job panicked")
		}

		pj.mu.Lock()
		defer pj.mu.Unlock()
		pj.status.Running = false
		pj.status.Runs++
		pj.status.LastRunAt = time.Now()
		if err != nil {
			pj.status.LastOutcome = OutcomeRetry
			pj.status.LastError = err.Error()
		} else {
			pj.status.LastOutcome = OutcomeSuccess
			pj.status.LastError = ""
		}
	}()

	return pj.run(ctx)
}

func (pj *periodicJob) setNext(at time.Time) {
	pj.mu.Lock()
	defer pj.mu.Unlock()
	pj.status.NextRunAt = at
}

func (pj *periodicJob) setAttempt(attempt int) {
	pj.mu.Lock()
	defer pj.mu.Unlock()
	pj.status.Attempt = attempt
}

func (pj *periodicJob) setWaiting(waiting bool) {
	pj.mu.Lock()
	defer pj.mu.Unlock()
	pj.status.WaitingNet = waiting
}
