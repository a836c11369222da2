// Package scheduler implements the cooperative periodic-job scheduler:
// a fixed-capacity job table driven forward by an elapsed-time tick, the
// same design as the RTOS scheduler task that calls scheduler_step every
// period on the vehicle.
package scheduler

import (
	"sync"

	"github.com/TheusHen/OpenFSW/status"
	"github.com/TheusHen/OpenFSW/types"
)

// MaxJobs bounds the job table — no dynamic growth once the scheduler is
// constructed.
const MaxJobs = 16

// HealthJobPeriodSafeMs / HealthJobPeriodNormalMs are the built-in health
// job periods: the safe-mode core runs it five times slower to keep the
// minimal safe-mode job set cheap.
const (
	HealthJobPeriodSafeMs   uint32 = 500
	HealthJobPeriodNormalMs uint32 = 100
)

// JobFunc is a periodic job callback. It takes no arguments and returns
// nothing, matching openfsw_job_fn_t — job state is closed over, not
// passed in.
type JobFunc func()

type job struct {
	fn        JobFunc
	periodMs  uint32
	nextRunMs uint32
	used      bool
}

// Scheduler is the fixed-capacity periodic job table.
type Scheduler struct {
	mu    sync.Mutex
	nowMs uint32
	jobs  [MaxJobs]job
}

// New constructs a Scheduler for the given boot mode. If healthFn is
// non-nil it is registered as the built-in periodic health job, at
// HealthJobPeriodSafeMs in SAFE mode and HealthJobPeriodNormalMs
// otherwise — the one job every mode always keeps.
func New(mode types.Mode, healthFn JobFunc) *Scheduler {
	s := &Scheduler{}
	if healthFn != nil {
		period := HealthJobPeriodNormalMs
		if mode == types.ModeSafe {
			period = HealthJobPeriodSafeMs
		}
		_ = s.RegisterPeriodic(healthFn, period)
	}
	return s
}

// RegisterPeriodic adds fn to the job table to run every periodMs
// milliseconds, first firing at now+periodMs. Returns
// status.ErrInvalidPeriod for a nil fn or zero period, or
// status.ErrSchedulerFull once the table is full.
func (s *Scheduler) RegisterPeriodic(fn JobFunc, periodMs uint32) error {
	if fn == nil || periodMs == 0 {
		return status.ErrInvalidPeriod
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.jobs {
		if !s.jobs[i].used {
			s.jobs[i] = job{
				fn:        fn,
				periodMs:  periodMs,
				nextRunMs: s.nowMs + periodMs,
				used:      true,
			}
			return nil
		}
	}
	return status.ErrSchedulerFull
}

// Step advances the scheduler's clock by elapsedMs and runs every job
// whose next run time has arrived. A job's next run time is advanced by
// exactly one period per Step call — a job that overstays more than one
// period only catches up once, never firing more than once per Step.
func (s *Scheduler) Step(elapsedMs uint32) {
	s.mu.Lock()
	s.nowMs += elapsedMs

	var due []JobFunc
	for i := range s.jobs {
		j := &s.jobs[i]
		if !j.used {
			continue
		}
		if s.nowMs >= j.nextRunMs {
			j.nextRunMs += j.periodMs
			due = append(due, j.fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range due {
		fn()
	}
}

// NowMs returns the scheduler's internal elapsed-time clock.
func (s *Scheduler) NowMs() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nowMs
}

// JobCount returns the number of currently registered jobs.
func (s *Scheduler) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.jobs {
		if s.jobs[i].used {
			n++
		}
	}
	return n
}
