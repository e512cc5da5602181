package forkset

import (
	"context"
	"errors"
	"time"
)

// Schedule defines how often each transition of the simulation is eligible
// to run.
type Schedule struct {
	Extend  time.Duration
	Fork    time.Duration
	Resolve time.Duration
}

// DefaultSchedule returns the schedule used by the standalone simulation.
func DefaultSchedule() Schedule {
	return Schedule{
		Extend:  time.Second,
		Fork:    5 * time.Second,
		Resolve: 37 * time.Second,
	}
}

// StepResult describes the transitions that ran during a step.
type StepResult struct {
	Extended bool
	Forked   bool
	Resolved bool
	Resolve  ResolveResult
}

// Simulator drives a fork set through the extend, fork and resolve
// transitions. Each transition has its own timer and is evaluated against
// the elapsed time on every step.
type Simulator struct {
	fs          *ForkSet
	sched       Schedule
	lastExtend  time.Time
	lastFork    time.Time
	lastResolve time.Time
}

// NewSimulator constructs a simulator whose timers start at the specified time.
func NewSimulator(fs *ForkSet, sched Schedule, start time.Time) *Simulator {
	return &Simulator{
		fs:          fs,
		sched:       sched,
		lastExtend:  start,
		lastFork:    start,
		lastResolve: start,
	}
}

// Step runs every transition whose timer has elapsed at the specified time.
func (s *Simulator) Step(ctx context.Context, now time.Time) (StepResult, error) {
	var res StepResult

	if now.Sub(s.lastExtend) >= s.sched.Extend {
		if _, _, err := s.fs.Extend(ctx); err != nil {
			return res, err
		}
		res.Extended = true
		s.lastExtend = now
	}

	// Forking the seed is skipped and tried again on the next step.
	if now.Sub(s.lastFork) >= s.sched.Fork {
		_, err := s.fs.Diverge(ctx)
		switch {
		case err == nil:
			res.Forked = true
			s.lastFork = now

		case !errors.Is(err, ErrSeedBranch):
			return res, err
		}
	}

	if now.Sub(s.lastResolve) >= s.sched.Resolve {
		rr, err := s.fs.Resolve()
		if err != nil {
			return res, err
		}
		res.Resolved = true
		res.Resolve = rr
		s.lastResolve = now
	}

	return res, nil
}

// =============================================================================

// RunConfig represents the configuration for a bounded simulation.
type RunConfig struct {
	Schedule Schedule
	Duration time.Duration
	Tick     time.Duration
	Now      func() time.Time
}

// RunResult describes a completed simulation.
type RunResult struct {
	Steps     int
	Extends   int
	Forks     int
	Resolves  int
	Merged    int
	Converged bool
	Elapsed   time.Duration
}

// Run drives the fork set until the duration elapses or the branches
// converge into the canonical chain, whichever happens first. An error is
// only returned when the parent context is cancelled or a transition fails.
func Run(ctx context.Context, fs *ForkSet, cfg RunConfig) (RunResult, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.Tick <= 0 {
		cfg.Tick = 10 * time.Millisecond
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	start := cfg.Now()
	sim := NewSimulator(fs, cfg.Schedule, start)

	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()

	var res RunResult
	for {
		step, err := sim.Step(runCtx, cfg.Now())
		res.Elapsed = cfg.Now().Sub(start)

		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			if runCtx.Err() != nil {
				return res, nil
			}
			return res, err
		}

		res.Steps++
		if step.Extended {
			res.Extends++
		}
		if step.Forked {
			res.Forks++
		}
		if step.Resolved {
			res.Resolves++
			res.Merged += step.Resolve.Merged
		}

		if step.Resolve.Converged {
			res.Converged = true
			fs.ev("forkset: Run: converged: merged[%d]: elapsed[%v]", res.Merged, res.Elapsed)
			return res, nil
		}

		select {
		case <-runCtx.Done():
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			fs.ev("forkset: Run: duration elapsed: branches%v", fs.Branches())
			return res, nil

		case <-ticker.C:
		}
	}
}

// ResolveSlot reports whether the specified time falls on a resolve slot
// of a schedule driven by the wall clock, every seconds since the epoch.
func ResolveSlot(now time.Time, every time.Duration) bool {
	secs := int64(every / time.Second)
	if secs <= 0 {
		return false
	}

	return now.Unix()%secs == 0
}
