package analysis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/suPer8Hu/siteaudit/internal/observability"
)

// Lease keeps overlapping dispatcher runs from claiming at the same time.
// The claim transaction is correct without it.
type Lease interface {
	Acquire(ctx context.Context, ttl time.Duration) (release func(), ok bool, err error)
}

type DispatchOptions struct {
	MaxProcessing int
	StaleAfter    time.Duration
	LeaseTTL      time.Duration
}

func DefaultDispatchOptions() DispatchOptions {
	return DispatchOptions{MaxProcessing: 3, StaleAfter: 5 * time.Minute, LeaseTTL: 30 * time.Second}
}

// RunSummary reports one dispatcher run.
type RunSummary struct {
	Skipped    bool
	Reaped     int64
	Reconciled int64
	Claimed    int
	Completed  int
	Failed     int
}

type Dispatcher struct {
	repo     *Repo
	pipeline *Pipeline
	lease    Lease
	opts     DispatchOptions
	logger   *slog.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

func NewDispatcher(repo *Repo, pipeline *Pipeline, lease Lease, opts DispatchOptions, logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	def := DefaultDispatchOptions()
	if opts.MaxProcessing <= 0 {
		opts.MaxProcessing = def.MaxProcessing
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = def.StaleAfter
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = def.LeaseTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		repo:     repo,
		pipeline: pipeline,
		lease:    lease,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run reaps, reconciles and claims, then processes every claimed job
// concurrently and waits for all of them. A job failure is recorded on the
// job; only storage errors before processing are returned.
func (d *Dispatcher) Run(ctx context.Context) (RunSummary, error) {
	var sum RunSummary

	jobs, err := d.claim(ctx, &sum)
	if err != nil || sum.Skipped || len(jobs) == 0 {
		return sum, err
	}

	// jobs outlive the trigger request but not the reaper window
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.StaleAfter)
	defer cancel()

	errs := make([]error, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		i, job := i, job
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = d.process(jobCtx, job)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			sum.Failed++
		} else {
			sum.Completed++
		}
	}
	d.logger.Info("dispatch run finished",
		"claimed", sum.Claimed,
		"completed", sum.Completed,
		"failed", sum.Failed,
		"reaped", sum.Reaped,
	)
	return sum, nil
}

func (d *Dispatcher) claim(ctx context.Context, sum *RunSummary) ([]Job, error) {
	if d.lease != nil {
		release, ok, err := d.lease.Acquire(ctx, d.opts.LeaseTTL)
		switch {
		case err != nil:
			d.logger.Warn("dispatch lease unavailable, continuing without it", "err", err)
		case !ok:
			d.logger.Info("another dispatcher run holds the lease; skipping")
			sum.Skipped = true
			return nil, nil
		default:
			defer release()
		}
	}

	now := d.now()
	reaped, err := d.repo.ReapStale(ctx, now, d.opts.StaleAfter)
	if err != nil {
		return nil, err
	}
	sum.Reaped = reaped
	if reaped > 0 {
		d.metrics.RecordReaped(ctx, reaped)
		d.logger.Warn("reaped stale jobs", "count", reaped)
	}

	sum.Reconciled, err = d.repo.Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	if sum.Reconciled > 0 {
		d.logger.Info("reconciled results with failed jobs", "count", sum.Reconciled)
	}

	jobs, err := d.repo.ClaimPending(ctx, d.opts.MaxProcessing, now)
	if err != nil {
		return nil, err
	}
	sum.Claimed = len(jobs)
	return jobs, nil
}

// process shields siblings from a panicking job.
func (d *Dispatcher) process(ctx context.Context, job Job) (err error) {
	start := time.Now()
	defer func() {
		if v := recover(); v != nil {
			err = panicError(v)
			d.pipeline.fail(ctx, job, err, start)
		}
	}()
	return d.pipeline.Process(ctx, job)
}
