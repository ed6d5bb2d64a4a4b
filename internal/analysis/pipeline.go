package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/suPer8Hu/siteaudit/internal/acquire"
	"github.com/suPer8Hu/siteaudit/internal/assessment"
	"github.com/suPer8Hu/siteaudit/internal/evaldoc"
	"github.com/suPer8Hu/siteaudit/internal/observability"
	"github.com/suPer8Hu/siteaudit/internal/seo"
)

// TimeoutMessage replaces the raw error for any timeout a user would see.
const TimeoutMessage = "The website took too long to load. Please try again later."

// Acquirer fetches the raw material for a job.
type Acquirer interface {
	Acquire(ctx context.Context, req acquire.Request) (*acquire.Bundle, error)
}

// Scorer sends a document to the job's model and prices the model.
type Scorer interface {
	Score(ctx context.Context, modelKey, document string) (*assessment.Assessment, error)
	Cost(modelKey string) (int, error)
}

// Pipeline drives one claimed job to a terminal status.
type Pipeline struct {
	repo     *Repo
	acquirer Acquirer
	scorer   Scorer
	notifier Notifier
	logger   *slog.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

func NewPipeline(repo *Repo, acquirer Acquirer, scorer Scorer, notifier Notifier, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		repo:     repo,
		acquirer: acquirer,
		scorer:   scorer,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Process runs the job and records the outcome. The returned error is the job's
// failure, already persisted; it is informational for the caller.
func (p *Pipeline) Process(ctx context.Context, job Job) error {
	start := time.Now()
	log := p.logger.With("job_id", job.ID, "model", job.ModelKey)

	out, err := p.run(ctx, job)
	if err == nil {
		err = p.repo.Complete(ctx, job, *out, p.now())
		if errors.Is(err, ErrNotProcessing) {
			log.Warn("job left processing before completion; result discarded")
			p.metrics.RecordJob(ctx, job.ModelKey, "discarded", time.Since(start))
			return err
		}
	}
	if err != nil {
		p.fail(ctx, job, err, start)
		return err
	}

	p.metrics.RecordJob(ctx, job.ModelKey, string(JobCompleted), time.Since(start))
	log.Info("job completed", "overall_score", out.Assessment.OverallScore, "elapsed_ms", time.Since(start).Milliseconds())
	p.charge(ctx, job, log)
	p.publish(ctx, Event{
		JobID:        job.ID,
		ResultID:     job.ResultID,
		UserID:       job.UserID,
		ModelKey:     job.ModelKey,
		Status:       JobCompleted,
		OverallScore: &out.Assessment.OverallScore,
		At:           p.now(),
	})
	return nil
}

func (p *Pipeline) run(ctx context.Context, job Job) (*Outcome, error) {
	repoRef := ""
	if job.RepoRef != nil {
		repoRef = *job.RepoRef
	}
	bundle, err := p.acquirer.Acquire(ctx, acquire.Request{
		JobID:   job.ID,
		URL:     job.URL,
		RepoRef: repoRef,
		OnScreenshot: func(key string) {
			if err := p.repo.SetScreenshot(context.WithoutCancel(ctx), job.ResultID, key); err != nil {
				p.logger.Warn("save screenshot path failed", "job_id", job.ID, "err", err)
			}
		},
	})
	if err != nil {
		return nil, err
	}
	if err := p.repo.SetResultStatus(ctx, job.ResultID, ResultCrawling); err != nil {
		return nil, err
	}

	page := bundle.Page
	md, err := seo.Extract(page.RawHTML)
	if err != nil {
		return nil, err
	}
	links := page.Links
	if len(links) == 0 {
		links = seo.Anchors(page.RawHTML)
	}
	md.InternalLinks, md.ExternalLinks = seo.CountLinks(links, job.URL)

	content := page.Markdown
	if content == "" {
		content = seo.VisibleText(page.RawHTML)
	}

	doc := evaldoc.Build(evaldoc.Input{
		URL:         job.URL,
		Metadata:    md,
		Content:     content,
		Performance: bundle.Performance,
		Snapshot:    bundle.Snapshot,
	})
	if err := p.repo.SetResultStatus(ctx, job.ResultID, ResultAnalyzing); err != nil {
		return nil, err
	}

	a, err := p.scorer.Score(ctx, job.ModelKey, doc)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		RawText:     evaldoc.Truncate(content, evaldoc.MaxContentChars),
		Assessment:  a,
		Performance: bundle.Performance,
	}, nil
}

func (p *Pipeline) fail(ctx context.Context, job Job, cause error, start time.Time) {
	msg := UserMessage(cause)
	p.logger.Error("job failed", "job_id", job.ID, "model", job.ModelKey, "err", cause)
	// the job context may be what failed
	if err := p.repo.Fail(context.WithoutCancel(ctx), job, msg, p.now()); err != nil {
		p.logger.Error("record job failure failed", "job_id", job.ID, "err", err)
	}
	p.metrics.RecordJob(ctx, job.ModelKey, string(JobError), time.Since(start))
	p.publish(ctx, Event{
		JobID:    job.ID,
		ResultID: job.ResultID,
		UserID:   job.UserID,
		ModelKey: job.ModelKey,
		Status:   JobError,
		Error:    msg,
		At:       p.now(),
	})
}

// charge never fails the job; a ledger error is logged and counted.
func (p *Pipeline) charge(ctx context.Context, job Job, log *slog.Logger) {
	ctx = context.WithoutCancel(ctx)
	cost, err := p.scorer.Cost(job.ModelKey)
	if err == nil {
		_, err = p.repo.ChargeCredits(ctx, job.ID, job.UserID, cost, p.now())
	}
	if err != nil {
		p.metrics.RecordCreditFailure(ctx)
		log.Error("charge credits failed", "user_id", job.UserID, "err", err)
	}
}

func (p *Pipeline) publish(ctx context.Context, e Event) {
	if err := p.notifier.Publish(context.WithoutCancel(ctx), e); err != nil {
		p.logger.Warn("publish job event failed", "job_id", e.JobID, "err", err)
	}
}

// UserMessage is the text stored for a failed job: a fixed message for
// timeouts, the error itself otherwise.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if acquire.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return TimeoutMessage
	}
	return err.Error()
}

// panicError wraps a recovered panic from a job task.
func panicError(v any) error {
	return fmt.Errorf("job panicked: %v", v)
}
