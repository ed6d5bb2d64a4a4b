package acquire

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/suPer8Hu/siteaudit/internal/observability"
)

// Options carries the primary fetch budgets: how long the remote renderer waits
// for the page, the timeout it is asked to honour, and the local hard abort.
type Options struct {
	WaitFor time.Duration
	Timeout time.Duration
	Abort   time.Duration
}

func DefaultOptions() Options {
	return Options{WaitFor: 3 * time.Second, Timeout: 30 * time.Second, Abort: 45 * time.Second}
}

// Acquirer runs the three fetches of one job.
type Acquirer struct {
	content Scraper
	perf    PerformanceFetcher
	snap    SnapshotFetcher
	shots   *ScreenshotUploader
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

type Option func(*Acquirer)

func WithPerformance(f PerformanceFetcher) Option {
	return func(a *Acquirer) { a.perf = f }
}

func WithSnapshots(f SnapshotFetcher) Option {
	return func(a *Acquirer) { a.snap = f }
}

func WithScreenshots(u *ScreenshotUploader) Option {
	return func(a *Acquirer) { a.shots = u }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Acquirer) { a.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(a *Acquirer) { a.metrics = m }
}

func New(content Scraper, opts Options, options ...Option) *Acquirer {
	a := &Acquirer{content: content, opts: opts, logger: slog.Default()}
	for _, o := range options {
		o(a)
	}
	return a
}

// Request identifies what to fetch for one job. OnScreenshot, if set, receives
// the blob key once the background screenshot upload succeeds.
type Request struct {
	JobID        string
	URL          string
	RepoRef      string
	OnScreenshot func(key string)
}

// Bundle is everything fetched for one job. Performance and Snapshot are nil
// when not configured, not requested, or failed.
type Bundle struct {
	Page        *Page
	Performance *Performance
	Snapshot    *Snapshot
	Retried     bool
}

// Acquire issues all fetches before waiting on any of them. Only a primary
// content failure is returned; enrichment failures are logged and dropped.
func (a *Acquirer) Acquire(ctx context.Context, req Request) (*Bundle, error) {
	var (
		g      errgroup.Group
		bundle Bundle
	)

	g.Go(func() error {
		page, retried, err := a.Primary(ctx, req.URL)
		if err != nil {
			return err
		}
		bundle.Page, bundle.Retried = page, retried
		if page.Screenshot != "" {
			a.shots.UploadAsync(ctx, req.JobID, page.Screenshot, req.OnScreenshot)
		}
		return nil
	})

	if a.perf != nil {
		g.Go(func() error {
			perf, err := a.perf.Fetch(ctx, req.URL)
			if err != nil {
				a.metrics.RecordEnrichmentFailure(ctx, "performance")
				a.logger.Warn("performance fetch failed", "job_id", req.JobID, "err", err)
				return nil
			}
			bundle.Performance = perf
			return nil
		})
	}

	if a.snap != nil && req.RepoRef != "" {
		g.Go(func() error {
			snap, err := a.snap.Fetch(ctx, req.RepoRef)
			if err != nil {
				a.metrics.RecordEnrichmentFailure(ctx, "source")
				a.logger.Warn("source snapshot fetch failed", "job_id", req.JobID, "repo", req.RepoRef, "err", err)
				return nil
			}
			bundle.Snapshot = snap
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// Primary fetches the full page. On the service's timeout code it retries once
// with a reduced request: markdown and links only, main content only.
func (a *Acquirer) Primary(ctx context.Context, pageURL string) (*Page, bool, error) {
	full := ScrapeRequest{
		URL:     pageURL,
		Formats: []Format{FormatMarkdown, FormatRawHTML, FormatLinks, FormatScreenshot},
		WaitFor: a.opts.WaitFor,
		Timeout: a.opts.Timeout,
	}
	page, err := a.scrape(ctx, full)
	if err == nil {
		return page, false, nil
	}
	if !IsTimeout(err) {
		return nil, false, err
	}

	a.logger.Info("scrape timed out, retrying with reduced request", "url", pageURL)
	reduced := full
	reduced.Formats = []Format{FormatMarkdown, FormatLinks}
	reduced.OnlyMainContent = true
	page, err = a.scrape(ctx, reduced)
	if err != nil {
		return nil, true, err
	}
	return page, true, nil
}

func (a *Acquirer) scrape(ctx context.Context, req ScrapeRequest) (*Page, error) {
	if a.opts.Abort > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Abort)
		defer cancel()
	}
	return a.content.Scrape(ctx, req)
}
