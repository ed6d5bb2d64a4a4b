// Package acquire fetches the raw material for one analysis: page content,
// optional performance metrics and an optional source-code snapshot.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Format string

const (
	FormatMarkdown   Format = "markdown"
	FormatRawHTML    Format = "rawHtml"
	FormatLinks      Format = "links"
	FormatScreenshot Format = "screenshot"
)

// CodeScrapeTimeout is the content service's error code for a page that did not
// finish rendering within the requested timeout.
const CodeScrapeTimeout = "SCRAPE_TIMEOUT"

// ScrapeRequest is one call to the content service.
type ScrapeRequest struct {
	URL             string
	Formats         []Format
	OnlyMainContent bool
	WaitFor         time.Duration
	Timeout         time.Duration
}

// Page is the content service's answer. Fields for formats that were not
// requested stay empty.
type Page struct {
	Markdown   string
	RawHTML    string
	Links      []string
	Screenshot string
	StatusCode int
}

// ScrapeError is a structured failure reported by the content service.
type ScrapeError struct {
	Status  int
	Code    string
	Message string
}

func (e *ScrapeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("scrape failed (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("scrape failed: %s", e.Message)
}

// IsTimeout reports whether err is the content service's timeout condition.
func IsTimeout(err error) bool {
	var se *ScrapeError
	return errors.As(err, &se) && se.Code == CodeScrapeTimeout
}

// Performance is a mobile lab run: four 0-100 category scores and five vitals.
// A nil vital could not be measured. Timings are milliseconds; CLS is unitless.
type Performance struct {
	Performance   int `json:"performance"`
	Accessibility int `json:"accessibility"`
	BestPractices int `json:"bestPractices"`
	SEO           int `json:"seo"`

	LCP        *float64 `json:"lcp"`
	FCP        *float64 `json:"fcp"`
	CLS        *float64 `json:"cls"`
	TBT        *float64 `json:"tbt"`
	SpeedIndex *float64 `json:"speedIndex"`
}

type SourceFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Snapshot is a bounded view of a source repository.
type Snapshot struct {
	Repository string
	Tree       string
	Files      []SourceFile
	FileCount  int
	TotalChars int
}

// Scraper fetches page content.
type Scraper interface {
	Scrape(ctx context.Context, req ScrapeRequest) (*Page, error)
}

// PerformanceFetcher runs a lab performance audit.
type PerformanceFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*Performance, error)
}

// SnapshotFetcher loads a repository snapshot.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, repoRef string) (*Snapshot, error)
}
