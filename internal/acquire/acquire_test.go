package acquire

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/siteaudit/internal/blob"
)

func newContentServer(t *testing.T, handle func(n int32, req scrapeReq) (int, any)) (*httptest.Server, *int32, *[]scrapeReq) {
	t.Helper()
	var (
		calls int32
		mu    sync.Mutex
		seen  []scrapeReq
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/scrape", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var req scrapeReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		seen = append(seen, req)
		mu.Unlock()
		status, body := handle(atomic.AddInt32(&calls, 1), req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls, &seen
}

func okPage(markdown string) map[string]any {
	return map[string]any{
		"success": true,
		"data": map[string]any{
			"markdown": markdown,
			"rawHtml":  "<html><head><title>t</title></head></html>",
			"links":    []string{"https://example.com/a"},
			"metadata": map[string]any{"statusCode": 200},
		},
	}
}

func TestPrimary_RetriesOnceOnTimeoutWithReducedRequest(t *testing.T) {
	srv, calls, seen := newContentServer(t, func(n int32, _ scrapeReq) (int, any) {
		if n == 1 {
			return http.StatusRequestTimeout, map[string]any{"success": false, "code": CodeScrapeTimeout, "error": "timed out"}
		}
		return http.StatusOK, okPage("# reduced")
	})

	a := New(NewContentClient(srv.URL, "test-key", 0), DefaultOptions())
	page, retried, err := a.Primary(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.True(t, retried)
	assert.Equal(t, "# reduced", page.Markdown)
	assert.EqualValues(t, 2, atomic.LoadInt32(calls))

	first, second := (*seen)[0], (*seen)[1]
	assert.Len(t, first.Formats, 4)
	assert.False(t, first.OnlyMainContent)
	assert.EqualValues(t, 3000, first.WaitFor)
	assert.EqualValues(t, 30000, first.Timeout)
	assert.Equal(t, []Format{FormatMarkdown, FormatLinks}, second.Formats)
	assert.True(t, second.OnlyMainContent)
}

func TestPrimary_SecondTimeoutIsTerminal(t *testing.T) {
	srv, calls, _ := newContentServer(t, func(int32, scrapeReq) (int, any) {
		return http.StatusOK, map[string]any{"success": false, "code": CodeScrapeTimeout, "error": "timed out"}
	})

	a := New(NewContentClient(srv.URL, "test-key", 0), DefaultOptions())
	_, retried, err := a.Primary(context.Background(), "https://example.com")
	require.Error(t, err)
	assert.True(t, retried)
	assert.True(t, IsTimeout(err))
	assert.EqualValues(t, 2, atomic.LoadInt32(calls))
}

func TestPrimary_OtherErrorsAreNotRetried(t *testing.T) {
	srv, calls, _ := newContentServer(t, func(int32, scrapeReq) (int, any) {
		return http.StatusBadGateway, map[string]any{"success": false, "error": "upstream blocked"}
	})

	a := New(NewContentClient(srv.URL, "test-key", 0), DefaultOptions())
	_, retried, err := a.Primary(context.Background(), "https://example.com")
	require.Error(t, err)
	assert.False(t, retried)
	assert.False(t, IsTimeout(err))
	assert.Contains(t, err.Error(), "upstream blocked")
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestContentClient_BareRequestTimeoutCountsAsTimeout(t *testing.T) {
	srv, _, _ := newContentServer(t, func(int32, scrapeReq) (int, any) {
		return http.StatusRequestTimeout, "gateway gave up"
	})

	_, err := NewContentClient(srv.URL, "test-key", 0).Scrape(context.Background(), ScrapeRequest{URL: "https://example.com"})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestContentClient_RequiresAPIKey(t *testing.T) {
	_, err := NewContentClient("http://unused", "", 0).Scrape(context.Background(), ScrapeRequest{URL: "https://example.com"})
	require.Error(t, err)
}

type stubScraper struct {
	page *Page
	err  error
}

func (s stubScraper) Scrape(context.Context, ScrapeRequest) (*Page, error) { return s.page, s.err }

type stubPerf struct {
	perf *Performance
	err  error
}

func (s stubPerf) Fetch(context.Context, string) (*Performance, error) { return s.perf, s.err }

type stubSnap struct {
	called *int32
	snap   *Snapshot
	err    error
}

func (s stubSnap) Fetch(context.Context, string) (*Snapshot, error) {
	if s.called != nil {
		atomic.AddInt32(s.called, 1)
	}
	return s.snap, s.err
}

func TestAcquire_EnrichmentFailuresAreSwallowed(t *testing.T) {
	a := New(
		stubScraper{page: &Page{Markdown: "hello"}},
		DefaultOptions(),
		WithPerformance(stubPerf{err: errors.New("quota exceeded")}),
		WithSnapshots(stubSnap{err: errors.New("repo not found")}),
	)

	bundle, err := a.Acquire(context.Background(), Request{JobID: "j1", URL: "https://example.com", RepoRef: "acme/site"})
	require.NoError(t, err)
	assert.Equal(t, "hello", bundle.Page.Markdown)
	assert.Nil(t, bundle.Performance)
	assert.Nil(t, bundle.Snapshot)
}

func TestAcquire_PrimaryFailureFailsTheBundle(t *testing.T) {
	a := New(
		stubScraper{err: &ScrapeError{Status: 500, Message: "boom"}},
		DefaultOptions(),
		WithPerformance(stubPerf{perf: &Performance{Performance: 90}}),
	)

	_, err := a.Acquire(context.Background(), Request{JobID: "j1", URL: "https://example.com"})
	require.Error(t, err)
}

func TestAcquire_SnapshotSkippedWithoutRepo(t *testing.T) {
	var called int32
	a := New(
		stubScraper{page: &Page{Markdown: "hello"}},
		DefaultOptions(),
		WithSnapshots(stubSnap{called: &called, snap: &Snapshot{}}),
	)

	_, err := a.Acquire(context.Background(), Request{JobID: "j1", URL: "https://example.com"})
	require.NoError(t, err)
	assert.Zero(t, atomic.LoadInt32(&called))
}

func TestAcquire_AllSourcesMerged(t *testing.T) {
	a := New(
		stubScraper{page: &Page{Markdown: "hello"}},
		DefaultOptions(),
		WithPerformance(stubPerf{perf: &Performance{Performance: 71}}),
		WithSnapshots(stubSnap{snap: &Snapshot{Repository: "acme/site", FileCount: 2}}),
	)

	bundle, err := a.Acquire(context.Background(), Request{JobID: "j1", URL: "https://example.com", RepoRef: "acme/site"})
	require.NoError(t, err)
	require.NotNil(t, bundle.Performance)
	require.NotNil(t, bundle.Snapshot)
	assert.Equal(t, 71, bundle.Performance.Performance)
	assert.Equal(t, 2, bundle.Snapshot.FileCount)
}

func TestAcquire_ScreenshotUploadedInBackground(t *testing.T) {
	store, err := blob.NewFileStore(t.TempDir())
	require.NoError(t, err)
	shots := NewScreenshotUploader(store, nil, nil)

	png := base64.StdEncoding.EncodeToString([]byte("fake-png"))
	a := New(
		stubScraper{page: &Page{Markdown: "hello", Screenshot: "data:image/png;base64," + png}},
		DefaultOptions(),
		WithScreenshots(shots),
	)

	keys := make(chan string, 1)
	_, err = a.Acquire(context.Background(), Request{
		JobID:        "01JOB",
		URL:          "https://example.com",
		OnScreenshot: func(key string) { keys <- key },
	})
	require.NoError(t, err)
	shots.Wait()

	select {
	case key := <-keys:
		assert.Contains(t, key, "01JOB")
	case <-time.After(time.Second):
		t.Fatal("screenshot callback not called")
	}
}

func TestScreenshotUploader_FailureDoesNotCallBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	store, err := blob.NewFileStore(t.TempDir())
	require.NoError(t, err)
	shots := NewScreenshotUploader(store, nil, nil)

	var called int32
	shots.UploadAsync(context.Background(), "01JOB", srv.URL+"/shot.png", func(string) { atomic.AddInt32(&called, 1) })
	shots.Wait()
	assert.Zero(t, atomic.LoadInt32(&called))
}

func TestPageSpeedClient_ParsesScoresAndVitals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/runPagespeed", r.URL.Path)
		assert.Equal(t, "mobile", r.URL.Query().Get("strategy"))
		assert.Len(t, r.URL.Query()["category"], 4)
		_, _ = w.Write([]byte(`{"lighthouseResult":{
			"categories":{"performance":{"score":0.876},"accessibility":{"score":1},"best-practices":{"score":0.5},"seo":{"score":null}},
			"audits":{"largest-contentful-paint":{"numericValue":2512.4},"cumulative-layout-shift":{"numericValue":0.031}}}}`))
	}))
	defer srv.Close()

	perf, err := NewPageSpeedClient(srv.URL, "k").Fetch(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, 88, perf.Performance)
	assert.Equal(t, 100, perf.Accessibility)
	assert.Equal(t, 50, perf.BestPractices)
	assert.Equal(t, 0, perf.SEO)
	require.NotNil(t, perf.LCP)
	assert.InDelta(t, 2512.4, *perf.LCP, 0.001)
	require.NotNil(t, perf.CLS)
	assert.Nil(t, perf.FCP)
	assert.Nil(t, perf.TBT)
}

func TestSnapshotClient_ParsesFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req snapshotReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "acme/site", req.Repository)
		assert.Equal(t, 40, req.MaxFiles)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":    true,
			"tree":       "src/\n  main.ts",
			"files":      []map[string]string{{"path": "src/main.ts", "content": "export {}"}},
			"fileCount":  1,
			"totalChars": 9,
		})
	}))
	defer srv.Close()

	snap, err := NewSnapshotClient(srv.URL, "secret").Fetch(context.Background(), "acme/site")
	require.NoError(t, err)
	assert.Equal(t, "acme/site", snap.Repository)
	require.Len(t, snap.Files, 1)
	assert.Equal(t, "src/main.ts", snap.Files[0].Path)
}

func TestSnapshotClient_UnsuccessfulIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"private repository"}`))
	}))
	defer srv.Close()

	_, err := NewSnapshotClient(srv.URL, "").Fetch(context.Background(), "acme/private")
	require.ErrorContains(t, err, "private repository")
}
