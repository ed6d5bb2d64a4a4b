package acquire

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/suPer8Hu/siteaudit/internal/blob"
	"github.com/suPer8Hu/siteaudit/internal/httpx"
	"github.com/suPer8Hu/siteaudit/internal/observability"
)

// ScreenshotUploader copies screenshots into blob storage in the background.
// Failures are logged and counted; they never reach the job.
type ScreenshotUploader struct {
	store   blob.Store
	client  *http.Client
	logger  *slog.Logger
	metrics *observability.Metrics
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewScreenshotUploader(store blob.Store, logger *slog.Logger, metrics *observability.Metrics) *ScreenshotUploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScreenshotUploader{
		store:   store,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
		metrics: metrics,
		timeout: time.Minute,
	}
}

// UploadAsync stores src (an http(s) URL or a data: URI) under the job's prefix
// and calls done with the stored key on success. It returns immediately.
func (u *ScreenshotUploader) UploadAsync(ctx context.Context, jobID, src string, done func(key string)) {
	if u == nil || u.store == nil || strings.TrimSpace(src) == "" {
		return
	}
	// detached: the upload may outlive the job task
	upCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.timeout)
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		defer cancel()
		key, err := u.upload(upCtx, jobID, src)
		if err != nil {
			u.metrics.RecordScreenshotFailure(upCtx)
			u.logger.Warn("screenshot upload failed", "job_id", jobID, "err", err)
			return
		}
		if done != nil {
			done(key)
		}
	}()
}

// Wait blocks until in-flight uploads finish.
func (u *ScreenshotUploader) Wait() {
	if u != nil {
		u.wg.Wait()
	}
}

func (u *ScreenshotUploader) upload(ctx context.Context, jobID, src string) (string, error) {
	data, contentType, err := u.load(ctx, src)
	if err != nil {
		return "", err
	}
	return u.store.Put(ctx, "screenshots/"+jobID, contentType, data)
}

func (u *ScreenshotUploader) load(ctx context.Context, src string) ([]byte, string, error) {
	if strings.HasPrefix(src, "data:") {
		return decodeDataURI(src)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download screenshot: %w", err)
	}
	body, err := httpx.ReadBody(resp, 0)
	if err != nil {
		return nil, "", fmt.Errorf("download screenshot: %w", err)
	}
	if err := httpx.CheckStatus("screenshot", resp, nil); err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func decodeDataURI(src string) ([]byte, string, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, "", errors.New("malformed data uri")
	}
	contentType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return []byte(payload), contentType, nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data uri: %w", err)
	}
	return data, contentType, nil
}
