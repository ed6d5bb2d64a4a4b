package acquire

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/suPer8Hu/siteaudit/internal/httpx"
)

// ContentClient talks to a Firecrawl-compatible scrape API.
type ContentClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	limiter *rate.Limiter
}

// NewContentClient throttles calls to perMinute requests (0 disables throttling).
func NewContentClient(baseURL, apiKey string, perMinute int) *ContentClient {
	if baseURL == "" {
		baseURL = "https://api.firecrawl.dev"
	}
	c := &ContentClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  &http.Client{},
	}
	if perMinute > 0 {
		burst := perMinute / 10
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
	}
	return c
}

type scrapeReq struct {
	URL             string   `json:"url"`
	Formats         []Format `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
	WaitFor         int64    `json:"waitFor,omitempty"`
	Timeout         int64    `json:"timeout,omitempty"`
}

type scrapeResp struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    struct {
		Markdown   string   `json:"markdown"`
		RawHTML    string   `json:"rawHtml"`
		HTML       string   `json:"html"`
		Links      []string `json:"links"`
		Screenshot string   `json:"screenshot"`
		Metadata   struct {
			StatusCode int `json:"statusCode"`
		} `json:"metadata"`
	} `json:"data"`
}

func (c *ContentClient) Scrape(ctx context.Context, r ScrapeRequest) (*Page, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("content api: api key is required")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	b, err := json.Marshal(scrapeReq{
		URL:             r.URL,
		Formats:         r.Formats,
		OnlyMainContent: r.OnlyMainContent,
		WaitFor:         r.WaitFor.Milliseconds(),
		Timeout:         r.Timeout.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/scrape", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", httpx.AcceptEncoding)
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("content api: %w", err)
	}
	body, err := httpx.ReadBody(resp, 0)
	if err != nil {
		return nil, fmt.Errorf("content api: %w", err)
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	var decoded scrapeResp
	if err := json.Unmarshal(body, &decoded); err != nil {
		if ok {
			return nil, fmt.Errorf("content api: decode: %w", err)
		}
		return nil, newScrapeError(resp.StatusCode, "", httpx.CheckStatus("content api", resp, body).Error())
	}
	if !ok || !decoded.Success {
		msg := decoded.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, newScrapeError(resp.StatusCode, decoded.Code, msg)
	}

	raw := decoded.Data.RawHTML
	if raw == "" {
		raw = decoded.Data.HTML
	}
	return &Page{
		Markdown:   decoded.Data.Markdown,
		RawHTML:    raw,
		Links:      decoded.Data.Links,
		Screenshot: decoded.Data.Screenshot,
		StatusCode: decoded.Data.Metadata.StatusCode,
	}, nil
}

func newScrapeError(status int, code, msg string) *ScrapeError {
	if code == "" && status == http.StatusRequestTimeout {
		code = CodeScrapeTimeout
	}
	return &ScrapeError{Status: status, Code: code, Message: msg}
}
