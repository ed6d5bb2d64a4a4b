package acquire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/suPer8Hu/siteaudit/internal/httpx"
)

// PageSpeedClient runs Lighthouse through the PageSpeed Insights v5 API.
type PageSpeedClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewPageSpeedClient(baseURL, apiKey string) *PageSpeedClient {
	if baseURL == "" {
		baseURL = "https://www.googleapis.com/pagespeedonline/v5"
	}
	return &PageSpeedClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

var pageSpeedCategories = []string{"PERFORMANCE", "ACCESSIBILITY", "BEST_PRACTICES", "SEO"}

type lhScore struct {
	Score *float64 `json:"score"`
}

type lhAudit struct {
	NumericValue *float64 `json:"numericValue"`
}

type pageSpeedResp struct {
	LighthouseResult struct {
		Categories struct {
			Performance   lhScore `json:"performance"`
			Accessibility lhScore `json:"accessibility"`
			BestPractices lhScore `json:"best-practices"`
			SEO           lhScore `json:"seo"`
		} `json:"categories"`
		Audits map[string]lhAudit `json:"audits"`
	} `json:"lighthouseResult"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *PageSpeedClient) Fetch(ctx context.Context, pageURL string) (*Performance, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("pagespeed: api key is required")
	}
	q := url.Values{}
	q.Set("url", pageURL)
	q.Set("strategy", "mobile")
	for _, cat := range pageSpeedCategories {
		q.Add("category", cat)
	}
	q.Set("key", c.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/runPagespeed?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Encoding", httpx.AcceptEncoding)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pagespeed: %w", err)
	}
	body, err := httpx.ReadBody(resp, 0)
	if err != nil {
		return nil, fmt.Errorf("pagespeed: %w", err)
	}
	if err := httpx.CheckStatus("pagespeed", resp, body); err != nil {
		return nil, err
	}

	var decoded pageSpeedResp
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("pagespeed: decode: %w", err)
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return nil, fmt.Errorf("pagespeed: %s", decoded.Error.Message)
	}

	lh := decoded.LighthouseResult
	audit := func(id string) *float64 {
		a, ok := lh.Audits[id]
		if !ok {
			return nil
		}
		return a.NumericValue
	}
	return &Performance{
		Performance:   percent(lh.Categories.Performance.Score),
		Accessibility: percent(lh.Categories.Accessibility.Score),
		BestPractices: percent(lh.Categories.BestPractices.Score),
		SEO:           percent(lh.Categories.SEO.Score),
		LCP:           audit("largest-contentful-paint"),
		FCP:           audit("first-contentful-paint"),
		CLS:           audit("cumulative-layout-shift"),
		TBT:           audit("total-blocking-time"),
		SpeedIndex:    audit("speed-index"),
	}, nil
}

func percent(score *float64) int {
	if score == nil {
		return 0
	}
	return int(math.Round(*score * 100))
}
