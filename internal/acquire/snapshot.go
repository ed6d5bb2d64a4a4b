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

	"github.com/suPer8Hu/siteaudit/internal/httpx"
)

// SnapshotClient calls the internal repository snapshot endpoint.
type SnapshotClient struct {
	URL            string
	Token          string
	MaxFiles       int
	MaxTreeEntries int
	Client         *http.Client
}

func NewSnapshotClient(endpoint, token string) *SnapshotClient {
	return &SnapshotClient{
		URL:            endpoint,
		Token:          token,
		MaxFiles:       40,
		MaxTreeEntries: 400,
		Client:         &http.Client{Timeout: 60 * time.Second},
	}
}

type snapshotReq struct {
	Repository     string `json:"repository"`
	MaxFiles       int    `json:"maxFiles"`
	MaxTreeEntries int    `json:"maxTreeEntries"`
}

type snapshotResp struct {
	Success    bool         `json:"success"`
	Error      string       `json:"error,omitempty"`
	Repository string       `json:"repository"`
	Tree       string       `json:"tree"`
	Files      []SourceFile `json:"files"`
	FileCount  int          `json:"fileCount"`
	TotalChars int          `json:"totalChars"`
}

func (c *SnapshotClient) Fetch(ctx context.Context, repoRef string) (*Snapshot, error) {
	if strings.TrimSpace(c.URL) == "" {
		return nil, errors.New("snapshot: endpoint is not configured")
	}
	b, err := json.Marshal(snapshotReq{
		Repository:     repoRef,
		MaxFiles:       c.MaxFiles,
		MaxTreeEntries: c.MaxTreeEntries,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", httpx.AcceptEncoding)
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	body, err := httpx.ReadBody(resp, 0)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if err := httpx.CheckStatus("snapshot", resp, body); err != nil {
		return nil, err
	}

	var decoded snapshotResp
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	if !decoded.Success {
		msg := decoded.Error
		if msg == "" {
			msg = "unsuccessful response"
		}
		return nil, fmt.Errorf("snapshot: %s", msg)
	}

	repo := decoded.Repository
	if repo == "" {
		repo = repoRef
	}
	return &Snapshot{
		Repository: repo,
		Tree:       decoded.Tree,
		Files:      decoded.Files,
		FileCount:  decoded.FileCount,
		TotalChars: decoded.TotalChars,
	}, nil
}
