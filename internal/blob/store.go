// Package blob stores binary artifacts such as page screenshots.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Store persists an object and returns its stable key.
type Store interface {
	Put(ctx context.Context, prefix, contentType string, data []byte) (string, error)
}

// FileStore writes content-addressed objects under a base directory.
type FileStore struct {
	baseDir string
}

func NewFileStore(baseDir string) (*FileStore, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("base directory must be provided")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Put writes data to <prefix>/<sha256><ext> and returns that relative path.
// Identical content is written once.
func (s *FileStore) Put(ctx context.Context, prefix, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty object")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	name := hex.EncodeToString(sum[:]) + extensionFor(contentType)
	rel := filepath.Join(filepath.Clean("/" + prefix)[1:], name)
	full := filepath.Join(s.baseDir, rel)

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create blob subdir: %w", err)
	}
	if _, err := os.Stat(full); err == nil {
		return rel, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat blob: %w", err)
	}

	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("commit blob: %w", err)
	}
	return rel, nil
}

func extensionFor(contentType string) string {
	ct, _, _ := mime.ParseMediaType(strings.TrimSpace(contentType))
	switch ct {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "":
		return ""
	}
	if exts, err := mime.ExtensionsByType(ct); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
