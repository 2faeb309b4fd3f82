package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hazyhaar/docudata/pkg/catalog"
)

// ErrInvalidID is returned for dataset ids that are not safe folder names.
var ErrInvalidID = errors.New("invalid dataset id")

var idRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

const downloadAttempts = 3

// retryDelay is the wait before a retry attempt.
var retryDelay = func(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// FetchRequest names a remote dataset and the manifest fields to record.
type FetchRequest struct {
	ID           string
	URL          string
	Version      string
	Jurisdiction string
	Kind         string
	Description  string
	Source       string
	License      string
	Encoding     string
}

// Fetch downloads a dataset into dir/<id>, checks that it loads, and writes
// its manifest. The previous copy, if any, is only replaced on success.
func Fetch(ctx context.Context, dir string, req FetchRequest, logger *slog.Logger) (*Manifest, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !idRe.MatchString(req.ID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, req.ID)
	}
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("fetch %s: unsupported url %q", req.ID, req.URL)
	}

	m := &Manifest{
		ID:           req.ID,
		Version:      req.Version,
		Jurisdiction: req.Jurisdiction,
		Kind:         req.Kind,
		Description:  req.Description,
		Source:       req.Source,
		SourceURL:    req.URL,
		License:      req.License,
		DataFile:     "data" + dataExt(u.Path),
		Encoding:     req.Encoding,
	}
	if m.Source == "" {
		m.Source = u.Host
	}
	if m.Version == "" {
		m.Version = time.Now().UTC().Format("2006-01-02")
	}

	dest := filepath.Join(dir, req.ID)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dest, err)
	}
	part := filepath.Join(dest, m.DataFile+".part")
	defer os.Remove(part)

	start := time.Now()
	if err := downloadFile(ctx, req.URL, part); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.ID, err)
	}
	data, err := os.ReadFile(part)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.ID, err)
	}
	cat, err := catalog.Load(data, catalog.LoadOptions{Name: m.DataFile, Encoding: m.Encoding, Jurisdiction: m.Jurisdiction, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.ID, err)
	}
	if err := os.Rename(part, filepath.Join(dest, m.DataFile)); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.ID, err)
	}
	if err := WriteManifest(dest, m); err != nil {
		return nil, err
	}
	logger.Info("dataset fetched", "id", req.ID, "records", cat.Len(), "bytes", len(data), "duration", time.Since(start))
	return m, nil
}

func dataExt(p string) string {
	switch ext := strings.ToLower(path.Ext(p)); ext {
	case ".json", ".yaml", ".yml":
		return ext
	}
	return ".json"
}

// downloadFile downloads rawURL to dest with retries and timeout.
func downloadFile(ctx context.Context, rawURL, dest string) error {
	client := &http.Client{Timeout: 5 * time.Minute}

	var lastErr error
	for attempt := 0; attempt < downloadAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d for %s", resp.StatusCode, rawURL)
			continue
		}

		f, err := os.Create(dest)
		if err != nil {
			resp.Body.Close()
			return fmt.Errorf("create file: %w", err)
		}

		_, copyErr := io.Copy(f, resp.Body)
		resp.Body.Close()
		closeErr := f.Close()

		if copyErr != nil {
			lastErr = copyErr
			continue
		}
		if closeErr != nil {
			return closeErr
		}
		return nil
	}
	return fmt.Errorf("download %s failed after %d attempts: %w", rawURL, downloadAttempts, lastErr)
}
