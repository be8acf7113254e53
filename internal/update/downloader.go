package update

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultUserAgent = "hoist/dev"

// HTTPDownloader streams release archives over HTTP.
type HTTPDownloader struct {
	client    *http.Client
	userAgent string
}

// NewHTTPDownloader creates a new HTTP downloader
func NewHTTPDownloader() *HTTPDownloader {
	return &HTTPDownloader{
		client:    &http.Client{},
		userAgent: defaultUserAgent,
	}
}

// WithTimeout bounds the whole transfer, including reading the body.
func (d *HTTPDownloader) WithTimeout(timeout time.Duration) *HTTPDownloader {
	d.client.Timeout = timeout
	return d
}

// WithUserAgent sets the User-Agent header sent with every request.
func (d *HTTPDownloader) WithUserAgent(ua string) *HTTPDownloader {
	if ua != "" {
		d.userAgent = ua
	}
	return d
}

// Fetch downloads url into a new temp file inside dir.
// The partial file is removed on any error, including cancellation.
func (d *HTTPDownloader) Fetch(ctx context.Context, rawURL, dir string, onProgress func(Progress)) (path string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &NetworkError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", d.classify(ctx, rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HTTPStatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	out, err := os.CreateTemp(dir, "archive-*"+archiveExt(rawURL))
	if err != nil {
		return "", fmt.Errorf("failed to create download file: %w", err)
	}
	defer func() {
		_ = out.Close()
		if err != nil {
			_ = os.Remove(out.Name())
		}
	}()

	pw := &progressWriter{total: resp.ContentLength, report: onProgress}
	if _, err := io.Copy(io.MultiWriter(out, pw), resp.Body); err != nil {
		return "", d.classify(ctx, rawURL, err)
	}
	// A context cancelled right as the body hit EOF still counts as cancelled.
	if ctx.Err() != nil {
		return "", &CancelledError{Err: ctx.Err()}
	}
	pw.finish()

	if err := out.Sync(); err != nil {
		return "", fmt.Errorf("failed to flush download: %w", err)
	}

	return out.Name(), nil
}

func (d *HTTPDownloader) classify(ctx context.Context, rawURL string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return &CancelledError{Err: err}
	}
	return &NetworkError{URL: rawURL, Err: err}
}

// progressWriter counts bytes and reports whole-percent changes.
type progressWriter struct {
	total      int64
	received   int64
	lastBucket int64
	report     func(Progress)
}

const unknownTotalStep = 1 << 20

func (p *progressWriter) Write(b []byte) (int, error) {
	p.received += int64(len(b))
	if p.report == nil {
		return len(b), nil
	}

	var bucket int64
	if p.total > 0 {
		bucket = p.received * 100 / p.total
	} else {
		bucket = p.received / unknownTotalStep
	}
	if bucket != p.lastBucket {
		p.lastBucket = bucket
		p.report(Progress{Received: p.received, Total: p.total})
	}
	return len(b), nil
}

func (p *progressWriter) finish() {
	if p.report != nil {
		p.report(Progress{Received: p.received, Total: p.total})
	}
}

// archiveExt keeps the archive extension of the URL path for the temp file.
func archiveExt(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	lower := strings.ToLower(p)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"):
		return ".tar.gz"
	case strings.HasSuffix(lower, ".tgz"):
		return ".tgz"
	case strings.HasSuffix(lower, ".zip"):
		return ".zip"
	}
	return ""
}

// VerifyChecksum verifies the file's SHA-256 against the expected hex digest.
func VerifyChecksum(file, expected string) error {
	actual, err := calculateSHA256(file)
	if err != nil {
		return fmt.Errorf("failed to calculate checksum: %w", err)
	}

	expected = strings.ToLower(strings.TrimSpace(expected))
	if actual != expected {
		return &ChecksumError{Expected: expected, Actual: actual}
	}

	return nil
}

// calculateSHA256 returns the hex SHA-256 digest of a file.
func calculateSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// downloadChecksums fetches a checksums.txt file ("<digest>  <name>" per line).
// Malformed lines are skipped.
func downloadChecksums(ctx context.Context, client *http.Client, checksumURL string) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checksumURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download checksums: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPStatusError{URL: checksumURL, StatusCode: resp.StatusCode}
	}

	checksums := make(map[string]string)
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		checksums[strings.TrimPrefix(fields[1], "*")] = strings.ToLower(fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read checksums: %w", err)
	}

	return checksums, nil
}

// getFilename returns the last element of a path.
func getFilename(path string) string {
	return filepath.Base(path)
}
