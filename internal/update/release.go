package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/adamancini/hoist/internal/logging"
)

const (
	defaultGitHubAPI  = "https://api.github.com"
	checksumsAsset    = "checksums.txt"
	defaultMaxElapsed = 30 * time.Second
)

// GitHubSource reads the latest release of a repository from the GitHub API.
type GitHubSource struct {
	owner      string
	repo       string
	pattern    string // Asset name glob or suffix; may contain {os} and {arch}
	token      string // Optional, for rate limiting and private repos
	client     *http.Client
	baseURL    string // Base URL for GitHub API (for testing)
	maxElapsed time.Duration
}

// GitHubRelease represents a GitHub release response
type GitHubRelease struct {
	TagName    string        `json:"tag_name"`
	Name       string        `json:"name"`
	Body       string        `json:"body"`
	HTMLURL    string        `json:"html_url"`
	Prerelease bool          `json:"prerelease"`
	Assets     []GitHubAsset `json:"assets"`
}

// GitHubAsset is one file attached to a release.
type GitHubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// NewGitHubSource creates a source for repo, given as "owner/name".
func NewGitHubSource(repo string) (*GitHubSource, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("invalid repository %q (expected owner/name)", repo)
	}
	return &GitHubSource{
		owner: owner,
		repo:  name,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:    defaultGitHubAPI,
		maxElapsed: defaultMaxElapsed,
	}, nil
}

// WithToken sets an optional GitHub token for authentication
func (s *GitHubSource) WithToken(token string) *GitHubSource {
	s.token = token
	return s
}

// WithAssetPattern selects the release asset to download.
func (s *GitHubSource) WithAssetPattern(pattern string) *GitHubSource {
	s.pattern = pattern
	return s
}

// WithBaseURL points the source at another API endpoint.
func (s *GitHubSource) WithBaseURL(baseURL string) *GitHubSource {
	s.baseURL = strings.TrimSuffix(baseURL, "/")
	return s
}

// WithMaxElapsed bounds how long transient API failures are retried.
func (s *GitHubSource) WithMaxElapsed(d time.Duration) *GitHubSource {
	s.maxElapsed = d
	return s
}

// Latest returns the newest release and the asset matching this platform.
func (s *GitHubSource) Latest(ctx context.Context) (*ReleaseArtifact, error) {
	release, err := s.latestRelease(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest release: %w", err)
	}

	asset, err := matchAsset(release.Assets, Detect().Expand(s.pattern))
	if err != nil {
		return nil, fmt.Errorf("release %s: %w", release.TagName, err)
	}

	artifact := &ReleaseArtifact{
		Version:     NormalizeVersion(release.TagName),
		DownloadURL: asset.BrowserDownloadURL,
		Notes:       release.Body,
	}

	for _, a := range release.Assets {
		if a.Name != checksumsAsset {
			continue
		}
		sums, err := downloadChecksums(ctx, s.client, a.BrowserDownloadURL)
		if err != nil {
			return nil, err
		}
		artifact.Checksum = sums[asset.Name]
		if artifact.Checksum == "" {
			return nil, fmt.Errorf("%s has no entry for %s", checksumsAsset, asset.Name)
		}
	}

	return artifact, nil
}

// latestRelease fetches the latest release, retrying rate limits and server errors.
func (s *GitHubSource) latestRelease(ctx context.Context) (*GitHubRelease, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", s.baseURL, s.owner, s.repo)
	log := logging.L("github")

	var release *GitHubRelease
	operation := func() error {
		r, err := s.getRelease(ctx, url)
		if err != nil {
			return err
		}
		release = r
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = s.maxElapsed

	err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		log.WithError(err).Warnf("release lookup failed, retrying in %v", wait)
	})
	if err != nil {
		return nil, err
	}
	return release, nil
}

func (s *GitHubSource) getRelease(ctx context.Context, url string) (*GitHubRelease, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	// Set headers
	req.Header.Set("Accept", "application/vnd.github+json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	default:
		return nil, backoff.Permanent(fmt.Errorf("GitHub API returned status %d", resp.StatusCode))
	}

	var release GitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	if release.TagName == "" {
		return nil, backoff.Permanent(errors.New("release has no tag"))
	}

	return &release, nil
}

// matchAsset picks the single asset matching pattern. A pattern without glob
// characters matches as a name suffix; an empty pattern takes the only
// archive attached to the release.
func matchAsset(assets []GitHubAsset, pattern string) (*GitHubAsset, error) {
	var matches []GitHubAsset
	for _, a := range assets {
		if a.Name == checksumsAsset {
			continue
		}
		if assetMatches(a.Name, pattern) {
			matches = append(matches, a)
		}
	}

	switch len(matches) {
	case 0:
		if pattern == "" {
			return nil, errors.New("no archive asset attached")
		}
		return nil, fmt.Errorf("no asset matches %q", pattern)
	case 1:
		return &matches[0], nil
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m.Name)
	}
	return nil, fmt.Errorf("%d assets match %q: %s", len(matches), pattern, strings.Join(names, ", "))
}

func assetMatches(name, pattern string) bool {
	if pattern == "" {
		return archiveExt(name) != ""
	}
	if strings.ContainsAny(pattern, "*?[") {
		ok, err := path.Match(pattern, name)
		return err == nil && ok
	}
	return strings.HasSuffix(name, pattern)
}

// StaticSource returns a release fixed in configuration.
type StaticSource struct {
	artifact ReleaseArtifact
}

// NewStaticSource creates a source that always returns artifact.
func NewStaticSource(artifact ReleaseArtifact) *StaticSource {
	return &StaticSource{artifact: artifact}
}

func (s *StaticSource) Latest(_ context.Context) (*ReleaseArtifact, error) {
	if s.artifact.DownloadURL == "" {
		return nil, errors.New("release url is not configured")
	}
	artifact := s.artifact
	artifact.Version = NormalizeVersion(artifact.Version)
	return &artifact, nil
}
