package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"golang.org/x/time/rate"

	"github.com/starford/cheatsheet/internal/apperr"
	"github.com/starford/cheatsheet/internal/models"
)

const (
	acceptHeader = "application/vnd.github.v3+json"
	userAgent    = "cheatsheet-sync/1.0"
	maxBodySize  = 10 << 20
)

// GitHubOptions configures a GitHub contents API client.
type GitHubOptions struct {
	// BaseURL is the contents endpoint, e.g. https://api.github.com/repos/{owner}/{repo}/contents.
	BaseURL string
	// Ref is an optional branch, tag or commit.
	Ref string
	// Token is sent as a Bearer token when non-empty.
	Token string
	// ContentRoot is the directory holding the course directories.
	ContentRoot string
	// AppInfoPath is the gradle file carrying versionName / versionNameSuffix.
	AppInfoPath string
	// RequestsPerSecond paces outgoing requests; <= 0 disables pacing.
	RequestsPerSecond float64
	// HTTPClient defaults to a client without a timeout; callers bound requests with ctx.
	HTTPClient *http.Client
}

// GitHub reads files through the GitHub contents API.
type GitHub struct {
	base        *url.URL
	ref         string
	token       string
	contentRoot string
	appInfoPath string
	client      *http.Client
	limiter     *rate.Limiter
}

// NewGitHub creates a GitHub contents client.
func NewGitHub(opts GitHubOptions) (*GitHub, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("remote: unsupported scheme %q", base.Scheme)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &GitHub{
		base:        base,
		ref:         opts.Ref,
		token:       opts.Token,
		contentRoot: strings.Trim(opts.ContentRoot, "/"),
		appInfoPath: strings.Trim(opts.AppInfoPath, "/"),
		client:      client,
		limiter:     limiter,
	}, nil
}

// ListTopics returns the directory listing of a course.
func (g *GitHub) ListTopics(ctx context.Context, course models.Course) ([]models.RepoFile, error) {
	var files []models.RepoFile
	if err := g.get(ctx, path.Join(g.contentRoot, course.Dir), &files); err != nil {
		return nil, err
	}
	return files, nil
}

// TopicFile returns one topic file of a course.
func (g *GitHub) TopicFile(ctx context.Context, course models.Course, name string) (*models.RepoFile, error) {
	if name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("remote: invalid topic file name %q", name)
	}
	var f models.RepoFile
	if err := g.get(ctx, path.Join(g.contentRoot, course.Dir, name), &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// AppInfo returns the gradle build file.
func (g *GitHub) AppInfo(ctx context.Context) (*models.RepoFile, error) {
	var f models.RepoFile
	if err := g.get(ctx, g.appInfoPath, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (g *GitHub) endpoint(repoPath string) string {
	u := *g.base
	u.Path = g.base.Path + "/" + strings.TrimLeft(repoPath, "/")
	u.RawPath = ""
	if g.ref != "" {
		q := u.Query()
		q.Set("ref", g.ref)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// get performs a GET and decodes the JSON body into target.
// Non-2xx statuses and transport errors are reported as network failures.
func (g *GitHub) get(ctx context.Context, repoPath string, target any) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return apperr.Network(apperr.CodeTransport, err.Error(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint(repoPath), nil)
	if err != nil {
		return fmt.Errorf("remote: create request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", userAgent)
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return apperr.Network(apperr.CodeTransport, err.Error(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		var body struct {
			Message string `json:"message"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body) == nil && body.Message != "" {
			msg = body.Message
		}
		return apperr.Network(resp.StatusCode, msg, nil)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(target); err != nil {
		return apperr.Network(resp.StatusCode, "invalid response body", err)
	}
	return nil
}
