// Package updatecheck compares the running build against the tags published
// on the project's GitHub repository.
package updatecheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v58/github"
	"go.uber.org/zap"
	"golang.org/x/mod/semver"
)

// DevVersion marks an unreleased build. It is never compared.
const DevVersion = "dev"

const defaultPageSize = 30

// ErrNoReleases is returned when the repository has no semver tag.
var ErrNoReleases = errors.New("no release tags found")

// Result describes the outcome of a check. Versions carry no "v" prefix.
type Result struct {
	Current         string `json:"current_version"`
	Latest          string `json:"latest_version,omitempty"`
	UpdateAvailable bool   `json:"update_available"`
	Skipped         bool   `json:"skipped,omitempty"`
}

// String renders the result for terminal output.
func (r Result) String() string {
	switch {
	case r.Skipped:
		return fmt.Sprintf("pagepilot %s (development build, update check skipped)", r.Current)
	case r.UpdateAvailable:
		return fmt.Sprintf("UPDATE AVAILABLE: v%s -> v%s", r.Current, r.Latest)
	default:
		return fmt.Sprintf("pagepilot v%s is up to date", r.Current)
	}
}

// Checker queries a repository's tags.
type Checker struct {
	client   *github.Client
	http     *http.Client
	baseURL  *url.URL
	owner    string
	repo     string
	pageSize int
	logger   *zap.Logger
}

// Option configures a Checker.
type Option func(*Checker) error

// WithHTTPClient sets the transport used for API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Checker) error {
		c.http = hc
		return nil
	}
}

// WithBaseURL points the checker at another API root, such as a GitHub
// Enterprise host or a test server.
func WithBaseURL(raw string) Option {
	return func(c *Checker) error {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid base url %q: %w", raw, err)
		}
		c.baseURL = u
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Checker) error {
		c.logger = logger.Named("updatecheck")
		return nil
	}
}

// New creates a checker for repository, given as "owner/name".
func New(repository string, opts ...Option) (*Checker, error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("repository must be in owner/name form, got %q", repository)
	}
	c := &Checker{
		owner:    owner,
		repo:     repo,
		pageSize: defaultPageSize,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.client = github.NewClient(c.http)
	if c.baseURL != nil {
		c.client.BaseURL = c.baseURL
	}
	return c, nil
}

// Latest returns the highest semver tag on the first page of tags, without
// its "v" prefix. Tags that are not semver are ignored.
func (c *Checker) Latest(ctx context.Context) (string, error) {
	tags, _, err := c.client.Repositories.ListTags(ctx, c.owner, c.repo, &github.ListOptions{PerPage: c.pageSize})
	if err != nil {
		return "", fmt.Errorf("failed to list tags of %s/%s: %w", c.owner, c.repo, err)
	}

	latest := ""
	for _, tag := range tags {
		v := canonical(tag.GetName())
		if v == "" {
			c.logger.Debug("Ignoring non-semver tag.", zap.String("tag", tag.GetName()))
			continue
		}
		if latest == "" || semver.Compare(v, latest) > 0 {
			latest = v
		}
	}
	if latest == "" {
		return "", ErrNoReleases
	}
	return strings.TrimPrefix(latest, "v"), nil
}

// Check compares current against the latest tag.
func (c *Checker) Check(ctx context.Context, current string) (Result, error) {
	res := Result{Current: strings.TrimPrefix(current, "v")}
	if current == "" || current == DevVersion {
		res.Skipped = true
		return res, nil
	}

	local := canonical(current)
	if local == "" {
		return res, fmt.Errorf("current version %q is not a semantic version", current)
	}

	latest, err := c.Latest(ctx)
	if err != nil {
		return res, err
	}
	res.Latest = latest
	res.UpdateAvailable = semver.Compare("v"+latest, local) > 0
	c.logger.Debug("Update check finished.",
		zap.String("current", res.Current),
		zap.String("latest", latest),
		zap.Bool("update_available", res.UpdateAvailable))
	return res, nil
}

// canonical accepts "1.2.3" and "v1.2.3" and returns the "v"-prefixed form,
// or "" when the input is not semver.
func canonical(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}
