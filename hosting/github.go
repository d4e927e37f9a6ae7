package hosting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/input-output-hk/catalyst-forge-release/errors"
	"github.com/input-output-hk/catalyst-forge-release/internal/httpstatus"
)

// DefaultGitHubAPI is the public GitHub REST endpoint.
const DefaultGitHubAPI = "https://api.github.com"

// GitHub records releases through the GitHub REST API.
type GitHub struct {
	baseURL string
	owner   string
	repo    string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// GitHubOption configures a GitHub recorder.
type GitHubOption func(*GitHub)

// WithBaseURL points the recorder at a GitHub Enterprise or test server.
func WithBaseURL(u string) GitHubOption {
	return func(g *GitHub) {
		if u != "" {
			g.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) GitHubOption {
	return func(g *GitHub) {
		if client != nil {
			g.client = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) GitHubOption {
	return func(g *GitHub) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGitHub returns a recorder for owner/repo.
func NewGitHub(owner, repo, token string, opts ...GitHubOption) *GitHub {
	g := &GitHub{
		baseURL: DefaultGitHubAPI,
		owner:   owner,
		repo:    repo,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name implements Recorder.
func (g *GitHub) Name() string {
	return "github"
}

type githubRelease struct {
	ID              int64  `json:"id,omitempty"`
	TagName         string `json:"tag_name"`
	TargetCommitish string `json:"target_commitish"`
	Name            string `json:"name"`
	Body            string `json:"body"`
	Draft           bool   `json:"draft"`
	Prerelease      bool   `json:"prerelease"`
	HTMLURL         string `json:"html_url,omitempty"`
}

type githubError struct {
	Message string `json:"message"`
	Errors  []struct {
		Resource string `json:"resource"`
		Code     string `json:"code"`
		Field    string `json:"field"`
	} `json:"errors"`
}

func (r githubRelease) record() *Record {
	return &Record{
		ID:         r.ID,
		Tag:        r.TagName,
		Commit:     r.TargetCommitish,
		Title:      r.Name,
		Body:       r.Body,
		Draft:      r.Draft,
		Prerelease: r.Prerelease,
		URL:        r.HTMLURL,
	}
}

// CreateRelease creates a release whose tag GitHub creates at rec.Commit.
func (g *GitHub) CreateRelease(ctx context.Context, rec Record) (*Record, error) {
	if err := validate(rec); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(githubRelease{
		TagName:         rec.Tag,
		TargetCommitish: rec.Commit,
		Name:            rec.Title,
		Body:            rec.Body,
		Draft:           rec.Draft,
		Prerelease:      rec.Prerelease,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to marshal release")
	}

	resp, err := g.do(ctx, http.MethodPost, g.repoPath("releases"), payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
	case http.StatusUnprocessableEntity:
		var ghErr githubError
		if err := json.NewDecoder(resp.Body).Decode(&ghErr); err == nil && ghErr.alreadyExists() {
			return nil, releaseExists(rec.Tag, nil)
		}
		return nil, errors.Newf(errors.CodeInvalidInput, "github rejected release %s: %s", rec.Tag, ghErr.Message)
	default:
		return nil, httpstatus.Error(resp, errors.CodeExecutionFailed, "create release")
	}

	var out githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, errors.CodeExecutionFailed, "invalid github response")
	}
	g.logger.Info("created github release", "tag", out.TagName, "url", out.HTMLURL)
	return out.record(), nil
}

// GetRelease returns the release for tag.
func (g *GitHub) GetRelease(ctx context.Context, tag string) (*Record, error) {
	resp, err := g.do(ctx, http.MethodGet, g.repoPath("releases", "tags", tag), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, releaseNotFound(tag)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpstatus.Error(resp, errors.CodeExecutionFailed, "get release")
	}

	var out githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, errors.CodeExecutionFailed, "invalid github response")
	}
	return out.record(), nil
}

func (e githubError) alreadyExists() bool {
	for _, item := range e.Errors {
		if item.Code == "already_exists" {
			return true
		}
	}
	return false
}

func (g *GitHub) repoPath(parts ...string) string {
	escaped := make([]string, 0, len(parts)+3)
	escaped = append(escaped, "repos", url.PathEscape(g.owner), url.PathEscape(g.repo))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return g.baseURL + "/" + strings.Join(escaped, "/")
}

func (g *GitHub) do(ctx context.Context, method, endpoint string, body []byte) (*http.Response, error) {
	if g.owner == "" || g.repo == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "github owner and repository are required")
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "invalid github url")
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeNetwork, fmt.Sprintf("github %s failed", method))
	}
	return resp, nil
}
