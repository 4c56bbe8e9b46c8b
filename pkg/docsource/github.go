package docsource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"go.uber.org/zap"
)

// GitHubOptions configures the GitHub-backed source.
type GitHubOptions struct {
	Owner       string
	Repository  string
	Branch      string
	AccessToken string
	Timeout     time.Duration
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// GitHubSource reads documents through the GitHub contents and commits APIs.
type GitHubSource struct {
	client *github.Client
	owner  string
	repo   string
	branch string
	logger *zap.Logger
}

// NewGitHubSource builds a source for one repository branch.
func NewGitHubSource(opts GitHubOptions) (*GitHubSource, error) {
	if opts.Owner == "" || opts.Repository == "" {
		return nil, errors.New("github source requires owner and repository")
	}
	if opts.Branch == "" {
		opts.Branch = "main"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	client := github.NewClient(httpClient)
	if token := strings.TrimSpace(opts.AccessToken); token != "" {
		client = client.WithAuthToken(token)
	} else {
		opts.Logger.Warn("github access token not configured, requests are limited to 60 per hour")
	}
	if opts.BaseURL != "" {
		base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		client.BaseURL = base
	}

	return &GitHubSource{
		client: client,
		owner:  opts.Owner,
		repo:   opts.Repository,
		branch: opts.Branch,
		logger: opts.Logger,
	}, nil
}

// ListFiles lists the entries of folder.
func (s *GitHubSource) ListFiles(ctx context.Context, folder string) ([]File, error) {
	file, dir, _, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, cleanPath(folder), s.refOptions())
	if err != nil {
		return nil, s.translate("list folder", folder, err)
	}
	if file != nil {
		return []File{{Name: file.GetName(), Path: file.GetPath(), IsFile: file.GetType() == "file"}}, nil
	}
	files := make([]File, 0, len(dir))
	for _, entry := range dir {
		files = append(files, File{
			Name:   entry.GetName(),
			Path:   entry.GetPath(),
			IsFile: entry.GetType() == "file",
		})
	}
	return files, nil
}

// FetchFile downloads a file and returns its blob SHA as content identity.
func (s *GitHubSource) FetchFile(ctx context.Context, path string) (*FileContent, error) {
	file, _, _, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, cleanPath(path), s.refOptions())
	if err != nil {
		return nil, s.translate("fetch file", path, err)
	}
	if file == nil {
		return nil, notFound(path)
	}
	text, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &FileContent{Text: text, ContentIdentity: file.GetSHA()}, nil
}

// LatestContentIdentity returns the blob SHA of path on the configured branch.
func (s *GitHubSource) LatestContentIdentity(ctx context.Context, path string) (string, error) {
	file, _, _, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, cleanPath(path), s.refOptions())
	if err != nil {
		translated := s.translate("content identity", path, err)
		if IsNotFound(translated) {
			return "", nil
		}
		return "", translated
	}
	if file == nil {
		return "", nil
	}
	return file.GetSHA(), nil
}

// CommitMessage returns the message of the most recent commit touching path.
func (s *GitHubSource) CommitMessage(ctx context.Context, path string) (string, error) {
	commits, _, err := s.client.Repositories.ListCommits(ctx, s.owner, s.repo, &github.CommitsListOptions{
		SHA:         s.branch,
		Path:        cleanPath(path),
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		translated := s.translate("commit message", path, err)
		if IsNotFound(translated) {
			return "", nil
		}
		return "", translated
	}
	if len(commits) == 0 {
		return "", nil
	}
	return commits[0].GetCommit().GetMessage(), nil
}

func (s *GitHubSource) refOptions() *github.RepositoryContentGetOptions {
	return &github.RepositoryContentGetOptions{Ref: s.branch}
}

func (s *GitHubSource) translate(op, path string, err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		s.logger.Warn("github rate limit reached", zap.String("op", op), zap.Time("reset", rateErr.Rate.Reset.Time))
		return &RateLimitError{Reset: rateErr.Rate.Reset.Time, Err: err}
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		reset := time.Now().Add(abuseErr.GetRetryAfter())
		s.logger.Warn("github secondary rate limit reached", zap.String("op", op), zap.Time("reset", reset))
		return &RateLimitError{Reset: reset, Err: err}
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == http.StatusNotFound {
		return notFound(path)
	}
	return fmt.Errorf("github %s %s: %w", op, path, err)
}

func cleanPath(p string) string {
	return strings.Trim(strings.TrimSpace(p), "/")
}
