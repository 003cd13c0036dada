package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/go-github/v60/github"
)

// GitHubProvider implements DocumentProvider on the GitHub contents API.
// The version token is the blob SHA; every write is a commit on Branch.
type GitHubProvider struct {
	owner   string
	repo    string
	branch  string
	tokens  TokenSource
	http    *http.Client
	baseURL *url.URL
}

// GitHubProviderOptions holds options for creating a GitHubProvider.
type GitHubProviderOptions struct {
	Owner  string
	Repo   string
	Branch string
	Tokens TokenSource
	// APIBaseURL overrides https://api.github.com/, used by tests and GHES.
	APIBaseURL string
	HTTPClient *http.Client
}

// NewGitHubProvider creates a new GitHub contents provider.
func NewGitHubProvider(opts GitHubProviderOptions) (*GitHubProvider, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, fmt.Errorf("owner and repo are required")
	}
	if opts.Tokens == nil {
		opts.Tokens = StaticToken("")
	}
	p := &GitHubProvider{
		owner:  opts.Owner,
		repo:   opts.Repo,
		branch: opts.Branch,
		tokens: opts.Tokens,
		http:   opts.HTTPClient,
	}
	if opts.APIBaseURL != "" {
		base := opts.APIBaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}
		p.baseURL = u
	}
	return p, nil
}

func (p *GitHubProvider) client(ctx context.Context) (*github.Client, error) {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	c := github.NewClient(p.http).WithAuthToken(token)
	if p.baseURL != nil {
		c.BaseURL = p.baseURL
	}
	return c, nil
}

// classify maps a GitHub response onto the provider sentinel errors.
func (p *GitHubProvider) classify(op, filePath string, resp *github.Response, err error) error {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	var ghErr *github.ErrorResponse
	if status == 0 && errors.As(err, &ghErr) && ghErr.Response != nil {
		status = ghErr.Response.StatusCode
	}

	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, filePath)
	case http.StatusUnauthorized, http.StatusForbidden:
		if inv, ok := p.tokens.(interface{ Invalidate() }); ok {
			inv.Invalidate()
		}
		return fmt.Errorf("%w: github %s %s: %v", ErrUnauthorized, op, filePath, err)
	case http.StatusConflict, http.StatusUnprocessableEntity, http.StatusPreconditionFailed:
		return fmt.Errorf("%w: github %s %s: %v", ErrConflict, op, filePath, err)
	default:
		return fmt.Errorf("github %s %s: %w", op, filePath, err)
	}
}

func (p *GitHubProvider) contents(ctx context.Context, filePath string) (*github.RepositoryContent, error) {
	c, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	opts := &github.RepositoryContentGetOptions{Ref: p.branch}
	file, _, resp, err := c.Repositories.GetContents(ctx, p.owner, p.repo, filePath, opts)
	if err != nil {
		return nil, p.classify("get", filePath, resp, err)
	}
	if file == nil {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, filePath)
	}
	return file, nil
}

// Get downloads a document and its blob SHA.
func (p *GitHubProvider) Get(ctx context.Context, filePath string) (*Object, error) {
	file, err := p.contents(ctx, filePath)
	if err != nil {
		return nil, err
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filePath, err)
	}
	return &Object{Data: []byte(content), Version: file.GetSHA()}, nil
}

// Head returns the blob SHA of a document.
func (p *GitHubProvider) Head(ctx context.Context, filePath string) (string, error) {
	file, err := p.contents(ctx, filePath)
	if err != nil {
		return "", err
	}
	return file.GetSHA(), nil
}

// Put commits data to the configured branch. GitHub itself enforces the SHA
// precondition: creating over an existing file or updating with a stale SHA
// is rejected with 409 or 422.
func (p *GitHubProvider) Put(ctx context.Context, filePath string, data []byte, ifVersion string) (string, error) {
	c, err := p.client(ctx)
	if err != nil {
		return "", err
	}

	device := strings.TrimSuffix(path.Base(filePath), path.Ext(filePath))
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(fmt.Sprintf("update memory for %s", device)),
		Content: data,
	}
	if p.branch != "" {
		opts.Branch = github.String(p.branch)
	}

	var (
		result *github.RepositoryContentResponse
		resp   *github.Response
	)
	if ifVersion == "" {
		result, resp, err = c.Repositories.CreateFile(ctx, p.owner, p.repo, filePath, opts)
	} else {
		opts.SHA = github.String(ifVersion)
		result, resp, err = c.Repositories.UpdateFile(ctx, p.owner, p.repo, filePath, opts)
	}
	if err != nil {
		err = p.classify("put", filePath, resp, err)
		if errors.Is(err, ErrNotFound) {
			// the document vanished since ifVersion was read
			return "", fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return "", err
	}
	return result.GetContent().GetSHA(), nil
}
