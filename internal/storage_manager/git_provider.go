package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// GitProvider implements DocumentProvider backed by a git repository.
// Each write creates a commit; the version token is the git blob hash of the
// document content.
type GitProvider struct {
	repoPath    string
	repo        *git.Repository
	authorName  string
	authorEmail string
	push        bool
	auth        *githttp.BasicAuth
	mu          sync.Mutex
}

// GitProviderOptions holds options for creating a GitProvider.
type GitProviderOptions struct {
	// Path is the path to the git repository.
	Path string
	// RemoteURL is cloned into Path when no repository exists there.
	RemoteURL string
	// AuthorName is the name used for commits.
	AuthorName string
	// AuthorEmail is the email used for commits.
	AuthorEmail string
	// Username and Password enable HTTPS basic auth for clone and push.
	Username string
	Password string
	// Push pushes to origin after every commit.
	Push bool
	// InitIfMissing initializes a new repo if the path doesn't contain one.
	InitIfMissing bool
}

// NewGitProvider opens, clones or initialises the repository at opts.Path.
func NewGitProvider(ctx context.Context, opts GitProviderOptions) (*GitProvider, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("repository path is required")
	}

	authorName := opts.AuthorName
	if authorName == "" {
		authorName = "Ron"
	}
	authorEmail := opts.AuthorEmail
	if authorEmail == "" {
		authorEmail = "ron@localhost"
	}

	var auth *githttp.BasicAuth
	if opts.Username != "" || opts.Password != "" {
		auth = &githttp.BasicAuth{Username: opts.Username, Password: opts.Password}
	}

	repo, err := git.PlainOpen(opts.Path)
	switch {
	case err == nil:
	case errors.Is(err, git.ErrRepositoryNotExists) && opts.RemoteURL != "":
		cloneOpts := &git.CloneOptions{URL: opts.RemoteURL}
		if auth != nil {
			cloneOpts.Auth = auth
		}
		repo, err = git.PlainCloneContext(ctx, opts.Path, false, cloneOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to clone %s: %w", opts.RemoteURL, err)
		}
	case errors.Is(err, git.ErrRepositoryNotExists) && opts.InitIfMissing:
		if err := os.MkdirAll(opts.Path, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create repository directory: %w", err)
		}
		repo, err = git.PlainInit(opts.Path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize git repository: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}

	return &GitProvider{
		repoPath:    opts.Path,
		repo:        repo,
		authorName:  authorName,
		authorEmail: authorEmail,
		push:        opts.Push,
		auth:        auth,
	}, nil
}

func blobVersion(data []byte) string {
	return plumbing.ComputeHash(plumbing.BlobObject, data).String()
}

func (p *GitProvider) read(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(p.repoPath, path)) //nolint:gosec // G304: Path is constructed from trusted repoPath
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Get reads a document from the git working tree.
func (p *GitProvider) Get(ctx context.Context, path string) (*Object, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.read(path)
	if err != nil {
		return nil, err
	}
	return &Object{Data: data, Version: blobVersion(data)}, nil
}

// Head returns the blob hash of a document.
func (p *GitProvider) Head(ctx context.Context, path string) (string, error) {
	obj, err := p.Get(ctx, path)
	if err != nil {
		return "", err
	}
	return obj.Version, nil
}

// Put writes data, commits the change and optionally pushes it.
func (p *GitProvider) Put(ctx context.Context, path string, data []byte, ifVersion string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := ""
	existing, err := p.read(path)
	switch {
	case err == nil:
		current = blobVersion(existing)
	case !errors.Is(err, ErrNotFound):
		return "", err
	}
	if err := checkPrecondition(path, current, ifVersion); err != nil {
		return "", err
	}

	version := blobVersion(data)
	if version == current {
		// identical content, nothing to commit
		return version, nil
	}

	fullPath := filepath.Join(p.repoPath, path)
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	worktree, err := p.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}
	if _, err := worktree.Add(filepath.ToSlash(path)); err != nil {
		return "", fmt.Errorf("failed to stage file: %w", err)
	}

	commitMsg := fmt.Sprintf("[auto] Write %s", path)
	_, err = worktree.Commit(commitMsg, &git.CommitOptions{
		Author: &object.Signature{
			Name:  p.authorName,
			Email: p.authorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}

	if p.push {
		pushOpts := &git.PushOptions{RemoteName: git.DefaultRemoteName}
		if p.auth != nil {
			pushOpts.Auth = p.auth
		}
		if err := p.repo.PushContext(ctx, pushOpts); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return "", fmt.Errorf("failed to push: %w", err)
		}
	}

	return version, nil
}

// CommitCount returns the number of commits reachable from HEAD.
func (p *GitProvider) CommitCount() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	head, err := p.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	iter, err := p.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return 0, fmt.Errorf("failed to read log: %w", err)
	}
	count := 0
	err = iter.ForEach(func(*object.Commit) error {
		count++
		return nil
	})
	return count, err
}
