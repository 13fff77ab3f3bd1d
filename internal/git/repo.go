package git

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
)

// ErrDetachedHead is returned by CurrentBranch when HEAD is not a branch.
var ErrDetachedHead = errors.New("HEAD is detached")

// Repo reads a repository on disk through go-git.
type Repo struct {
	repo *git.Repository
	path string
}

// Open opens the repository containing path, searching parent directories.
func Open(path string) (*Repo, error) {
	r, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	return &Repo{repo: r, path: path}, nil
}

// Path returns the path the repository was opened from.
func (r *Repo) Path() string {
	return r.path
}

// CurrentBranch implements HeadInfo.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("get HEAD reference: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", ErrDetachedHead
	}
	return head.Name().Short(), nil
}

// HeadSHA implements HeadInfo.
func (r *Repo) HeadSHA() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("get HEAD reference: %w", err)
	}
	return head.Hash().String(), nil
}

// HeadSubject implements HeadInfo.
func (r *Repo) HeadSubject() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("get HEAD reference: %w", err)
	}
	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return "", fmt.Errorf("read HEAD commit: %w", err)
	}
	subject, _, _ := strings.Cut(strings.TrimSpace(commit.Message), "\n")
	return strings.TrimSpace(subject), nil
}

var _ HeadInfo = (*Repo)(nil)
