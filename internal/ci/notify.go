package ci

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/resim-ai/launch/internal/errs"
	"github.com/resim-ai/launch/internal/transport"
)

// Notifier posts a message back to the change under test.
type Notifier interface {
	Notify(ctx context.Context, body string) error
}

// GitHubNotifier comments on a pull request.
type GitHubNotifier struct {
	doer   transport.Doer
	apiURL string
	owner  string
	repo   string
	number int
	token  string
}

// NewGitHubNotifier creates a notifier for the pull request in ev.
func NewGitHubNotifier(doer transport.Doer, ev *Event, token string) (*GitHubNotifier, error) {
	if !ev.IsPullRequest() || ev.PRNumber == 0 {
		return nil, errs.Config("pull request comments need a pull_request event")
	}
	if token == "" {
		return nil, errs.Config("github_token is required to comment on pull requests")
	}
	owner, repo, err := ev.RepoParts()
	if err != nil {
		return nil, err
	}
	return &GitHubNotifier{
		doer:   doer,
		apiURL: ev.APIURL,
		owner:  owner,
		repo:   repo,
		number: ev.PRNumber,
		token:  token,
	}, nil
}

// Notify implements Notifier.
func (n *GitHubNotifier) Notify(ctx context.Context, body string) error {
	payload, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return fmt.Errorf("encode comment: %w", err)
	}

	resp, err := n.doer.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", n.apiURL, n.owner, n.repo, n.number),
		Header: map[string]string{
			"Authorization":        "Bearer " + n.token,
			"Accept":               "application/vnd.github+json",
			"Content-Type":         "application/json",
			"X-GitHub-Api-Version": "2022-11-28",
		},
		Body: payload,
	})
	if err != nil {
		return fmt.Errorf("comment on pull request: %w", err)
	}
	if !resp.IsSuccess() {
		return errs.Newf(errs.CodeTransport, "comment on pull request #%d: status %d", n.number, resp.StatusCode)
	}
	return nil
}

var _ Notifier = (*GitHubNotifier)(nil)
