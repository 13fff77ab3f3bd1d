// Package ci reads the GitHub Actions run context and talks back to it:
// the triggering event, step outputs, the job summary and PR comments.
package ci

import (
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/resim-ai/launch/internal/errs"
	"github.com/resim-ai/launch/internal/git"
)

// Event names the launcher accepts.
const (
	EventPush             = "push"
	EventPullRequest      = "pull_request"
	EventWorkflowDispatch = "workflow_dispatch"
	EventSchedule         = "schedule"
)

var allowedEvents = map[string]bool{
	EventPush:             true,
	EventPullRequest:      true,
	EventWorkflowDispatch: true,
	EventSchedule:         true,
}

// Event is the context of the run. Name is empty outside GitHub Actions.
type Event struct {
	Name       string
	Repository string
	Actor      string
	APIURL     string
	RefName    string
	HeadRef    string
	SHA        string

	PRNumber int
	PRAuthor string
	PRTitle  string
	PRHead   string

	CommitSubject string

	OutputPath  string
	SummaryPath string
}

// Getenv looks up an environment variable.
type Getenv func(string) string

// Load builds the Event from GitHub Actions variables and the event payload.
// Fields left empty are filled from repo when it is non-nil.
func Load(getenv Getenv, repo git.HeadInfo) (*Event, error) {
	ev := &Event{
		Name:        getenv("GITHUB_EVENT_NAME"),
		Repository:  getenv("GITHUB_REPOSITORY"),
		Actor:       getenv("GITHUB_ACTOR"),
		APIURL:      getenv("GITHUB_API_URL"),
		RefName:     getenv("GITHUB_REF_NAME"),
		HeadRef:     getenv("GITHUB_HEAD_REF"),
		SHA:         getenv("GITHUB_SHA"),
		OutputPath:  getenv("GITHUB_OUTPUT"),
		SummaryPath: getenv("GITHUB_STEP_SUMMARY"),
	}
	if ev.APIURL == "" {
		ev.APIURL = "https://api.github.com"
	}

	if path := getenv("GITHUB_EVENT_PATH"); path != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.Wrap(errs.CodeInternal, "read event payload", err)
		}
		if err := ev.applyPayload(payload); err != nil {
			return nil, err
		}
	}

	if repo != nil {
		ev.fillFromRepo(repo)
	}
	return ev, nil
}

func (ev *Event) applyPayload(payload []byte) error {
	if !gjson.ValidBytes(payload) {
		return errs.New(errs.CodeInternal, "event payload is not valid JSON")
	}
	doc := gjson.ParseBytes(payload)

	if pr := doc.Get("pull_request"); pr.Exists() {
		ev.PRNumber = int(pr.Get("number").Int())
		ev.PRAuthor = pr.Get("user.login").String()
		ev.PRTitle = pr.Get("title").String()
		ev.PRHead = pr.Get("head.sha").String()
	}
	if msg := doc.Get("head_commit.message").String(); msg != "" {
		ev.CommitSubject = firstLine(msg)
	}
	return nil
}

func (ev *Event) fillFromRepo(repo git.HeadInfo) {
	if ev.RefName == "" && ev.HeadRef == "" {
		if b, err := repo.CurrentBranch(); err == nil {
			ev.RefName = b
		}
	}
	if ev.SHA == "" {
		if sha, err := repo.HeadSHA(); err == nil {
			ev.SHA = sha
		}
	}
	if ev.CommitSubject == "" {
		if s, err := repo.HeadSubject(); err == nil {
			ev.CommitSubject = s
		}
	}
}

// CheckTrigger rejects events outside the allow-list. Runs outside GitHub
// Actions have no event and pass.
func (ev *Event) CheckTrigger() error {
	if ev.Name == "" || allowedEvents[ev.Name] {
		return nil
	}
	return errs.Newf(errs.CodeUnsupportedTrigger, "unsupported trigger %q: expected one of push, pull_request, workflow_dispatch, schedule", ev.Name)
}

// IsPullRequest reports whether the run was triggered by a pull request.
func (ev *Event) IsPullRequest() bool {
	return ev.Name == EventPullRequest
}

// InCI reports whether the run has GitHub Actions context.
func (ev *Event) InCI() bool {
	return ev.Name != ""
}

// Branch is the source branch the build came from.
func (ev *Event) Branch() string {
	if ev.HeadRef != "" {
		return ev.HeadRef
	}
	return ev.RefName
}

// Version is the commit the build was made from.
func (ev *Event) Version() string {
	if ev.IsPullRequest() && ev.PRHead != "" {
		return ev.PRHead
	}
	return ev.SHA
}

// Description describes the build: the PR title for pull requests, the
// commit subject otherwise.
func (ev *Event) Description() string {
	if ev.IsPullRequest() && ev.PRTitle != "" {
		return ev.PRTitle
	}
	if ev.CommitSubject != "" {
		return ev.CommitSubject
	}
	return ev.Version()
}

// AssociatedAccount is the account a batch is attributed to.
func (ev *Event) AssociatedAccount() string {
	if ev.PRAuthor != "" {
		return ev.PRAuthor
	}
	return ev.Actor
}

// RepoParts splits Repository into owner and name.
func (ev *Event) RepoParts() (owner, name string, err error) {
	owner, name, ok := strings.Cut(ev.Repository, "/")
	if !ok || owner == "" || name == "" {
		return "", "", errs.Config("GITHUB_REPOSITORY %q is not owner/name", ev.Repository)
	}
	return owner, name, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}

func (ev *Event) String() string {
	if !ev.InCI() {
		return fmt.Sprintf("local run on %s@%.7s", ev.Branch(), ev.Version())
	}
	return fmt.Sprintf("%s on %s@%.7s", ev.Name, ev.Branch(), ev.Version())
}
