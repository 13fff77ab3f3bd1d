// Package orchestrator runs the launch pipeline: validate inputs, acquire a
// token, resolve names to IDs, register a build and submit a batch, then
// report the result back to CI.
//
// Steps run strictly in order on the caller's goroutine and stop at the first
// error. Input validation happens before any network call.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resim-ai/launch/internal/api"
	"github.com/resim-ai/launch/internal/auth"
	"github.com/resim-ai/launch/internal/batch"
	"github.com/resim-ai/launch/internal/build"
	"github.com/resim-ai/launch/internal/ci"
	"github.com/resim-ai/launch/internal/config"
	"github.com/resim-ai/launch/internal/errs"
	"github.com/resim-ai/launch/internal/logging"
	"github.com/resim-ai/launch/internal/report"
	"github.com/resim-ai/launch/internal/resolve"
	"github.com/resim-ai/launch/internal/transport"
	"github.com/resim-ai/launch/pkg/models"
)

// Pipeline step names passed to the progress callback.
const (
	StepValidate = "validate"
	StepToken    = "token"
	StepProject  = "project"
	StepSystem   = "system"
	StepBranch   = "branch"
	StepBuild    = "build"
	StepBatch    = "batch"
	StepReport   = "report"
	StepComment  = "comment"
)

// TokenSource yields a bearer token for the ReSim API.
type TokenSource interface {
	GetToken(ctx context.Context) (auth.Token, error)
}

// API is every ReSim call the pipeline makes.
type API interface {
	resolve.API
	build.API
	batch.API
}

var _ API = (*api.Client)(nil)

// APIFactory builds a ReSim client bound to a token.
type APIFactory func(token auth.Token) API

// Orchestrator runs one launch.
type Orchestrator struct {
	cfg      *config.Config
	event    *ci.Event
	logger   *slog.Logger
	progress func(step, detail string)

	doer     transport.Doer
	tokens   TokenSource
	newAPI   APIFactory
	secrets  config.SecretResolver
	notifier ci.Notifier

	closers []func() error
}

// New creates an Orchestrator.
func New(req RequiredConfig, opts ...Option) (*Orchestrator, error) {
	if req.Config == nil {
		return nil, fmt.Errorf("create orchestrator: config is required")
	}
	if req.Event == nil {
		return nil, fmt.Errorf("create orchestrator: event is required")
	}

	o := &orchestratorOptions{}
	for _, opt := range opts {
		opt(o)
	}

	orch := &Orchestrator{
		cfg:      req.Config,
		event:    req.Event,
		logger:   logging.OrDiscard(o.logger),
		progress: o.progress,
		doer:     o.doer,
		tokens:   o.tokens,
		newAPI:   o.newAPI,
		secrets:  o.secrets,
		notifier: o.notifier,
	}
	if orch.progress == nil {
		orch.progress = func(string, string) {}
	}
	if orch.doer == nil {
		c := transport.New(transport.WithTimeout(req.Config.HTTPTimeout), transport.WithLogger(orch.logger))
		orch.doer = c
		orch.closers = append(orch.closers, c.Close)
	}
	if orch.newAPI == nil {
		doer := orch.doer
		endpoint := req.Config.APIEndpoint
		orch.newAPI = func(token auth.Token) API {
			return api.New(doer, endpoint, string(token))
		}
	}
	return orch, nil
}

// Close releases anything the orchestrator opened itself.
func (o *Orchestrator) Close() error {
	var first error
	for i := len(o.closers) - 1; i >= 0; i-- {
		if err := o.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	o.closers = nil
	return first
}

// validate checks every input that can be checked offline.
func (o *Orchestrator) validate() (*batch.Request, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	req, err := o.cfg.BatchInput().Request()
	if err != nil {
		return nil, err
	}
	if o.cfg.BuildID == "" {
		if o.cfg.System == "" {
			return nil, errs.Config("system is required when no build_id is given")
		}
		if err := build.ValidateImage(o.cfg.Image); err != nil {
			return nil, err
		}
	}
	if err := o.event.CheckTrigger(); err != nil {
		return nil, err
	}
	return req, nil
}

// connect resolves secrets, acquires a token and returns a client bound to it.
func (o *Orchestrator) connect(ctx context.Context) (API, error) {
	if err := o.resolveSecrets(ctx); err != nil {
		return nil, err
	}
	tokens, err := o.tokenSource(ctx)
	if err != nil {
		return nil, err
	}
	tok, err := tokens.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	o.progress(StepToken, "authenticated")
	return o.newAPI(tok), nil
}

// Run executes the launch pipeline.
func (o *Orchestrator) Run(ctx context.Context) (*report.Result, error) {
	req, err := o.validate()
	if err != nil {
		return nil, err
	}
	o.progress(StepValidate, o.event.String())

	client, err := o.connect(ctx)
	if err != nil {
		return nil, err
	}
	resolver := resolve.New(client, resolve.WithLogger(o.logger))

	projectID, err := resolver.ProjectID(ctx, req.ProjectName)
	if err != nil {
		return nil, err
	}
	o.progress(StepProject, fmt.Sprintf("%s (%s)", req.ProjectName, projectID))

	result := &report.Result{
		ProjectName: req.ProjectName,
		ProjectID:   projectID,
		Target:      req.Target.String(),
	}

	if o.cfg.BuildID != "" {
		result.BuildID = o.cfg.BuildID
		result.BuildReused = true
		o.progress(StepBuild, "using existing build "+o.cfg.BuildID)
	} else if err := o.registerBuild(ctx, client, resolver, result); err != nil {
		return nil, err
	}

	triggered := models.TriggeredViaGitHub
	if !o.event.InCI() {
		triggered = models.TriggeredViaLocal
	}
	launcher := batch.NewLauncher(client, resolver, o.logger)
	b, err := launcher.Launch(ctx, batch.Submission{
		ProjectID:         projectID,
		BuildID:           result.BuildID,
		AssociatedAccount: o.event.AssociatedAccount(),
		TriggeredVia:      triggered,
	}, req)
	if err != nil {
		return nil, err
	}
	result.BatchID = b.BatchID
	result.BatchName = b.FriendlyName
	o.progress(StepBatch, b.BatchID)

	if err := o.publish(ctx, result); err != nil {
		return result, err
	}
	return result, nil
}

func (o *Orchestrator) registerBuild(ctx context.Context, client API, resolver *resolve.Resolver, result *report.Result) error {
	systemID, err := resolver.SystemID(ctx, result.ProjectID, o.cfg.System)
	if err != nil {
		return err
	}
	result.SystemID = systemID
	o.progress(StepSystem, fmt.Sprintf("%s (%s)", o.cfg.System, systemID))

	branch := o.event.Branch()
	if branch == "" {
		return errs.Config("could not determine the branch: set GITHUB_REF_NAME or run inside a git checkout")
	}
	branchID, err := resolver.FindOrCreateBranch(ctx, result.ProjectID, branch)
	if err != nil {
		return err
	}
	result.BranchName = branch
	result.BranchID = branchID
	o.progress(StepBranch, fmt.Sprintf("%s (%s)", branch, branchID))

	b, err := build.NewRegistrar(client, o.logger).CreateBuild(ctx, build.Request{
		ProjectID:   result.ProjectID,
		BranchID:    branchID,
		SystemID:    systemID,
		ImageURI:    o.cfg.Image,
		Version:     o.event.Version(),
		Description: o.event.Description(),
	})
	if err != nil {
		return err
	}
	result.BuildID = b.BuildID
	o.progress(StepBuild, b.BuildID)
	return nil
}

// publish writes step outputs and the job summary, then comments on the pull
// request when asked to. A failed comment is logged, not returned.
func (o *Orchestrator) publish(ctx context.Context, result *report.Result) error {
	if err := ci.WriteOutputs(o.event.OutputPath, result.Outputs()); err != nil {
		return errs.Wrap(errs.CodeInternal, "write outputs", err)
	}
	if err := ci.AppendSummary(o.event.SummaryPath, result.Markdown()); err != nil {
		return errs.Wrap(errs.CodeInternal, "write summary", err)
	}
	o.progress(StepReport, report.ResultsURL(result.BatchID))

	if !o.cfg.CommentOnPR || !o.event.IsPullRequest() {
		return nil
	}
	n := o.notifier
	if n == nil {
		gh, err := ci.NewGitHubNotifier(o.doer, o.event, o.cfg.GitHubToken)
		if err != nil {
			o.logger.WarnContext(ctx, "not commenting on pull request", "error", err)
			return nil
		}
		n = gh
	}
	if err := n.Notify(ctx, result.Comment()); err != nil {
		o.logger.WarnContext(ctx, "failed to comment on pull request", "error", err)
		return nil
	}
	o.progress(StepComment, fmt.Sprintf("#%d", o.event.PRNumber))
	return nil
}
