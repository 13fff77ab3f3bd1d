package orchestrator

import (
	"context"

	"github.com/resim-ai/launch/internal/resolve"
)

// Resolution is the set of IDs the configured names map to. Names left empty
// in the configuration are skipped.
type Resolution struct {
	ProjectName   string
	ProjectID     string
	SystemID      string
	BranchName    string
	BranchID      string
	TestSuiteID   string
	BranchMissing bool
}

// Resolve looks up the configured names without creating anything. An empty
// project name resolves to the most recently created project.
func (o *Orchestrator) Resolve(ctx context.Context) (*Resolution, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := o.connect(ctx)
	if err != nil {
		return nil, err
	}
	resolver := resolve.New(client, resolve.WithLogger(o.logger))

	res := &Resolution{ProjectName: o.cfg.Project}
	if res.ProjectName == "" {
		p, err := resolver.LatestProject(ctx)
		if err != nil {
			return nil, err
		}
		res.ProjectName = p.Name
		res.ProjectID = p.ProjectID
	} else if res.ProjectID, err = resolver.ProjectID(ctx, res.ProjectName); err != nil {
		return nil, err
	}
	o.progress(StepProject, res.ProjectID)

	if o.cfg.System != "" {
		if res.SystemID, err = resolver.SystemID(ctx, res.ProjectID, o.cfg.System); err != nil {
			return nil, err
		}
		o.progress(StepSystem, res.SystemID)
	}

	if branch := o.event.Branch(); branch != "" {
		res.BranchName = branch
		if res.BranchID, err = resolver.BranchID(ctx, res.ProjectID, branch); err != nil {
			return nil, err
		}
		res.BranchMissing = res.BranchID == ""
		o.progress(StepBranch, res.BranchID)
	}

	if o.cfg.TestSuite != "" {
		if res.TestSuiteID, err = resolver.TestSuiteID(ctx, res.ProjectID, o.cfg.TestSuite); err != nil {
			return nil, err
		}
	}
	return res, nil
}
