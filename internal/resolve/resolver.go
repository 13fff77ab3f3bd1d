// Package resolve maps human-readable resource names to ReSim IDs. Every
// lookup consumes the complete paginated listing before deciding a name is
// absent. Branches are created on demand; projects, systems and test suites
// must already exist.
package resolve

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resim-ai/launch/internal/api"
	"github.com/resim-ai/launch/internal/errs"
	"github.com/resim-ai/launch/internal/logging"
	"github.com/resim-ai/launch/pkg/models"
)

// API is the slice of the ReSim client the resolver uses.
type API interface {
	ListProjects(ctx context.Context, p api.ListParams) (*models.ListProjectsOutput, error)
	ListBranches(ctx context.Context, projectID string, p api.ListParams) (*models.ListBranchesOutput, error)
	CreateBranch(ctx context.Context, projectID string, in models.CreateBranchInput) (*models.Branch, error)
	ListSystems(ctx context.Context, projectID string, p api.ListParams) (*models.ListSystemsOutput, error)
	ListTestSuites(ctx context.Context, projectID string, p api.ListParams) (*models.ListTestSuitesOutput, error)
}

var _ API = (*api.Client)(nil)

// Resolver resolves names against one API client.
type Resolver struct {
	api      API
	pageSize int
	logger   *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPageSize overrides DefaultPageSize.
func WithPageSize(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logging.OrDiscard(l) }
}

// New creates a Resolver.
func New(client API, opts ...Option) *Resolver {
	r := &Resolver{api: client, pageSize: DefaultPageSize, logger: logging.Discard()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) params(token string) api.ListParams {
	return api.ListParams{PageSize: r.pageSize, PageToken: token, OrderBy: api.OrderByTimestamp}
}

// ProjectID returns the ID of the project called name, or of the most
// recently created project when name is empty.
func (r *Resolver) ProjectID(ctx context.Context, name string) (string, error) {
	if name == "" {
		p, err := r.LatestProject(ctx)
		if err != nil {
			return "", err
		}
		return p.ProjectID, nil
	}

	p, err := findAll(ctx, "project", name, func(ctx context.Context, token string) (Page[models.Project], error) {
		out, err := r.api.ListProjects(ctx, r.params(token))
		if err != nil {
			return Page[models.Project]{}, err
		}
		return Page[models.Project]{Items: out.Projects, NextPageToken: out.NextPageToken}, nil
	})
	if err != nil {
		return "", err
	}
	r.logger.DebugContext(ctx, "resolved project", "name", name, "id", p.ProjectID)
	return p.ProjectID, nil
}

// LatestProject returns the most recently created project.
func (r *Resolver) LatestProject(ctx context.Context) (*models.Project, error) {
	out, err := r.api.ListProjects(ctx, api.ListParams{PageSize: 1, OrderBy: api.OrderByTimestamp})
	if err != nil {
		return nil, fmt.Errorf("find latest project: %w", err)
	}
	if len(out.Projects) == 0 || out.Projects[0].ProjectID == "" {
		return nil, errs.NotFound("could not find latest project")
	}
	return &out.Projects[0], nil
}

// BranchID returns the ID of the branch called name, or "" when the project
// has no such branch.
func (r *Resolver) BranchID(ctx context.Context, projectID, name string) (string, error) {
	branches, err := ListAll(ctx, func(ctx context.Context, token string) (Page[models.Branch], error) {
		out, err := r.api.ListBranches(ctx, projectID, r.params(token))
		if err != nil {
			return Page[models.Branch]{}, err
		}
		return Page[models.Branch]{Items: out.Branches, NextPageToken: out.NextPageToken}, nil
	})
	if err != nil {
		return "", fmt.Errorf("list branches: %w", err)
	}
	b, ok := FindByName(branches, name)
	if !ok {
		return "", nil
	}
	return b.BranchID, nil
}

// CreateBranch creates a change-request branch. It does not check whether the
// name is already taken.
func (r *Resolver) CreateBranch(ctx context.Context, projectID, name string) (string, error) {
	b, err := r.api.CreateBranch(ctx, projectID, models.CreateBranchInput{
		Name:       name,
		BranchType: models.BranchTypeChangeRequest,
	})
	if err != nil {
		return "", err
	}
	return b.BranchID, nil
}

// FindOrCreateBranch returns the ID of the branch called name, creating it
// when absent.
func (r *Resolver) FindOrCreateBranch(ctx context.Context, projectID, name string) (string, error) {
	id, err := r.BranchID(ctx, projectID, name)
	if err != nil {
		return "", err
	}
	if id != "" {
		r.logger.DebugContext(ctx, "branch exists", "name", name, "id", id)
		return id, nil
	}

	id, err = r.CreateBranch(ctx, projectID, name)
	if err != nil {
		return "", err
	}
	r.logger.InfoContext(ctx, "created branch", "name", name, "id", id)
	return id, nil
}

// SystemID returns the ID of the system called name.
func (r *Resolver) SystemID(ctx context.Context, projectID, name string) (string, error) {
	s, err := findAll(ctx, "system", name, func(ctx context.Context, token string) (Page[models.System], error) {
		p := r.params(token)
		p.Name = name
		out, err := r.api.ListSystems(ctx, projectID, p)
		if err != nil {
			return Page[models.System]{}, err
		}
		return Page[models.System]{Items: out.Systems, NextPageToken: out.NextPageToken}, nil
	})
	if err != nil {
		return "", err
	}
	return s.SystemID, nil
}

// TestSuiteID returns the ID of the test suite called name.
func (r *Resolver) TestSuiteID(ctx context.Context, projectID, name string) (string, error) {
	ts, err := findAll(ctx, "test suite", name, func(ctx context.Context, token string) (Page[models.TestSuite], error) {
		out, err := r.api.ListTestSuites(ctx, projectID, r.params(token))
		if err != nil {
			return Page[models.TestSuite]{}, err
		}
		return Page[models.TestSuite]{Items: out.TestSuites, NextPageToken: out.NextPageToken}, nil
	})
	if err != nil {
		return "", err
	}
	return ts.TestSuiteID, nil
}
