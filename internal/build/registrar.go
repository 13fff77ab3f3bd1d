// Package build registers container images as ReSim builds.
package build

import (
	"context"
	"log/slog"

	"github.com/distribution/reference"

	"github.com/resim-ai/launch/internal/errs"
	"github.com/resim-ai/launch/internal/logging"
	"github.com/resim-ai/launch/pkg/models"
)

// API is the slice of the ReSim client the registrar uses.
type API interface {
	CreateBuildForBranch(ctx context.Context, projectID, branchID string, in models.CreateBuildInput) (*models.Build, error)
}

// Registrar creates builds.
type Registrar struct {
	api    API
	logger *slog.Logger
}

// NewRegistrar creates a Registrar. A nil logger discards.
func NewRegistrar(client API, logger *slog.Logger) *Registrar {
	return &Registrar{api: client, logger: logging.OrDiscard(logger)}
}

// Request describes one build registration.
type Request struct {
	ProjectID   string
	BranchID    string
	SystemID    string
	ImageURI    string
	Description string
	Version     string
}

// CreateBuild makes a single create call and returns the server's record.
// It never returns a nil Build alongside a nil error.
func (r *Registrar) CreateBuild(ctx context.Context, req Request) (*models.Build, error) {
	b, err := r.api.CreateBuildForBranch(ctx, req.ProjectID, req.BranchID, models.CreateBuildInput{
		ImageURI:    req.ImageURI,
		Version:     req.Version,
		Description: req.Description,
		SystemID:    req.SystemID,
	})
	if err != nil {
		return nil, err
	}
	if b == nil {
		b = &models.Build{}
	}
	r.logger.InfoContext(ctx, "registered build", "build_id", b.BuildID, "image", req.ImageURI, "version", req.Version)
	return b, nil
}

// ValidateImage checks that uri is a well-formed Docker image reference.
// Short Docker Hub names such as ubuntu:22.04 are accepted.
func ValidateImage(uri string) error {
	_, err := normalizeImage(uri)
	return err
}

func normalizeImage(uri string) (reference.Named, error) {
	if uri == "" {
		return nil, errs.Config("image is required")
	}
	named, err := reference.ParseNormalizedNamed(uri)
	if err != nil {
		return nil, errs.Config("invalid image %q: %v", uri, err)
	}
	return named, nil
}
