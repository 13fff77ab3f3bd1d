// Package batch validates batch requests and launches them against a build.
package batch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resim-ai/launch/internal/logging"
	"github.com/resim-ai/launch/pkg/models"
)

// API is the slice of the ReSim client the launcher uses.
type API interface {
	CreateBatch(ctx context.Context, projectID string, in models.CreateBatchInput) (*models.Batch, error)
	CreateTestSuiteBatch(ctx context.Context, projectID, testSuiteID string, in models.CreateTestSuiteBatchInput) (*models.Batch, error)
}

// SuiteResolver looks test suites up by name.
type SuiteResolver interface {
	TestSuiteID(ctx context.Context, projectID, name string) (string, error)
}

// Launcher submits batches.
type Launcher struct {
	api    API
	suites SuiteResolver
	logger *slog.Logger
}

// NewLauncher creates a Launcher. A nil logger discards.
func NewLauncher(client API, suites SuiteResolver, logger *slog.Logger) *Launcher {
	return &Launcher{api: client, suites: suites, logger: logging.OrDiscard(logger)}
}

// Submission carries the per-run fields every batch shares.
type Submission struct {
	ProjectID         string
	BuildID           string
	AssociatedAccount string
	TriggeredVia      models.TriggeredVia
}

// Launch submits req on the path its target selects.
func (l *Launcher) Launch(ctx context.Context, sub Submission, req *Request) (*models.Batch, error) {
	triggered := sub.TriggeredVia
	if triggered == "" {
		triggered = models.TriggeredViaGitHub
	}

	var (
		b   *models.Batch
		err error
	)
	switch t := req.Target.(type) {
	case TestSuiteRef:
		if req.MetricsBuildID != "" {
			l.logger.WarnContext(ctx, "metrics_build_id is ignored for test suite batches", "test_suite", t.Name)
		}
		var suiteID string
		suiteID, err = l.suites.TestSuiteID(ctx, sub.ProjectID, t.Name)
		if err != nil {
			return nil, err
		}
		b, err = l.api.CreateTestSuiteBatch(ctx, sub.ProjectID, suiteID, models.CreateTestSuiteBatchInput{
			BuildID:                 sub.BuildID,
			Parameters:              req.Parameters,
			PoolLabels:              req.PoolLabels,
			AllowableFailurePercent: req.AllowableFailurePercent,
			AssociatedAccount:       sub.AssociatedAccount,
			TriggeredVia:            triggered,
		})
	case ExperienceNames, ExperienceTags:
		in := models.CreateBatchInput{
			BuildID:                 sub.BuildID,
			MetricsBuildID:          req.MetricsBuildID,
			Parameters:              req.Parameters,
			PoolLabels:              req.PoolLabels,
			AllowableFailurePercent: req.AllowableFailurePercent,
			AssociatedAccount:       sub.AssociatedAccount,
			TriggeredVia:            triggered,
		}
		if names, ok := t.(ExperienceNames); ok {
			in.ExperienceNames = names
		} else {
			in.ExperienceTagNames = t.(ExperienceTags)
		}
		b, err = l.api.CreateBatch(ctx, sub.ProjectID, in)
	default:
		return nil, fmt.Errorf("launch batch: unsupported target %T", req.Target)
	}
	if err != nil {
		return nil, err
	}
	if b == nil {
		b = &models.Batch{}
	}

	l.logger.InfoContext(ctx, "launched batch", "batch_id", b.BatchID, "target", req.Target.String())
	return b, nil
}
