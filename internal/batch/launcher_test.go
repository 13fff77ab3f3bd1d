package batch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resim-ai/launch/internal/errs"
	"github.com/resim-ai/launch/pkg/models"
)

type fakeAPI struct {
	batchCalls, suiteCalls int
	batchIn                models.CreateBatchInput
	suiteIn                models.CreateTestSuiteBatchInput
	suiteID                string
}

func (f *fakeAPI) CreateBatch(_ context.Context, _ string, in models.CreateBatchInput) (*models.Batch, error) {
	f.batchCalls++
	f.batchIn = in
	return &models.Batch{BatchID: "batch-std"}, nil
}

func (f *fakeAPI) CreateTestSuiteBatch(_ context.Context, _ string, suiteID string, in models.CreateTestSuiteBatchInput) (*models.Batch, error) {
	f.suiteCalls++
	f.suiteID = suiteID
	f.suiteIn = in
	return &models.Batch{BatchID: "batch-suite"}, nil
}

type fakeSuites map[string]string

func (s fakeSuites) TestSuiteID(_ context.Context, _ string, name string) (string, error) {
	id, ok := s[name]
	if !ok {
		return "", errs.NotFound("could not find test suite %s", name)
	}
	return id, nil
}

var sub = Submission{ProjectID: "p1", BuildID: "build-1", AssociatedAccount: "octocat"}

func TestLaunch_ExperienceTags(t *testing.T) {
	f := &fakeAPI{}
	percent := 10
	req := &Request{
		Target:                  ExperienceTags{"smoke"},
		PoolLabels:              []string{"gpu"},
		AllowableFailurePercent: &percent,
		MetricsBuildID:          "mb-1",
		Parameters:              map[string]string{"k": "v"},
	}

	b, err := NewLauncher(f, fakeSuites{}, nil).Launch(context.Background(), sub, req)
	require.NoError(t, err)

	assert.Equal(t, "batch-std", b.BatchID)
	assert.Equal(t, 1, f.batchCalls)
	assert.Zero(t, f.suiteCalls)
	assert.Equal(t, models.CreateBatchInput{
		BuildID:                 "build-1",
		ExperienceTagNames:      []string{"smoke"},
		MetricsBuildID:          "mb-1",
		Parameters:              map[string]string{"k": "v"},
		PoolLabels:              []string{"gpu"},
		AllowableFailurePercent: &percent,
		AssociatedAccount:       "octocat",
		TriggeredVia:            models.TriggeredViaGitHub,
	}, f.batchIn)
}

func TestLaunch_ExperienceNames(t *testing.T) {
	f := &fakeAPI{}
	_, err := NewLauncher(f, fakeSuites{}, nil).Launch(context.Background(), sub, &Request{Target: ExperienceNames{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, f.batchIn.ExperienceNames)
	assert.Nil(t, f.batchIn.ExperienceTagNames)
}

func TestLaunch_TestSuite(t *testing.T) {
	f := &fakeAPI{}
	req := &Request{Target: TestSuiteRef{Name: "nightly"}, PoolLabels: []string{"gpu"}}

	b, err := NewLauncher(f, fakeSuites{"nightly": "ts-9"}, nil).Launch(context.Background(), sub, req)
	require.NoError(t, err)

	assert.Equal(t, "batch-suite", b.BatchID)
	assert.Equal(t, "ts-9", f.suiteID)
	assert.Zero(t, f.batchCalls)
	assert.Equal(t, models.CreateTestSuiteBatchInput{
		BuildID:           "build-1",
		PoolLabels:        []string{"gpu"},
		AssociatedAccount: "octocat",
		TriggeredVia:      models.TriggeredViaGitHub,
	}, f.suiteIn)
}

func TestLaunch_TestSuiteNotFound(t *testing.T) {
	f := &fakeAPI{}
	_, err := NewLauncher(f, fakeSuites{}, nil).Launch(context.Background(), sub, &Request{Target: TestSuiteRef{Name: "nope"}})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeNotFound))
	assert.Zero(t, f.suiteCalls)
}

func TestLaunch_ExplicitTriggeredVia(t *testing.T) {
	f := &fakeAPI{}
	s := sub
	s.TriggeredVia = models.TriggeredViaLocal
	_, err := NewLauncher(f, fakeSuites{}, nil).Launch(context.Background(), s, &Request{Target: ExperienceTags{"x"}})
	require.NoError(t, err)
	assert.Equal(t, models.TriggeredViaLocal, f.batchIn.TriggeredVia)
}
