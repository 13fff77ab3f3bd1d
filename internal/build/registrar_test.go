package build

import (
	"context"
	"testing"

	"github.com/distribution/reference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resim-ai/launch/internal/errs"
	"github.com/resim-ai/launch/pkg/models"
)

type fakeAPI struct {
	calls     int
	projectID string
	branchID  string
	in        models.CreateBuildInput
	out       *models.Build
	err       error
}

func (f *fakeAPI) CreateBuildForBranch(_ context.Context, projectID, branchID string, in models.CreateBuildInput) (*models.Build, error) {
	f.calls++
	f.projectID, f.branchID, f.in = projectID, branchID, in
	return f.out, f.err
}

func TestCreateBuild(t *testing.T) {
	f := &fakeAPI{out: &models.Build{BuildID: "build-1", ImageURI: "ghcr.io/acme/robot:abc"}}
	r := NewRegistrar(f, nil)

	b, err := r.CreateBuild(context.Background(), Request{
		ProjectID:   "p1",
		BranchID:    "b1",
		SystemID:    "s1",
		ImageURI:    "ghcr.io/acme/robot:abc",
		Description: "Fix planner",
		Version:     "abc123",
	})
	require.NoError(t, err)

	assert.Equal(t, "build-1", b.BuildID)
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, "p1", f.projectID)
	assert.Equal(t, "b1", f.branchID)
	assert.Equal(t, models.CreateBuildInput{
		ImageURI:    "ghcr.io/acme/robot:abc",
		Version:     "abc123",
		Description: "Fix planner",
		SystemID:    "s1",
	}, f.in)
}

func TestCreateBuild_NilRecord(t *testing.T) {
	b, err := NewRegistrar(&fakeAPI{}, nil).CreateBuild(context.Background(), Request{})
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Empty(t, b.BuildID)
}

func TestCreateBuild_NoRetry(t *testing.T) {
	f := &fakeAPI{err: errs.New(errs.CodeTransport, "status 500")}
	_, err := NewRegistrar(f, nil).CreateBuild(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, 1, f.calls)
}

func TestValidateImage(t *testing.T) {
	tests := []struct {
		uri     string
		wantErr bool
	}{
		{"ghcr.io/acme/robot:abc123", false},
		{"909785973729.dkr.ecr.us-east-1.amazonaws.com/robot:v1.2.3", false},
		{"localhost:5000/robot@sha256:" + "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef", false},
		{"ubuntu:22.04", false},
		{"myorg/sim:latest", false},
		{"ghcr.io/acme/robot", false},
		{"", true},
		{"not a reference", true},
		{"ghcr.io/ACME/robot:tag", true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			err := ValidateImage(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.Is(err, errs.CodeConfiguration))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNormalizeImage_DockerHubShortNames(t *testing.T) {
	tests := []struct {
		uri    string
		domain string
		path   string
		full   string
	}{
		{"ubuntu:22.04", "docker.io", "library/ubuntu", "docker.io/library/ubuntu:22.04"},
		{"myorg/sim:latest", "docker.io", "myorg/sim", "docker.io/myorg/sim:latest"},
		{"ghcr.io/acme/robot:abc123", "ghcr.io", "acme/robot", "ghcr.io/acme/robot:abc123"},
		{"localhost:5000/robot:v1", "localhost:5000", "robot", "localhost:5000/robot:v1"},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			named, err := normalizeImage(tt.uri)
			require.NoError(t, err)
			assert.Equal(t, tt.domain, reference.Domain(named))
			assert.Equal(t, tt.path, reference.Path(named))
			assert.Equal(t, tt.full, named.String())
		})
	}
}
