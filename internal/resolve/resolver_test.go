package resolve

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resim-ai/launch/internal/api"
	"github.com/resim-ai/launch/internal/errs"
	"github.com/resim-ai/launch/pkg/models"
)

// fakeAPI serves listings from fixed pages keyed by page token.
type fakeAPI struct {
	projects   []models.ListProjectsOutput
	branches   []models.ListBranchesOutput
	systems    []models.ListSystemsOutput
	testSuites []models.ListTestSuitesOutput

	params        []api.ListParams
	createCalls   int
	createdInputs []models.CreateBranchInput
	listErr       error
}

// pageIndex maps "" to page 0 and "page-N" to page N.
func pageIndex(token string) int {
	if token == "" {
		return 0
	}
	var n int
	fmt.Sscanf(token, "page-%d", &n)
	return n
}

func (f *fakeAPI) ListProjects(_ context.Context, p api.ListParams) (*models.ListProjectsOutput, error) {
	f.params = append(f.params, p)
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.projects) == 0 {
		return &models.ListProjectsOutput{}, nil
	}
	out := f.projects[pageIndex(p.PageToken)]
	return &out, nil
}

func (f *fakeAPI) ListBranches(_ context.Context, _ string, p api.ListParams) (*models.ListBranchesOutput, error) {
	f.params = append(f.params, p)
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.branches) == 0 {
		return &models.ListBranchesOutput{}, nil
	}
	out := f.branches[pageIndex(p.PageToken)]
	return &out, nil
}

func (f *fakeAPI) CreateBranch(_ context.Context, _ string, in models.CreateBranchInput) (*models.Branch, error) {
	f.createCalls++
	f.createdInputs = append(f.createdInputs, in)
	return &models.Branch{BranchID: "new-branch", Name: in.Name, BranchType: in.BranchType}, nil
}

func (f *fakeAPI) ListSystems(_ context.Context, _ string, p api.ListParams) (*models.ListSystemsOutput, error) {
	f.params = append(f.params, p)
	if len(f.systems) == 0 {
		return &models.ListSystemsOutput{}, nil
	}
	out := f.systems[pageIndex(p.PageToken)]
	return &out, nil
}

func (f *fakeAPI) ListTestSuites(_ context.Context, _ string, p api.ListParams) (*models.ListTestSuitesOutput, error) {
	f.params = append(f.params, p)
	if len(f.testSuites) == 0 {
		return &models.ListTestSuitesOutput{}, nil
	}
	out := f.testSuites[pageIndex(p.PageToken)]
	return &out, nil
}

// systemPages builds pages of the given sizes; the only system named target
// is the last entry of the last page.
func systemPages(sizes ...int) []models.ListSystemsOutput {
	var pages []models.ListSystemsOutput
	for i, n := range sizes {
		var page models.ListSystemsOutput
		for j := 0; j < n; j++ {
			page.Systems = append(page.Systems, models.System{
				SystemID: fmt.Sprintf("sys-%d-%d", i, j),
				Name:     fmt.Sprintf("system-%d-%d", i, j),
			})
		}
		if i < len(sizes)-1 {
			page.NextPageToken = fmt.Sprintf("page-%d", i+1)
		}
		pages = append(pages, page)
	}
	last := &pages[len(pages)-1]
	last.Systems[len(last.Systems)-1].Name = "target"
	return pages
}

func TestSystemID_ConsumesAllPages(t *testing.T) {
	f := &fakeAPI{systems: systemPages(100, 100, 7)}

	id, err := New(f).SystemID(context.Background(), "p1", "target")
	require.NoError(t, err)
	assert.Equal(t, "sys-2-6", id)

	require.Len(t, f.params, 3)
	assert.Equal(t, []string{"", "page-1", "page-2"}, []string{f.params[0].PageToken, f.params[1].PageToken, f.params[2].PageToken})
	for _, p := range f.params {
		assert.Equal(t, DefaultPageSize, p.PageSize)
		assert.Equal(t, "target", p.Name)
	}
}

func TestSystemID_NotFound(t *testing.T) {
	f := &fakeAPI{systems: systemPages(3, 2)}

	_, err := New(f).SystemID(context.Background(), "p1", "missing")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeNotFound))
	assert.EqualError(t, err, "could not find system missing")
	assert.Len(t, f.params, 2)
}

func TestTestSuiteID(t *testing.T) {
	f := &fakeAPI{testSuites: []models.ListTestSuitesOutput{
		{TestSuites: []models.TestSuite{{TestSuiteID: "ts-1", Name: "nightly"}}, NextPageToken: "page-1"},
		{TestSuites: []models.TestSuite{{TestSuiteID: "ts-2", Name: "smoke"}}},
	}}

	id, err := New(f).TestSuiteID(context.Background(), "p1", "smoke")
	require.NoError(t, err)
	assert.Equal(t, "ts-2", id)

	_, err = New(f).TestSuiteID(context.Background(), "p1", "Smoke")
	assert.True(t, errs.Is(err, errs.CodeNotFound), "names match exactly")
	assert.Contains(t, err.Error(), "could not find test suite Smoke")
}

func TestProjectID(t *testing.T) {
	f := &fakeAPI{projects: []models.ListProjectsOutput{
		{Projects: []models.Project{{ProjectID: "p-new", Name: "newest"}}, NextPageToken: "page-1"},
		{Projects: []models.Project{{ProjectID: "p-old", Name: "oldest"}}},
	}}

	id, err := New(f).ProjectID(context.Background(), "oldest")
	require.NoError(t, err)
	assert.Equal(t, "p-old", id)
}

func TestProjectID_EmptyNameUsesLatest(t *testing.T) {
	f := &fakeAPI{projects: []models.ListProjectsOutput{
		{Projects: []models.Project{{ProjectID: "p-new", Name: "newest"}}, NextPageToken: "page-1"},
	}}

	id, err := New(f).ProjectID(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "p-new", id)

	require.Len(t, f.params, 1)
	if diff := cmp.Diff(api.ListParams{PageSize: 1, OrderBy: "timestamp"}, f.params[0]); diff != "" {
		t.Errorf("latest project params mismatch (-want +got):\n%s", diff)
	}
}

func TestLatestProject_None(t *testing.T) {
	_, err := New(&fakeAPI{}).LatestProject(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeNotFound))
}

func TestFindOrCreateBranch(t *testing.T) {
	tests := []struct {
		name        string
		pages       []models.ListBranchesOutput
		wantID      string
		wantCreates int
	}{
		{
			name: "existing branch on second page",
			pages: []models.ListBranchesOutput{
				{Branches: []models.Branch{{BranchID: "b-main", Name: "main"}}, NextPageToken: "page-1"},
				{Branches: []models.Branch{{BranchID: "b-feat", Name: "feature"}}},
			},
			wantID:      "b-feat",
			wantCreates: 0,
		},
		{
			name: "absent branch is created",
			pages: []models.ListBranchesOutput{
				{Branches: []models.Branch{{BranchID: "b-main", Name: "main"}}},
			},
			wantID:      "new-branch",
			wantCreates: 1,
		},
		{
			name:        "empty project",
			wantID:      "new-branch",
			wantCreates: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeAPI{branches: tt.pages}

			id, err := New(f).FindOrCreateBranch(context.Background(), "p1", "feature")
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantCreates, f.createCalls)
			for _, in := range f.createdInputs {
				assert.Equal(t, models.BranchTypeChangeRequest, in.BranchType)
				assert.Equal(t, "feature", in.Name)
			}
		})
	}
}

func TestBranchID_AbsentIsNotAnError(t *testing.T) {
	id, err := New(&fakeAPI{}).BranchID(context.Background(), "p1", "nope")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestFindOrCreateBranch_ListErrorSkipsCreate(t *testing.T) {
	f := &fakeAPI{listErr: errs.New(errs.CodeTransport, "boom")}

	_, err := New(f).FindOrCreateBranch(context.Background(), "p1", "feature")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeTransport))
	assert.Zero(t, f.createCalls)
}

func TestWithPageSize(t *testing.T) {
	f := &fakeAPI{}
	_, _ = New(f, WithPageSize(25)).BranchID(context.Background(), "p1", "x")
	require.Len(t, f.params, 1)
	assert.Equal(t, 25, f.params[0].PageSize)
}

func TestListAll_StalledToken(t *testing.T) {
	calls := 0
	_, err := ListAll(context.Background(), func(context.Context, string) (Page[int], error) {
		calls++
		return Page[int]{Items: []int{calls}, NextPageToken: "same"}, nil
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestListAll_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	_, err := ListAll(context.Background(), func(context.Context, string) (Page[int], error) {
		return Page[int]{}, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestFindByName(t *testing.T) {
	items := []models.System{{SystemID: "1", Name: "a"}, {SystemID: "2", Name: "b"}, {SystemID: "3", Name: "b"}}

	got, ok := FindByName(items, "b")
	assert.True(t, ok)
	assert.Equal(t, "2", got.SystemID)

	_, ok = FindByName(items, "c")
	assert.False(t, ok)
}
