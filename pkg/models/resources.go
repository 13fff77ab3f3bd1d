// Package models holds the ReSim API wire types used by resim-launch.
package models

// Named is implemented by every resource that is looked up by its
// human-readable name.
type Named interface {
	GetName() string
}

// BranchType classifies a branch.
type BranchType string

const (
	BranchTypeMain          BranchType = "MAIN"
	BranchTypeChangeRequest BranchType = "CHANGE_REQUEST"
	BranchTypeReleaseTag    BranchType = "RELEASE_TAG"
)

// Project is the top-level scope for branches, systems and test suites.
type Project struct {
	ProjectID         string `json:"projectID,omitempty"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	CreationTimestamp string `json:"creationTimestamp,omitempty"`
}

// Branch groups builds made from one source branch.
type Branch struct {
	BranchID          string     `json:"branchID,omitempty"`
	ProjectID         string     `json:"projectID,omitempty"`
	Name              string     `json:"name"`
	BranchType        BranchType `json:"branchType,omitempty"`
	CreationTimestamp string     `json:"creationTimestamp,omitempty"`
}

// System describes the hardware/software target builds run against.
type System struct {
	SystemID    string `json:"systemID,omitempty"`
	ProjectID   string `json:"projectID,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// TestSuite is a named, pre-defined collection of experiences.
type TestSuite struct {
	TestSuiteID string `json:"testSuiteID,omitempty"`
	ProjectID   string `json:"projectID,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (p Project) GetName() string   { return p.Name }
func (b Branch) GetName() string    { return b.Name }
func (s System) GetName() string    { return s.Name }
func (t TestSuite) GetName() string { return t.Name }

// ListProjectsOutput is one page of projects.
type ListProjectsOutput struct {
	Projects      []Project `json:"projects"`
	NextPageToken string    `json:"nextPageToken,omitempty"`
}

// ListBranchesOutput is one page of branches.
type ListBranchesOutput struct {
	Branches      []Branch `json:"branches"`
	NextPageToken string   `json:"nextPageToken,omitempty"`
}

// ListSystemsOutput is one page of systems.
type ListSystemsOutput struct {
	Systems       []System `json:"systems"`
	NextPageToken string   `json:"nextPageToken,omitempty"`
}

// ListTestSuitesOutput is one page of test suites.
type ListTestSuitesOutput struct {
	TestSuites    []TestSuite `json:"testSuites"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
}

// CreateBranchInput is the body of a create-branch call.
type CreateBranchInput struct {
	Name       string     `json:"name"`
	BranchType BranchType `json:"branchType"`
}
