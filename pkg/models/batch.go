package models

// TriggeredVia records what started a batch.
type TriggeredVia string

const (
	TriggeredViaLocal  TriggeredVia = "LOCAL"
	TriggeredViaGitHub TriggeredVia = "GITHUB"
)

// Batch is a launched execution of one build against a set of experiences.
type Batch struct {
	BatchID                 string       `json:"batchID,omitempty"`
	ProjectID               string       `json:"projectID,omitempty"`
	BuildID                 string       `json:"buildID,omitempty"`
	TestSuiteID             string       `json:"testSuiteID,omitempty"`
	FriendlyName            string       `json:"friendlyName,omitempty"`
	Status                  string       `json:"status,omitempty"`
	TriggeredVia            TriggeredVia `json:"triggeredVia,omitempty"`
	AssociatedAccount       string       `json:"associatedAccount,omitempty"`
	CreationTimestamp       string       `json:"creationTimestamp,omitempty"`
	TotalJobs               int          `json:"totalJobs,omitempty"`
	AllowableFailurePercent *int         `json:"allowableFailurePercent,omitempty"`
}

// CreateBatchInput is the body of a project-scoped batch launch. Exactly one
// of ExperienceNames and ExperienceTagNames is set.
type CreateBatchInput struct {
	BuildID                 string            `json:"buildID"`
	ExperienceNames         []string          `json:"experienceNames,omitempty"`
	ExperienceTagNames      []string          `json:"experienceTagNames,omitempty"`
	MetricsBuildID          string            `json:"metricsBuildID,omitempty"`
	Parameters              map[string]string `json:"parameters,omitempty"`
	PoolLabels              []string          `json:"poolLabels,omitempty"`
	AllowableFailurePercent *int              `json:"allowableFailurePercent,omitempty"`
	AssociatedAccount       string            `json:"associatedAccount,omitempty"`
	TriggeredVia            TriggeredVia      `json:"triggeredVia"`
}

// CreateTestSuiteBatchInput is the body of a test-suite batch launch.
type CreateTestSuiteBatchInput struct {
	BuildID                 string            `json:"buildID"`
	Parameters              map[string]string `json:"parameters,omitempty"`
	PoolLabels              []string          `json:"poolLabels,omitempty"`
	AllowableFailurePercent *int              `json:"allowableFailurePercent,omitempty"`
	AssociatedAccount       string            `json:"associatedAccount,omitempty"`
	TriggeredVia            TriggeredVia      `json:"triggeredVia"`
}
