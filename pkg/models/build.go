package models

// Build is a registered image reference scoped to a project, branch and system.
type Build struct {
	BuildID           string `json:"buildID,omitempty"`
	ProjectID         string `json:"projectID,omitempty"`
	BranchID          string `json:"branchID,omitempty"`
	SystemID          string `json:"systemID,omitempty"`
	Name              string `json:"name,omitempty"`
	ImageURI          string `json:"imageUri,omitempty"`
	Version           string `json:"version,omitempty"`
	Description       string `json:"description,omitempty"`
	AssociatedAccount string `json:"associatedAccount,omitempty"`
	CreationTimestamp string `json:"creationTimestamp,omitempty"`
}

// CreateBuildInput is the body of a create-build-for-branch call.
type CreateBuildInput struct {
	ImageURI    string `json:"imageUri"`
	Version     string `json:"version"`
	Description string `json:"description"`
	SystemID    string `json:"systemID"`
}
