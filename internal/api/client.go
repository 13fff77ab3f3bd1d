// Package api is the ReSim REST client used by resim-launch. It speaks JSON
// over a transport.Doer and attaches the bearer token to every call.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/resim-ai/launch/internal/errs"
	"github.com/resim-ai/launch/internal/transport"
	"github.com/resim-ai/launch/pkg/models"
)

// OrderByTimestamp sorts listings newest first.
const OrderByTimestamp = "timestamp"

// ListParams are the paging parameters shared by every list endpoint.
type ListParams struct {
	PageSize  int
	PageToken string
	OrderBy   string
	// Name narrows the listing server-side where the endpoint supports it.
	Name string
}

func (p ListParams) values() url.Values {
	v := url.Values{}
	if p.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(p.PageSize))
	}
	if p.PageToken != "" {
		v.Set("pageToken", p.PageToken)
	}
	if p.OrderBy != "" {
		v.Set("orderBy", p.OrderBy)
	}
	if p.Name != "" {
		v.Set("name", p.Name)
	}
	return v
}

// Client calls the ReSim API.
type Client struct {
	doer    transport.Doer
	baseURL string
	token   string
}

// New creates a Client rooted at baseURL, authenticating with token.
func New(doer transport.Doer, baseURL, token string) *Client {
	return &Client{
		doer:    doer,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
	}
}

// ListProjects returns one page of projects.
func (c *Client) ListProjects(ctx context.Context, p ListParams) (*models.ListProjectsOutput, error) {
	var out models.ListProjectsOutput
	if err := c.call(ctx, http.MethodGet, "/projects", p.values(), nil, &out); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return &out, nil
}

// ListBranches returns one page of a project's branches.
func (c *Client) ListBranches(ctx context.Context, projectID string, p ListParams) (*models.ListBranchesOutput, error) {
	var out models.ListBranchesOutput
	if err := c.call(ctx, http.MethodGet, path("projects", projectID, "branches"), p.values(), nil, &out); err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	return &out, nil
}

// CreateBranch creates a branch in a project.
func (c *Client) CreateBranch(ctx context.Context, projectID string, in models.CreateBranchInput) (*models.Branch, error) {
	var out models.Branch
	if err := c.call(ctx, http.MethodPost, path("projects", projectID, "branches"), nil, in, &out); err != nil {
		return nil, fmt.Errorf("create branch: %w", err)
	}
	return &out, nil
}

// ListSystems returns one page of a project's systems.
func (c *Client) ListSystems(ctx context.Context, projectID string, p ListParams) (*models.ListSystemsOutput, error) {
	var out models.ListSystemsOutput
	if err := c.call(ctx, http.MethodGet, path("projects", projectID, "systems"), p.values(), nil, &out); err != nil {
		return nil, fmt.Errorf("list systems: %w", err)
	}
	return &out, nil
}

// ListTestSuites returns one page of a project's test suites.
func (c *Client) ListTestSuites(ctx context.Context, projectID string, p ListParams) (*models.ListTestSuitesOutput, error) {
	var out models.ListTestSuitesOutput
	if err := c.call(ctx, http.MethodGet, path("projects", projectID, "suites"), p.values(), nil, &out); err != nil {
		return nil, fmt.Errorf("list test suites: %w", err)
	}
	return &out, nil
}

// CreateBuildForBranch registers a build on a branch. An empty response body
// yields an empty Build.
func (c *Client) CreateBuildForBranch(ctx context.Context, projectID, branchID string, in models.CreateBuildInput) (*models.Build, error) {
	var out models.Build
	if err := c.call(ctx, http.MethodPost, path("projects", projectID, "branches", branchID, "builds"), nil, in, &out); err != nil {
		return nil, fmt.Errorf("create build: %w", err)
	}
	return &out, nil
}

// CreateBatch launches a batch over named experiences or experience tags.
func (c *Client) CreateBatch(ctx context.Context, projectID string, in models.CreateBatchInput) (*models.Batch, error) {
	var out models.Batch
	if err := c.call(ctx, http.MethodPost, path("projects", projectID, "batches"), nil, in, &out); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}
	return &out, nil
}

// CreateTestSuiteBatch launches a batch for a test suite.
func (c *Client) CreateTestSuiteBatch(ctx context.Context, projectID, testSuiteID string, in models.CreateTestSuiteBatchInput) (*models.Batch, error) {
	var out models.Batch
	if err := c.call(ctx, http.MethodPost, path("projects", projectID, "suites", testSuiteID, "batches"), nil, in, &out); err != nil {
		return nil, fmt.Errorf("create test suite batch: %w", err)
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, method, p string, query url.Values, in, out any) error {
	req := &transport.Request{
		Method: method,
		URL:    c.baseURL + p,
		Header: map[string]string{
			"Authorization": "Bearer " + c.token,
			"Accept":        "application/json",
		},
		Query: query,
	}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		req.Body = body
		req.Header["Content-Type"] = "application/json"
	}

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return statusError(method+" "+p, resp)
	}
	if out == nil || len(strings.TrimSpace(string(resp.Body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return errs.Wrap(errs.CodeTransport, method+" "+p, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// statusError turns a non-2xx response into a transport error carrying the
// status and, when present, the server's message.
func statusError(op string, resp *transport.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(resp.Body, &body)
	if body.Message != "" {
		return errs.Newf(errs.CodeTransport, "%s: status %d: %s", op, resp.StatusCode, body.Message)
	}
	return errs.Newf(errs.CodeTransport, "%s: status %d", op, resp.StatusCode)
}

func path(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}
