package batch

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/resim-ai/launch/internal/errs"
)

// ReservedPoolLabel may not be requested in any letter case; the platform
// assigns it.
const ReservedPoolLabel = "resim"

// Target selects what a batch runs. It is one of ExperienceNames,
// ExperienceTags or TestSuiteRef.
type Target interface {
	isTarget()
	String() string
}

// ExperienceNames targets experiences by name.
type ExperienceNames []string

// ExperienceTags targets every experience carrying one of the tags.
type ExperienceTags []string

// TestSuiteRef targets a test suite by name.
type TestSuiteRef struct {
	Name string
}

func (ExperienceNames) isTarget() {}
func (ExperienceTags) isTarget()  {}
func (TestSuiteRef) isTarget()    {}

func (n ExperienceNames) String() string { return "experiences " + strings.Join(n, ", ") }
func (t ExperienceTags) String() string  { return "experience tags " + strings.Join(t, ", ") }
func (s TestSuiteRef) String() string    { return "test suite " + s.Name }

// Input is the raw, string-valued batch configuration.
type Input struct {
	Project                 string
	TestSuite               string
	Experiences             string
	ExperienceTags          string
	PoolLabels              string
	AllowableFailurePercent string
	MetricsBuildID          string
	Parameters              string
}

// Request is a validated batch request.
type Request struct {
	ProjectName             string
	Target                  Target
	PoolLabels              []string
	AllowableFailurePercent *int
	MetricsBuildID          string
	Parameters              map[string]string
}

// Request validates the input and builds a Request. All checks are local.
func (in Input) Request() (*Request, error) {
	if strings.TrimSpace(in.Project) == "" {
		return nil, errs.Config("project is required")
	}

	target, err := in.target()
	if err != nil {
		return nil, err
	}

	percent, err := parsePercent(in.AllowableFailurePercent)
	if err != nil {
		return nil, err
	}

	labels := ArrayInputSplit(in.PoolLabels)
	for _, l := range labels {
		if strings.EqualFold(l, ReservedPoolLabel) {
			return nil, errs.Config("pool label %q is reserved: %q is matched case-insensitively", l, ReservedPoolLabel)
		}
	}

	params, err := ParseParameters(in.Parameters)
	if err != nil {
		return nil, err
	}

	return &Request{
		ProjectName:             strings.TrimSpace(in.Project),
		Target:                  target,
		PoolLabels:              labels,
		AllowableFailurePercent: percent,
		MetricsBuildID:          strings.TrimSpace(in.MetricsBuildID),
		Parameters:              params,
	}, nil
}

func (in Input) target() (Target, error) {
	suite := strings.TrimSpace(in.TestSuite)
	names := ArrayInputSplit(in.Experiences)
	tags := ArrayInputSplit(in.ExperienceTags)

	switch {
	case suite != "" && (len(names) > 0 || len(tags) > 0):
		return nil, errs.Config("test_suite cannot be combined with experiences or experience_tags")
	case len(names) > 0 && len(tags) > 0:
		return nil, errs.Config("experiences and experience_tags are mutually exclusive")
	case suite != "":
		return TestSuiteRef{Name: suite}, nil
	case len(names) > 0:
		return ExperienceNames(names), nil
	case len(tags) > 0:
		return ExperienceTags(tags), nil
	default:
		return nil, errs.Config("one of test_suite, experiences or experience_tags is required")
	}
}

func parsePercent(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errs.Config("allowable_failure_percent must be an integer, got %q", raw)
	}
	if n < 0 || n > 100 {
		return nil, errs.Config("allowable_failure_percent must be between 0 and 100, got %d", n)
	}
	return &n, nil
}

// ArrayInputSplit splits a comma-separated input, trims each element and
// strips one layer of matching single or double quotes. Empty elements are
// dropped. Quoting does not protect commas inside an element.
func ArrayInputSplit(input string) []string {
	var out []string
	for _, item := range strings.Split(input, ",") {
		item = strings.TrimSpace(item)
		if n := len(item); n >= 2 && (item[0] == '"' || item[0] == '\'') && item[n-1] == item[0] {
			item = item[1 : n-1]
		}
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ParseParameters reads a YAML or JSON mapping of scalar values.
func ParseParameters(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var doc map[string]any
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, errs.Config("parameters must be a YAML or JSON mapping: %v", err)
	}
	if len(doc) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	params := make(map[string]string, len(doc))
	for _, k := range keys {
		switch v := doc[k].(type) {
		case nil:
			params[k] = ""
		case string:
			params[k] = v
		case map[string]any, []any:
			return nil, errs.Config("parameter %q must be a scalar", k)
		default:
			params[k] = fmt.Sprint(v)
		}
	}
	return params, nil
}
